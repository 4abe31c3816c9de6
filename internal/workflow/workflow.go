// Package workflow implements the multi-stage analysis engine: a structure
// discovery stage, an issue/PR analysis stage and a merge step, sequenced by
// a coordinator that carries accumulating state and isolates stage failures.
//
// Both external collaborators are unreliable by contract: remote data access
// can fail or return not-found, and the reasoning service returns free-form
// text that only usually contains JSON. Every call into them is paired with
// a fallback, so a run degrades to partial data instead of aborting.
package workflow

import (
	"context"

	"repoinsight/internal/models"
)

// RemoteDataAccess is the read-only repository data surface the stages
// consume. silent=true marks a not-found result as expected so the client
// does not log it as a problem.
type RemoteDataAccess interface {
	FileContents(ctx context.Context, owner, repo, path string, silent bool) (string, error)
	DirectoryListing(ctx context.Context, owner, repo, path string, silent bool) ([]models.DirEntry, error)
	SearchCode(ctx context.Context, owner, repo, query string, limit int) ([]string, error)
	ListIssues(ctx context.Context, owner, repo, state string, limit int) ([]models.RawIssue, error)
	ListPullRequests(ctx context.Context, owner, repo, state string, limit int) ([]models.RawPR, error)
}

// Reasoner is the text-in/text-out reasoning capability. No structured
// output guarantee; callers parse permissively.
type Reasoner interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
