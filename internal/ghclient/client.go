// Package ghclient implements the read-only remote data access surface on
// top of the GitHub REST API. Not-found is a normal outcome here: callers
// receive models.ErrNotFound and decide whether it matters. Repeated content
// fetches are served from a bounded LRU cache.
package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"repoinsight/internal/models"
)

// Client wraps the go-github client with caching and silent-not-found
// semantics. All operations are read-only.
type Client struct {
	gh       *github.Client
	files    *lru.Cache[string, string]
	listings *lru.Cache[string, []models.DirEntry]
}

// New builds a client. An empty token yields an unauthenticated client,
// which works for public repositories at a lower rate limit.
func New(token string, cacheSize int) *Client {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	} else {
		logrus.Warn("No GitHub token configured; using unauthenticated API access")
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	files, _ := lru.New[string, string](cacheSize)
	listings, _ := lru.New[string, []models.DirEntry](cacheSize)
	return &Client{gh: gh, files: files, listings: listings}
}

// FileContents returns the decoded contents of a file. Asking for a
// directory counts as not-found. With silent=true a miss is logged at Debug
// only.
func (c *Client) FileContents(ctx context.Context, owner, repo, path string, silent bool) (string, error) {
	key := owner + "/" + repo + "/" + path
	if content, ok := c.files.Get(key); ok {
		return content, nil
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", c.missOrFailure(resp, err, path, silent)
	}
	if file == nil {
		// Path resolved to a directory.
		return "", c.missOrFailure(nil, models.ErrNotFound, path, silent)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding contents of %s: %w", path, err)
	}
	c.files.Add(key, content)
	return content, nil
}

// DirectoryListing returns the entries of a directory. A path that resolves
// to a file counts as not-found.
func (c *Client) DirectoryListing(ctx context.Context, owner, repo, path string, silent bool) ([]models.DirEntry, error) {
	key := owner + "/" + repo + "/" + path
	if entries, ok := c.listings.Get(key); ok {
		return entries, nil
	}

	file, dir, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, c.missOrFailure(resp, err, path, silent)
	}
	if file != nil {
		return nil, c.missOrFailure(nil, models.ErrNotFound, path, silent)
	}
	entries := make([]models.DirEntry, 0, len(dir))
	for _, item := range dir {
		entries = append(entries, models.DirEntry{
			Name: item.GetName(),
			Path: item.GetPath(),
			Type: item.GetType(),
		})
	}
	c.listings.Add(key, entries)
	return entries, nil
}

// SearchCode returns the paths of files matching query within the
// repository, bounded to limit results.
func (c *Client) SearchCode(ctx context.Context, owner, repo, query string, limit int) ([]string, error) {
	q := fmt.Sprintf("%s repo:%s/%s", query, owner, repo)
	result, _, err := c.gh.Search.Code(ctx, q, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		logrus.Warnf("Code search %q failed: %v", query, err)
		return nil, err
	}
	paths := make([]string, 0, len(result.CodeResults))
	for _, hit := range result.CodeResults {
		paths = append(paths, hit.GetPath())
	}
	return paths, nil
}

// ListIssues returns raw issues in the given state, one page bounded to
// limit. The GitHub issues endpoint interleaves pull requests; they are
// flagged, not dropped, so the caller decides.
func (c *Client) ListIssues(ctx context.Context, owner, repo, state string, limit int) ([]models.RawIssue, error) {
	issues, _, err := c.gh.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s issues: %w", state, err)
	}
	raw := make([]models.RawIssue, 0, len(issues))
	for _, issue := range issues {
		labels := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			if name := l.GetName(); name != "" {
				labels = append(labels, name)
			}
		}
		assignees := make([]string, 0, len(issue.Assignees))
		for _, a := range issue.Assignees {
			if login := a.GetLogin(); login != "" {
				assignees = append(assignees, login)
			}
		}
		raw = append(raw, models.RawIssue{
			Number:        issue.GetNumber(),
			Title:         issue.GetTitle(),
			State:         issue.GetState(),
			Body:          issue.GetBody(),
			Author:        issue.GetUser().GetLogin(),
			Labels:        labels,
			Assignees:     assignees,
			Comments:      issue.GetComments(),
			CreatedAt:     formatTime(issue.GetCreatedAt()),
			UpdatedAt:     formatTime(issue.GetUpdatedAt()),
			ClosedAt:      formatTime(issue.GetClosedAt()),
			Milestone:     issue.GetMilestone().GetTitle(),
			URL:           issue.GetHTMLURL(),
			IsPullRequest: issue.IsPullRequest(),
		})
	}
	return raw, nil
}

// ListPullRequests returns raw pull requests in the given state, one page
// bounded to limit.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, state string, limit int) ([]models.RawPR, error) {
	prs, _, err := c.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s pull requests: %w", state, err)
	}
	raw := make([]models.RawPR, 0, len(prs))
	for _, pr := range prs {
		labels := make([]string, 0, len(pr.Labels))
		for _, l := range pr.Labels {
			if name := l.GetName(); name != "" {
				labels = append(labels, name)
			}
		}
		assignees := make([]string, 0, len(pr.Assignees))
		for _, a := range pr.Assignees {
			if login := a.GetLogin(); login != "" {
				assignees = append(assignees, login)
			}
		}
		reviewers := make([]string, 0, len(pr.RequestedReviewers))
		for _, r := range pr.RequestedReviewers {
			if login := r.GetLogin(); login != "" {
				reviewers = append(reviewers, login)
			}
		}
		raw = append(raw, models.RawPR{
			Number:             pr.GetNumber(),
			Title:              pr.GetTitle(),
			State:              pr.GetState(),
			Body:               pr.GetBody(),
			Author:             pr.GetUser().GetLogin(),
			Labels:             labels,
			Assignees:          assignees,
			RequestedReviewers: reviewers,
			Draft:              pr.GetDraft(),
			CreatedAt:          formatTime(pr.GetCreatedAt()),
			UpdatedAt:          formatTime(pr.GetUpdatedAt()),
			MergedAt:           formatTime(pr.GetMergedAt()),
			ClosedAt:           formatTime(pr.GetClosedAt()),
			Head:               pr.GetHead().GetRef(),
			Base:               pr.GetBase().GetRef(),
			URL:                pr.GetHTMLURL(),
		})
	}
	return raw, nil
}

// missOrFailure maps a failed contents fetch to either the not-found
// sentinel or the underlying error, logging according to the silent flag.
func (c *Client) missOrFailure(resp *github.Response, err error, path string, silent bool) error {
	if isNotFound(resp, err) {
		if silent {
			logrus.Debugf("Path %s not found (tolerated)", path)
		} else {
			logrus.Infof("Path %s not found", path)
		}
		return models.ErrNotFound
	}
	logrus.Warnf("Fetching %s failed: %v", path, err)
	return err
}

func isNotFound(resp *github.Response, err error) bool {
	if errors.Is(err, models.ErrNotFound) {
		return true
	}
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func formatTime(ts github.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
