package workflow

import (
	"context"
	"errors"
	"strings"

	"repoinsight/internal/models"
)

// stubRemote serves canned repository data. Anything not present behaves as
// not found; the explicit error fields simulate real access failures.
type stubRemote struct {
	files    map[string]string
	listings map[string][]models.DirEntry

	search    []string
	searchErr error

	issues    map[string][]models.RawIssue
	issuesErr error

	prs    []models.RawPR
	prsErr error
}

func (s *stubRemote) FileContents(_ context.Context, _, _, path string, _ bool) (string, error) {
	if content, ok := s.files[path]; ok {
		return content, nil
	}
	return "", models.ErrNotFound
}

func (s *stubRemote) DirectoryListing(_ context.Context, _, _, path string, _ bool) ([]models.DirEntry, error) {
	if entries, ok := s.listings[path]; ok {
		return entries, nil
	}
	return nil, models.ErrNotFound
}

func (s *stubRemote) SearchCode(_ context.Context, _, _, _ string, _ int) ([]string, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.search, nil
}

func (s *stubRemote) ListIssues(_ context.Context, _, _, state string, _ int) ([]models.RawIssue, error) {
	if s.issuesErr != nil {
		return nil, s.issuesErr
	}
	return s.issues[state], nil
}

func (s *stubRemote) ListPullRequests(_ context.Context, _, _, _ string, _ int) ([]models.RawPR, error) {
	if s.prsErr != nil {
		return nil, s.prsErr
	}
	return s.prs, nil
}

// stubReasoner scripts responses by a distinctive substring of the system
// role ("repository analysis", "issue triage", ...). An unscripted call
// fails, which exercises the callers' fallbacks.
type stubReasoner struct {
	responses map[string]string
	err       error
}

func (r *stubReasoner) Complete(_ context.Context, system, _ string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	for key, response := range r.responses {
		if strings.Contains(system, key) {
			return response, nil
		}
	}
	return "", errors.New("unscripted reasoning call")
}
