package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoinsight/config"
	"repoinsight/internal/models"
)

func issueFixture(number int, title string, labels ...string) models.RawIssue {
	return models.RawIssue{
		Number:    number,
		Title:     title,
		State:     "open",
		Labels:    labels,
		Author:    "alice",
		CreatedAt: "2026-08-01T00:00:00Z",
		UpdatedAt: "2026-08-02T00:00:00Z",
	}
}

// requirePartition asserts that the buckets cover exactly the given issue
// numbers, each one once.
func requirePartition(t *testing.T, categorized models.Categorized, numbers ...int) {
	t.Helper()
	seen := map[int]int{}
	for _, category := range models.Categories {
		bucket, ok := categorized[category]
		require.True(t, ok, "category %q missing", category)
		for _, entry := range bucket {
			seen[entry.Number]++
		}
	}
	require.Len(t, seen, len(numbers))
	for _, n := range numbers {
		assert.Equal(t, 1, seen[n], "issue #%d", n)
	}
}

func TestAnalyzeFallsBackToLabelCategorization(t *testing.T) {
	remote := &stubRemote{issues: map[string][]models.RawIssue{
		"open": {
			issueFixture(1, "Crash on checkout", "bug"),
			issueFixture(2, "Faster startup", "enhancement"),
			issueFixture(3, "How do I run this?"),
		},
	}}
	stage := newActivityStage(remote, &stubReasoner{err: errors.New("model down")}, config.Default().Analysis)

	result, degraded, err := stage.Analyze(context.Background(), testRef, nil)
	require.NoError(t, err)
	assert.True(t, degraded)

	requirePartition(t, result.Categorized, 1, 2, 3)
	require.Len(t, result.Categorized["bugs"], 1)
	assert.Equal(t, 1, result.Categorized["bugs"][0].Number)
	require.Len(t, result.Categorized["enhancements"], 1)
	assert.Equal(t, 2, result.Categorized["enhancements"][0].Number)
	require.Len(t, result.Categorized["other"], 1)
	assert.Equal(t, 3, result.Categorized["other"][0].Number)
	assert.Empty(t, result.Categorized["features"])
	assert.Empty(t, result.Categorized["documentation"])
	assert.Empty(t, result.Categorized["questions"])

	assert.Equal(t, 3, result.Summary.TotalIssues)
	assert.Equal(t, 3, result.Summary.TotalOpenIssues)
	assert.Equal(t, []string{}, result.Patterns.CommonBugAreas)
}

func TestAnalyzeToleratesFetchFailures(t *testing.T) {
	remote := &stubRemote{
		issuesErr: errors.New("503 from upstream"),
		prsErr:    errors.New("503 from upstream"),
	}
	stage := newActivityStage(remote, &stubReasoner{}, config.Default().Analysis)

	result, degraded, err := stage.Analyze(context.Background(), testRef, nil)
	require.NoError(t, err)
	assert.True(t, degraded)

	assert.Zero(t, result.Summary.TotalIssues)
	assert.Zero(t, result.Summary.TotalPRs)
	requirePartition(t, result.Categorized)
	assert.Equal(t, []models.IssueRecord{}, result.RecentIssues)
	assert.Equal(t, []models.PullRecord{}, result.RecentPRs)
}

func TestCategorizeAcceptsExactPartition(t *testing.T) {
	issues := []models.IssueRecord{
		{Number: 1, Title: "Crash on checkout", Comments: 4},
		{Number: 2, Title: "Add dark mode"},
	}
	reasoner := &stubReasoner{responses: map[string]string{
		"issue triage": `{
			"bugs": [{"number": 1, "title": "model-invented title"}],
			"features": [{"number": 2, "title": "Add dark mode"}],
			"enhancements": [], "documentation": [], "questions": [], "other": []
		}`,
	}}
	stage := newActivityStage(&stubRemote{}, reasoner, config.Default().Analysis)

	categorized := stage.categorize(context.Background(), issues)

	requirePartition(t, categorized, 1, 2)
	require.Len(t, categorized["bugs"], 1)
	// Titles and comment counts come from our records, not the model.
	assert.Equal(t, "Crash on checkout", categorized["bugs"][0].Title)
	assert.Equal(t, 4, categorized["bugs"][0].Comments)
	assert.False(t, stage.soft)
}

func TestCategorizeRejectsNonPartitions(t *testing.T) {
	issues := []models.IssueRecord{
		{Number: 1, Title: "Crash on checkout", Labels: []string{"bug"}},
		{Number: 2, Title: "Add dark mode", Labels: []string{"feature"}},
	}
	cases := map[string]string{
		"missing issue":    `{"bugs": [{"number": 1}], "features": [], "enhancements": [], "documentation": [], "questions": [], "other": []}`,
		"duplicated issue": `{"bugs": [{"number": 1}, {"number": 1}], "features": [{"number": 2}], "enhancements": [], "documentation": [], "questions": [], "other": []}`,
		"invented issue":   `{"bugs": [{"number": 1}], "features": [{"number": 2}], "other": [{"number": 99}], "enhancements": [], "documentation": [], "questions": []}`,
		"prose answer":     `The first issue is a bug, the second a feature.`,
	}
	for name, response := range cases {
		t.Run(strings.ReplaceAll(name, " ", "_"), func(t *testing.T) {
			reasoner := &stubReasoner{responses: map[string]string{"issue triage": response}}
			stage := newActivityStage(&stubRemote{}, reasoner, config.Default().Analysis)

			categorized := stage.categorize(context.Background(), issues)

			// Label fallback takes over and still partitions.
			requirePartition(t, categorized, 1, 2)
			require.Len(t, categorized["bugs"], 1)
			assert.Equal(t, 1, categorized["bugs"][0].Number)
			require.Len(t, categorized["features"], 1)
			assert.Equal(t, 2, categorized["features"][0].Number)
		})
	}
}

func TestCategoryForLabels(t *testing.T) {
	cases := []struct {
		labels []string
		want   string
	}{
		{[]string{"Bug"}, "bugs"},
		{[]string{"defect-confirmed"}, "bugs"},
		{[]string{"runtime-error"}, "bugs"},
		{[]string{"enhancement"}, "enhancements"},
		{[]string{"feature-request"}, "features"},
		{[]string{"docs"}, "documentation"},
		{[]string{"question"}, "questions"},
		{[]string{"wontfix"}, "other"},
		{nil, "other"},
		// Rule order wins over label order.
		{[]string{"documentation", "bug"}, "bugs"},
		{[]string{"feature", "enhancement"}, "enhancements"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, categoryForLabels(tc.labels), "labels %v", tc.labels)
	}
}

func TestCategorizeByLabelsPartitionsAnyInput(t *testing.T) {
	issues := []models.IssueRecord{
		{Number: 10, Labels: []string{"bug", "docs"}},
		{Number: 11, Labels: []string{"question"}},
		{Number: 12, Labels: []string{"triage", "backend"}},
		{Number: 13},
		{Number: 14, Labels: []string{"enhancement"}},
	}

	requirePartition(t, categorizeByLabels(issues), 10, 11, 12, 13, 14)
}

func TestNormalizeIssuesFiltersPullRequestsAndTruncates(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.BodyTruncate = 10
	stage := newActivityStage(&stubRemote{}, &stubReasoner{}, cfg)

	records := stage.normalizeIssues([]models.RawIssue{
		{Number: 1, Title: "real issue", Body: "0123456789abcdef"},
		{Number: 2, Title: "actually a PR", IsPullRequest: true},
	})

	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Number)
	assert.Equal(t, "0123456789", records[0].Body)
	assert.Equal(t, []string{}, records[0].Labels)
	assert.Equal(t, []string{}, records[0].Assignees)
}

func TestMatchAffectedServices(t *testing.T) {
	issues := []models.IssueRecord{
		{Number: 1, Title: "basket.api drops items", Body: ""},
		{Number: 2, Title: "Slow responses", Body: "Seen when Catalog.API is under load"},
	}
	services := []string{"Catalog.API", "Basket.API", "Ordering.API"}

	affected := matchAffectedServices(services, issues)

	assert.Equal(t, []string{"Catalog.API", "Basket.API"}, affected)
}

func TestRankByCountIsDeterministic(t *testing.T) {
	counts := map[string]int{"beta": 2, "alpha": 2, "gamma": 5, "delta": 1}

	ranked := rankByCount(counts, 3)

	assert.Equal(t, []string{"gamma", "alpha", "beta"}, ranked)
	assert.Equal(t, ranked, rankByCount(counts, 3))
}

func TestSummarizeCounts(t *testing.T) {
	issues := []models.IssueRecord{
		{Number: 1, State: "open"},
		{Number: 2, State: "closed"},
		{Number: 3, State: "open"},
	}
	pulls := []models.PullRecord{
		{Number: 4, State: "open"},
		{Number: 5, State: "closed", MergedAt: "2026-08-01T00:00:00Z"},
	}

	summary := summarize(issues, pulls)

	assert.Equal(t, 3, summary.TotalIssues)
	assert.Equal(t, 2, summary.TotalOpenIssues)
	assert.Equal(t, 1, summary.TotalClosedIssues)
	assert.Equal(t, 2, summary.TotalPRs)
	assert.Equal(t, 1, summary.OpenPRs)
	assert.Equal(t, 1, summary.MergedPRs)
}
