package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"repoinsight/config"
	"repoinsight/internal/jsonutil"
	"repoinsight/internal/models"
)

// labelCategoryRules is the deterministic fallback mapping from label
// keywords to categories. Rules are ordered; the first keyword contained in
// any of an issue's labels wins. Unmatched issues land in "other".
var labelCategoryRules = []struct {
	keyword  string
	category string
}{
	{"bug", "bugs"},
	{"defect", "bugs"},
	{"error", "bugs"},
	{"enhancement", "enhancements"},
	{"feature", "features"},
	{"doc", "documentation"},
	{"question", "questions"},
}

// activityStage analyzes issues and pull requests: categorization,
// ownership metadata, distributions and recurring patterns.
type activityStage struct {
	remote   RemoteDataAccess
	reasoner Reasoner
	cfg      config.AnalysisConfig

	soft bool
}

func newActivityStage(remote RemoteDataAccess, reasoner Reasoner, cfg config.AnalysisConfig) *activityStage {
	return &activityStage{remote: remote, reasoner: reasoner, cfg: cfg}
}

func emptyActivityResult() *models.ActivityResult {
	return &models.ActivityResult{
		Categorized: models.EmptyCategorized(),
		Metadata: models.ActivityMetadata{
			CodeOwners:         []string{},
			ActiveContributors: []string{},
			AffectedServices:   []string{},
			CommonTechnologies: []string{},
			IssueLabels:        map[string]int{},
		},
		Statistics: models.ActivityStatistics{
			LabelDistribution:     map[string]int{},
			MilestoneDistribution: map[string]int{},
		},
		Insights: models.ActivityInsights{
			HighlyDiscussedIssues: []models.IssueSummary{},
			RecentlyActiveIssues:  []models.IssueSummary{},
			MostUsedLabels:        []string{},
		},
		Patterns: models.IssuePatterns{
			CommonBugAreas:           []string{},
			FrequentFeatureRequests:  []string{},
			PainPoints:               []string{},
			ImprovementOpportunities: []string{},
		},
		RecentIssues: []models.IssueRecord{},
		RecentPRs:    []models.PullRecord{},
	}
}

// Analyze fetches issues and pull requests, categorizes the issues and
// derives metadata and patterns. knownServices comes from the structure
// stage and may be empty; it only feeds the affected-services match.
func (a *activityStage) Analyze(ctx context.Context, ref models.RepoRef, knownServices []string) (*models.ActivityResult, bool, error) {
	logrus.Infof("Analyzing issues: %s", ref)

	openRaw, closedRaw, prsRaw, fetchFailed := a.fetchActivity(ctx, ref)
	if fetchFailed {
		a.soft = true
	}

	issues := a.normalizeIssues(append(append([]models.RawIssue{}, openRaw...), closedRaw...))
	pulls := a.normalizePRs(prsRaw)
	logrus.Infof("Fetched %d issues and %d pull requests", len(issues), len(pulls))

	categorized := a.categorize(ctx, issues)
	labelCounts := labelDistribution(issues)
	metadata := a.metadata(ctx, issues, pulls, knownServices, labelCounts)
	statistics := computeStatistics(issues, pulls, labelCounts)
	insights := computeInsights(issues, pulls, labelCounts)
	patterns := a.identifyPatterns(ctx, categorized, metadata)

	result := emptyActivityResult()
	result.Summary = summarize(issues, pulls)
	result.Categorized = categorized
	result.Metadata = metadata
	result.Statistics = statistics
	result.Insights = insights
	result.Patterns = patterns
	result.RecentIssues = head(issues, 15)
	result.RecentPRs = head(pulls, 15)

	logrus.Infof("Issues analysis complete: %d issues, %d PRs", len(issues), len(pulls))
	return result, a.soft, nil
}

// fetchActivity issues the three list calls concurrently. The fetches are
// read-only and target disjoint resources; a failure in one leaves that
// category empty without blocking the others.
func (a *activityStage) fetchActivity(ctx context.Context, ref models.RepoRef) (open, closed []models.RawIssue, prs []models.RawPR, failed bool) {
	var wg sync.WaitGroup
	var openErr, closedErr, prsErr error
	wg.Add(3)
	go func() {
		defer wg.Done()
		open, openErr = a.remote.ListIssues(ctx, ref.Owner, ref.Name, "open", a.cfg.OpenIssuesPageSize)
	}()
	go func() {
		defer wg.Done()
		closed, closedErr = a.remote.ListIssues(ctx, ref.Owner, ref.Name, "closed", a.cfg.ClosedIssuesPageSize)
	}()
	go func() {
		defer wg.Done()
		prs, prsErr = a.remote.ListPullRequests(ctx, ref.Owner, ref.Name, "open", a.cfg.PullRequestsPageSize)
	}()
	wg.Wait()

	if openErr != nil {
		logrus.Warnf("Fetching open issues failed, continuing without: %v", openErr)
		open, failed = nil, true
	}
	if closedErr != nil {
		logrus.Warnf("Fetching closed issues failed, continuing without: %v", closedErr)
		closed, failed = nil, true
	}
	if prsErr != nil {
		logrus.Warnf("Fetching pull requests failed, continuing without: %v", prsErr)
		prs, failed = nil, true
	}
	return open, closed, prs, failed
}

// normalizeIssues converts raw issues into records: pull requests filtered
// out, nil collections defaulted, bodies truncated. Records are never
// mutated afterwards.
func (a *activityStage) normalizeIssues(raw []models.RawIssue) []models.IssueRecord {
	records := make([]models.IssueRecord, 0, len(raw))
	for _, issue := range raw {
		if issue.IsPullRequest {
			continue
		}
		records = append(records, models.IssueRecord{
			Number:    issue.Number,
			Title:     issue.Title,
			State:     issue.State,
			Labels:    orEmpty(issue.Labels),
			Author:    issue.Author,
			Assignees: orEmpty(issue.Assignees),
			Comments:  issue.Comments,
			Body:      truncate(issue.Body, a.cfg.BodyTruncate),
			CreatedAt: issue.CreatedAt,
			UpdatedAt: issue.UpdatedAt,
			ClosedAt:  issue.ClosedAt,
			Milestone: issue.Milestone,
			URL:       issue.URL,
		})
	}
	return records
}

func (a *activityStage) normalizePRs(raw []models.RawPR) []models.PullRecord {
	records := make([]models.PullRecord, 0, len(raw))
	for _, pr := range raw {
		records = append(records, models.PullRecord{
			Number:             pr.Number,
			Title:              pr.Title,
			State:              pr.State,
			Labels:             orEmpty(pr.Labels),
			Author:             pr.Author,
			Assignees:          orEmpty(pr.Assignees),
			RequestedReviewers: orEmpty(pr.RequestedReviewers),
			Draft:              pr.Draft,
			Body:               truncate(pr.Body, a.cfg.BodyTruncate),
			CreatedAt:          pr.CreatedAt,
			UpdatedAt:          pr.UpdatedAt,
			MergedAt:           pr.MergedAt,
			ClosedAt:           pr.ClosedAt,
			Head:               pr.Head,
			Base:               pr.Base,
			URL:                pr.URL,
		})
	}
	return records
}

// categorize assigns every issue to exactly one category. The reasoning
// service's answer is accepted only when it forms an exact partition of the
// input issue numbers; anything else routes through the deterministic label
// fallback, which is total by construction.
func (a *activityStage) categorize(ctx context.Context, issues []models.IssueRecord) models.Categorized {
	if len(issues) == 0 {
		return models.EmptyCategorized()
	}

	digests := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		digests = append(digests, map[string]any{
			"number": issue.Number,
			"title":  issue.Title,
			"labels": issue.Labels,
			"body":   issue.Body,
		})
	}
	digestJSON, _ := json.Marshal(digests)

	prompt := fmt.Sprintf(`Categorize these issues into: bugs, features, enhancements, documentation, questions, other.
Assign every issue to EXACTLY ONE category.

Issues:
%s

Return JSON:
{
  "bugs": [{"number": 123, "title": "..."}],
  "features": [{"number": 124, "title": "..."}],
  "enhancements": [{"number": 125, "title": "..."}],
  "documentation": [{"number": 126, "title": "..."}],
  "questions": [{"number": 127, "title": "..."}],
  "other": [{"number": 128, "title": "..."}]
}`, truncate(string(digestJSON), 4000))

	response, err := a.reasoner.Complete(ctx, "You are an issue triage expert. Return only valid JSON.", prompt)
	if err != nil {
		a.soft = true
	}
	if err == nil {
		var raw map[string][]models.IssueSummary
		if jsonutil.ExtractObject(response, &raw) == nil {
			if categorized, ok := asPartition(raw, issues); ok {
				return categorized
			}
		}
	}
	logrus.Warn("Reasoning categorization unusable; falling back to label mapping")
	return categorizeByLabels(issues)
}

// asPartition validates the model's buckets against the input set: every
// issue number exactly once, no inventions. Titles are taken from our own
// records, not the model's.
func asPartition(raw map[string][]models.IssueSummary, issues []models.IssueRecord) (models.Categorized, bool) {
	byNumber := make(map[int]models.IssueRecord, len(issues))
	for _, issue := range issues {
		byNumber[issue.Number] = issue
	}

	categorized := models.EmptyCategorized()
	seen := make(map[int]bool, len(issues))
	for _, category := range models.Categories {
		for _, entry := range raw[category] {
			issue, known := byNumber[entry.Number]
			if !known || seen[entry.Number] {
				return nil, false
			}
			seen[entry.Number] = true
			categorized[category] = append(categorized[category], models.IssueSummary{
				Number:   issue.Number,
				Title:    issue.Title,
				Comments: issue.Comments,
			})
		}
	}
	if len(seen) != len(issues) {
		return nil, false
	}
	return categorized, true
}

// categorizeByLabels is the deterministic fallback. Total and exhaustive:
// first matching rule wins, no rule means "other".
func categorizeByLabels(issues []models.IssueRecord) models.Categorized {
	categorized := models.EmptyCategorized()
	for _, issue := range issues {
		category := categoryForLabels(issue.Labels)
		categorized[category] = append(categorized[category], models.IssueSummary{
			Number:   issue.Number,
			Title:    issue.Title,
			Comments: issue.Comments,
		})
	}
	return categorized
}

func categoryForLabels(labels []string) string {
	for _, rule := range labelCategoryRules {
		for _, label := range labels {
			if strings.Contains(strings.ToLower(label), rule.keyword) {
				return rule.category
			}
		}
	}
	return "other"
}

// metadata derives ownership and label facts. Owners and contributors are
// exact frequency-ranked tallies; only the free-text technology labels come
// from the reasoning service, with an empty fallback.
func (a *activityStage) metadata(ctx context.Context, issues []models.IssueRecord, pulls []models.PullRecord, knownServices []string, labelCounts map[string]int) models.ActivityMetadata {
	authorCounts := make(map[string]int)
	assigneeCounts := make(map[string]int)
	for _, issue := range issues {
		if issue.Author != "" {
			authorCounts[issue.Author]++
		}
		for _, assignee := range issue.Assignees {
			assigneeCounts[assignee]++
		}
	}
	for _, pr := range pulls {
		if pr.Author != "" {
			authorCounts[pr.Author]++
		}
		for _, assignee := range pr.Assignees {
			assigneeCounts[assignee]++
		}
	}

	return models.ActivityMetadata{
		CodeOwners:         rankByCount(assigneeCounts, 10),
		ActiveContributors: rankByCount(authorCounts, 15),
		AffectedServices:   matchAffectedServices(knownServices, issues),
		CommonTechnologies: a.commonTechnologies(ctx, issues, labelCounts),
		IssueLabels:        labelCounts,
	}
}

// matchAffectedServices scans issue titles and bodies for the service names
// discovered in stage one, case-insensitively, preserving discovery order.
func matchAffectedServices(knownServices []string, issues []models.IssueRecord) []string {
	affected := []string{}
	for _, name := range knownServices {
		needle := strings.ToLower(name)
		if needle == "" {
			continue
		}
		for _, issue := range issues {
			haystack := strings.ToLower(issue.Title + " " + issue.Body)
			if strings.Contains(haystack, needle) {
				affected = append(affected, name)
				break
			}
		}
	}
	return affected
}

func (a *activityStage) commonTechnologies(ctx context.Context, issues []models.IssueRecord, labelCounts map[string]int) []string {
	if len(issues) == 0 {
		return []string{}
	}
	titles := make([]string, 0, len(issues))
	for _, issue := range head(issues, 20) {
		titles = append(titles, issue.Title)
	}
	labelJSON, _ := json.Marshal(labelCounts)
	titleJSON, _ := json.Marshal(titles)

	prompt := fmt.Sprintf(`These are issue titles and the label distribution of a repository:

Titles:
%s

Labels:
%s

Return JSON:
{"common_technologies": ["tech1", "tech2"]}`, titleJSON, labelJSON)

	response, err := a.reasoner.Complete(ctx, "You are a metadata extraction expert. Return only valid JSON.", prompt)
	if err != nil {
		logrus.Warnf("Technology extraction call failed: %v", err)
		a.soft = true
		return []string{}
	}
	var raw struct {
		CommonTechnologies []string `json:"common_technologies"`
	}
	if err := jsonutil.ExtractObject(response, &raw); err != nil {
		return []string{}
	}
	return orEmpty(raw.CommonTechnologies)
}

// identifyPatterns asks the reasoning service for recurring themes over the
// categorized buckets and metadata; empty lists on failure.
func (a *activityStage) identifyPatterns(ctx context.Context, categorized models.Categorized, metadata models.ActivityMetadata) models.IssuePatterns {
	empty := models.IssuePatterns{
		CommonBugAreas:           []string{},
		FrequentFeatureRequests:  []string{},
		PainPoints:               []string{},
		ImprovementOpportunities: []string{},
	}
	if total(categorized) == 0 {
		return empty
	}

	categorizedJSON, _ := json.Marshal(categorized)
	metadataJSON, _ := json.Marshal(metadata)
	prompt := fmt.Sprintf(`Analyze these categorized issues to identify patterns:

Categorized Issues:
%s

Metadata:
%s

Identify patterns and return JSON:
{
  "common_bug_areas": ["area1", "area2"],
  "frequent_feature_requests": ["feature type 1", "feature type 2"],
  "pain_points": ["pain point 1", "pain point 2"],
  "improvement_opportunities": ["opportunity 1", "opportunity 2"]
}`, truncate(string(categorizedJSON), 3000), string(metadataJSON))

	response, err := a.reasoner.Complete(ctx, "You are a pattern analysis expert. Return only valid JSON.", prompt)
	if err != nil {
		logrus.Warnf("Pattern identification call failed: %v", err)
		a.soft = true
		return empty
	}
	var patterns models.IssuePatterns
	if err := jsonutil.ExtractObject(response, &patterns); err != nil {
		logrus.Warn("Pattern identification returned no parseable JSON")
		return empty
	}
	patterns.CommonBugAreas = orEmpty(patterns.CommonBugAreas)
	patterns.FrequentFeatureRequests = orEmpty(patterns.FrequentFeatureRequests)
	patterns.PainPoints = orEmpty(patterns.PainPoints)
	patterns.ImprovementOpportunities = orEmpty(patterns.ImprovementOpportunities)
	return patterns
}

func summarize(issues []models.IssueRecord, pulls []models.PullRecord) models.ActivitySummary {
	summary := models.ActivitySummary{
		TotalIssues: len(issues),
		TotalPRs:    len(pulls),
	}
	for _, issue := range issues {
		if issue.State == "open" {
			summary.TotalOpenIssues++
		} else {
			summary.TotalClosedIssues++
		}
	}
	for _, pr := range pulls {
		if pr.State == "open" {
			summary.OpenPRs++
		}
		if pr.MergedAt != "" {
			summary.MergedPRs++
		}
	}
	return summary
}

func labelDistribution(issues []models.IssueRecord) map[string]int {
	counts := make(map[string]int)
	for _, issue := range issues {
		for _, label := range issue.Labels {
			counts[label]++
		}
	}
	return counts
}

func computeStatistics(issues []models.IssueRecord, pulls []models.PullRecord, labelCounts map[string]int) models.ActivityStatistics {
	milestones := make(map[string]int)
	for _, issue := range issues {
		if issue.Milestone != "" {
			milestones[issue.Milestone]++
		}
	}
	stats := models.ActivityStatistics{
		LabelDistribution:     labelCounts,
		MilestoneDistribution: milestones,
		PRStatistics:          models.PRStatistics{Total: len(pulls)},
	}
	for _, pr := range pulls {
		if pr.State == "open" {
			stats.PRStatistics.Open++
		}
		if pr.MergedAt != "" {
			stats.PRStatistics.Merged++
		}
		if pr.Draft {
			stats.PRStatistics.Draft++
		}
		if len(pr.Assignees) > 0 {
			stats.PRStatistics.WithAssignees++
		}
	}
	return stats
}

func computeInsights(issues []models.IssueRecord, pulls []models.PullRecord, labelCounts map[string]int) models.ActivityInsights {
	discussed := make([]models.IssueRecord, 0, len(issues))
	for _, issue := range issues {
		if issue.Comments > 5 {
			discussed = append(discussed, issue)
		}
	}
	sort.SliceStable(discussed, func(i, j int) bool { return discussed[i].Comments > discussed[j].Comments })

	recent := append([]models.IssueRecord{}, issues...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].UpdatedAt > recent[j].UpdatedAt })

	insights := models.ActivityInsights{
		HighlyDiscussedIssues: summaries(head(discussed, 10)),
		RecentlyActiveIssues:  summaries(head(recent, 10)),
		MostUsedLabels:        rankByCount(labelCounts, 10),
	}
	for _, issue := range issues {
		if issue.State == "open" && len(issue.Assignees) == 0 {
			insights.UnassignedOpenIssueCount++
		}
	}
	for _, pr := range pulls {
		if pr.Draft {
			insights.DraftPRCount++
		}
		if pr.State == "open" && len(pr.RequestedReviewers) == 0 {
			insights.PRsAwaitingReviewCount++
		}
	}
	return insights
}

func summaries(issues []models.IssueRecord) []models.IssueSummary {
	out := make([]models.IssueSummary, 0, len(issues))
	for _, issue := range issues {
		out = append(out, models.IssueSummary{Number: issue.Number, Title: issue.Title, Comments: issue.Comments})
	}
	return out
}

// rankByCount orders keys by descending count, breaking ties alphabetically
// so identical inputs always rank identically.
func rankByCount(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func total(categorized models.Categorized) int {
	n := 0
	for _, bucket := range categorized {
		n += len(bucket)
	}
	return n
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
