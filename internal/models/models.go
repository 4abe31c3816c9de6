// Package models holds the data types shared between the remote data client
// and the analysis workflow, plus the shape of the final JSON report.
package models

import "errors"

// ErrNotFound reports an expected, tolerated absence (missing file, missing
// directory). Callers treat it as "no data" and continue.
var ErrNotFound = errors.New("not found")

// RepoRef identifies the repository under analysis. Immutable once set.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// URL returns the canonical browse URL for the repository.
func (r RepoRef) URL() string {
	return "https://github.com/" + r.Owner + "/" + r.Name
}

// Service kinds. Anything the reasoning service reports outside this set is
// normalized to KindUnknown.
const (
	KindAPI               = "api"
	KindWebApp            = "webapp"
	KindLibrary           = "library"
	KindBackgroundService = "background-service"
	KindUnknown           = "unknown"
)

// ServiceDescriptor describes one discovered application or library
// component. Immutable once produced.
type ServiceDescriptor struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Dependencies []string `json:"dependencies"`
	Kind         string   `json:"type"`
	Port         *int     `json:"port"`
}

// ConnectionEdge is a best-effort relationship between two services. From
// and To need not resolve to a known ServiceDescriptor.
type ConnectionEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Method string `json:"method"`
}

// ArchitecturePatterns summarizes cross-cutting observations about the
// repository's structure.
type ArchitecturePatterns struct {
	SharedTechnologies  []string `json:"shared_technologies"`
	CommunicationStyles []string `json:"communication_styles"`
	ArchitecturePattern string   `json:"architecture_pattern"`
}

// MetadataFile records whether a well-known repository file exists.
type MetadataFile struct {
	Exists  bool   `json:"exists"`
	Path    string `json:"path,omitempty"`
	Preview string `json:"content_preview,omitempty"`
}

// WorkflowFile is one CI workflow definition found under .github/workflows.
type WorkflowFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// RepoMetadata collects mechanical facts about the repository that need no
// reasoning-service interpretation.
type RepoMetadata struct {
	License       MetadataFile   `json:"license"`
	Contributing  MetadataFile   `json:"contributing"`
	CodeOfConduct MetadataFile   `json:"code_of_conduct"`
	Security      MetadataFile   `json:"security"`
	Changelog     MetadataFile   `json:"changelog"`
	CIWorkflows   []WorkflowFile `json:"ci_cd_workflows"`
	Docker        DockerSupport  `json:"docker_support"`
	Documentation DocSupport     `json:"documentation"`
	Testing       TestSupport    `json:"testing"`
}

type DockerSupport struct {
	Dockerfile    bool `json:"dockerfile"`
	DockerCompose bool `json:"docker_compose"`
}

type DocSupport struct {
	HasDocsFolder bool `json:"has_docs_folder"`
}

type TestSupport struct {
	HasTestDirectory bool `json:"has_test_directory"`
}

// StructureResult is the output of the structure-discovery stage.
type StructureResult struct {
	Overview    string               `json:"overview"`
	Metadata    RepoMetadata         `json:"metadata"`
	Services    []ServiceDescriptor  `json:"services"`
	Connections []ConnectionEdge     `json:"connections"`
	Patterns    ArchitecturePatterns `json:"patterns"`
	TechStack   []string             `json:"tech_stack"`
}

// IssueRecord is a normalized issue. Sourced verbatim from the remote data
// client, never mutated after parsing; the body is truncated at parse time.
type IssueRecord struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	State     string   `json:"state"`
	Labels    []string `json:"labels"`
	Author    string   `json:"author"`
	Assignees []string `json:"assignees"`
	Comments  int      `json:"comments"`
	Body      string   `json:"body"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	ClosedAt  string   `json:"closed_at,omitempty"`
	Milestone string   `json:"milestone,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// PullRecord is a normalized pull request.
type PullRecord struct {
	Number             int      `json:"number"`
	Title              string   `json:"title"`
	State              string   `json:"state"`
	Labels             []string `json:"labels"`
	Author             string   `json:"author"`
	Assignees          []string `json:"assignees"`
	RequestedReviewers []string `json:"requested_reviewers"`
	Draft              bool     `json:"draft"`
	Body               string   `json:"body"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	MergedAt           string   `json:"merged_at,omitempty"`
	ClosedAt           string   `json:"closed_at,omitempty"`
	Head               string   `json:"head,omitempty"`
	Base               string   `json:"base,omitempty"`
	URL                string   `json:"url,omitempty"`
}

// Categories is the fixed, exhaustive set of issue buckets. Categorization
// is a partition: every issue lands in exactly one.
var Categories = []string{"bugs", "features", "enhancements", "documentation", "questions", "other"}

// IssueSummary is the compact per-issue entry stored in a category bucket.
type IssueSummary struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Comments int    `json:"comments,omitempty"`
}

// Categorized maps category name to its ordered bucket of issue summaries.
type Categorized map[string][]IssueSummary

// EmptyCategorized returns a Categorized with every category present and
// empty, so the report always carries all six keys.
func EmptyCategorized() Categorized {
	c := make(Categorized, len(Categories))
	for _, name := range Categories {
		c[name] = []IssueSummary{}
	}
	return c
}

// ActivitySummary holds headline counts over the fetched issues and PRs.
type ActivitySummary struct {
	TotalIssues       int `json:"total_issues"`
	TotalOpenIssues   int `json:"total_open_issues"`
	TotalClosedIssues int `json:"total_closed_issues"`
	TotalPRs          int `json:"total_prs"`
	OpenPRs           int `json:"open_prs"`
	MergedPRs         int `json:"merged_prs"`
}

// ActivityMetadata holds ownership and label facts. CodeOwners and
// ActiveContributors are exact frequency-ranked tallies, never estimated.
type ActivityMetadata struct {
	CodeOwners         []string       `json:"code_owners"`
	ActiveContributors []string       `json:"active_contributors"`
	AffectedServices   []string       `json:"affected_services"`
	CommonTechnologies []string       `json:"common_technologies"`
	IssueLabels        map[string]int `json:"issue_labels"`
}

// PRStatistics breaks the fetched pull requests down by state.
type PRStatistics struct {
	Total         int `json:"total"`
	Open          int `json:"open"`
	Merged        int `json:"merged"`
	Draft         int `json:"draft"`
	WithAssignees int `json:"with_assignees"`
}

// ActivityStatistics holds deterministic distributions over issues and PRs.
type ActivityStatistics struct {
	LabelDistribution     map[string]int `json:"label_distribution"`
	MilestoneDistribution map[string]int `json:"milestone_distribution"`
	PRStatistics          PRStatistics   `json:"pr_statistics"`
}

// ActivityInsights surfaces noteworthy issues and backlog signals.
type ActivityInsights struct {
	HighlyDiscussedIssues    []IssueSummary `json:"highly_discussed_issues"`
	RecentlyActiveIssues     []IssueSummary `json:"recently_active_issues"`
	UnassignedOpenIssueCount int            `json:"unassigned_open_issues_count"`
	DraftPRCount             int            `json:"draft_prs_count"`
	PRsAwaitingReviewCount   int            `json:"prs_awaiting_review_count"`
	MostUsedLabels           []string       `json:"most_used_labels"`
}

// IssuePatterns holds the free-text pattern labels produced by the reasoning
// service. All fields fall back to empty lists when the service misbehaves.
type IssuePatterns struct {
	CommonBugAreas           []string `json:"common_bug_areas"`
	FrequentFeatureRequests  []string `json:"frequent_feature_requests"`
	PainPoints               []string `json:"pain_points"`
	ImprovementOpportunities []string `json:"improvement_opportunities"`
}

// ActivityResult is the output of the issue/PR-analysis stage.
type ActivityResult struct {
	Summary      ActivitySummary    `json:"summary"`
	Categorized  Categorized        `json:"categorized"`
	Metadata     ActivityMetadata   `json:"metadata"`
	Statistics   ActivityStatistics `json:"statistics"`
	Insights     ActivityInsights   `json:"insights"`
	Patterns     IssuePatterns      `json:"patterns"`
	RecentIssues []IssueRecord      `json:"recent_issues"`
	RecentPRs    []PullRecord       `json:"recent_prs"`
}

// ReportMetadata describes one analysis run.
type ReportMetadata struct {
	AnalyzedAt      string   `json:"analyzed_at"`
	Repository      RepoRef  `json:"repository"`
	RepositoryURL   string   `json:"repository_url"`
	AnalyzerVersion string   `json:"analyzer_version"`
	DegradedStages  []string `json:"degraded_stages,omitempty"`
}

// FinalReport is the sole externally persisted artifact.
type FinalReport struct {
	Metadata   ReportMetadata  `json:"analysis_metadata"`
	Repository StructureResult `json:"repository"`
	Issues     ActivityResult  `json:"issues"`
}
