package models

// DirEntry is one entry of a remote directory listing.
type DirEntry struct {
	Name string
	Path string
	Type string // "dir" or "file"
}

// IsDir reports whether the entry is a directory.
func (e DirEntry) IsDir() bool {
	return e.Type == "dir"
}

// RawIssue is an issue as returned by the remote data client, before
// normalization. Missing label/assignee arrays stay nil here; the activity
// stage applies defaults and truncation.
type RawIssue struct {
	Number        int
	Title         string
	State         string
	Body          string
	Author        string
	Labels        []string
	Assignees     []string
	Comments      int
	CreatedAt     string
	UpdatedAt     string
	ClosedAt      string
	Milestone     string
	URL           string
	IsPullRequest bool
}

// RawPR is a pull request as returned by the remote data client.
type RawPR struct {
	Number             int
	Title              string
	State              string
	Body               string
	Author             string
	Labels             []string
	Assignees          []string
	RequestedReviewers []string
	Draft              bool
	CreatedAt          string
	UpdatedAt          string
	MergedAt           string
	ClosedAt           string
	Head               string
	Base               string
	URL                string
}
