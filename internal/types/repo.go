package types

import "time"

// Commit is one entry of recent repository activity.
type Commit struct {
	SHA       string    `json:"sha"`
	Message   string    `json:"message"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PullRequest is an open or recently closed pull request.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	URL    string `json:"url,omitempty"`
	Author string `json:"author,omitempty"`
}

// RepoSummary is the repository activity the host reports for a project.
type RepoSummary struct {
	Repo         string        `json:"repo"`
	Commits      []Commit      `json:"commits"`
	PullRequests []PullRequest `json:"pull_requests"`
}
