package models

import (
	"errors"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
}

// PullRequest is one remote PR as returned by a list, search or detail call.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	User      User       `json:"user"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	URL       string     `json:"url"`
	HTMLURL   string     `json:"html_url"`
}

type Branch struct {
	Name          string `json:"name"`
	LastCommitSHA string `json:"last_commit_sha"`
	LastCommitURL string `json:"last_commit_url"`
}

type Commit struct {
	SHA        string    `json:"sha"`
	Message    string    `json:"message"`
	AuthorName string    `json:"author_name"`
	Date       time.Time `json:"date"`
	Parents    int       `json:"parents"`
	URL        string    `json:"url"`
}

type Contributor struct {
	ID            int64  `json:"id"`
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
}

// MetricsResult is the dashboard metrics response, assembled once per request.
type MetricsResult struct {
	Summary      Summary            `json:"summary"`
	Trends       Trends             `json:"trends"`
	Contributors []ContributorStats `json:"contributors"`
	TimeToMerge  []TimeToMerge      `json:"timeToMerge"`
}

type Summary struct {
	// TotalPRs counts the all-state PR list and ignores the time range.
	TotalPRs int `json:"totalPRs"`
	// TotalPRsInRange counts PRs created inside the time range.
	TotalPRsInRange     int     `json:"totalPRsInRange"`
	MergedPRs           int     `json:"mergedPRs"`
	AvgTimeToMergeHours float64 `json:"avgTimeToMergeHours"`
	StartDate           string  `json:"startDate"`
	EndDate             string  `json:"endDate"`
	Truncated           bool    `json:"truncated,omitempty"`
}

type Trends struct {
	PRsByWeek []WeekBucket `json:"prsByWeek"`
}

type WeekBucket struct {
	Week    string         `json:"week"`
	Count   int            `json:"count"`
	Authors map[string]int `json:"authors"`
}

// ContributorStats is the dashboard-metrics view of a contributor.
type ContributorStats struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
	TotalPRs  int    `json:"totalPRs"`
	MergedPRs int    `json:"mergedPRs"`
}

type TimeToMerge struct {
	PRNumber         int       `json:"prNumber"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	CreatedAt        time.Time `json:"createdAt"`
	MergedAt         time.Time `json:"mergedAt"`
	TimeToMergeHours float64   `json:"timeToMergeHours"`
}

// RepoContributor is the contributor-list view of a contributor.
type RepoContributor struct {
	ID            int64  `json:"id"`
	Login         string `json:"login"`
	AvatarURL     string `json:"avatarUrl"`
	Contributions int    `json:"contributions"`
}

type CommitType string

const (
	CommitTypeCommit CommitType = "commit"
	CommitTypeMerge  CommitType = "merge"
)

type Classification struct {
	Type CommitType
	// BranchMerge marks merges whose message names a target branch.
	BranchMerge bool
}

type BranchActivity struct {
	ActiveBranches int          `json:"activeBranches"`
	BranchList     []BranchInfo `json:"branchList"`
	RecentActivity []MergeEvent `json:"recentActivity"`
	HasMore        bool         `json:"hasMore,omitempty"`
}

type BranchInfo struct {
	Name          string `json:"name"`
	IsDefault     bool   `json:"isDefault"`
	LastCommitSHA string `json:"lastCommitSha"`
	LastCommitURL string `json:"lastCommitUrl"`
}

type MergeEvent struct {
	SHA         string     `json:"sha"`
	Message     string     `json:"message"`
	Date        time.Time  `json:"date"`
	Author      string     `json:"author"`
	Type        CommitType `json:"type"`
	BranchMerge bool       `json:"branchMerge,omitempty"`
}

type ContributorMetrics struct {
	Summary        ContributorSummary `json:"summary"`
	RecentPRs      []RecentPR         `json:"recentPRs"`
	ComparisonData []WeekComparison   `json:"comparisonData"`
}

type ContributorSummary struct {
	TotalPRs           int     `json:"totalPRs"`
	MergedPRs          int     `json:"mergedPRs"`
	TeamTotalMergedPRs int     `json:"teamTotalMergedPRs"`
	PRMergeRate        float64 `json:"prMergeRate"`
}

type RecentPR struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	URL       string     `json:"url"`
}

type WeekComparison struct {
	Week    string  `json:"week"`
	UserPRs int     `json:"userPRs"`
	TeamPRs int     `json:"teamPRs"`
	TeamAvg float64 `json:"teamAvg"`
}
