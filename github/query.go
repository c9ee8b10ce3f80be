package github

import (
	"fmt"

	"github.com/perbu/repo-metrics/timerange"
)

// MergedQuery matches PRs merged inside tr.
func MergedQuery(owner, repo string, tr timerange.TimeRange) string {
	return fmt.Sprintf("repo:%s/%s is:pr is:merged merged:%s", owner, repo, tr.SearchQualifier())
}

// CreatedQuery matches PRs opened inside tr, in any state.
func CreatedQuery(owner, repo string, tr timerange.TimeRange) string {
	return fmt.Sprintf("repo:%s/%s is:pr created:%s", owner, repo, tr.SearchQualifier())
}

func AuthorCreatedQuery(owner, repo, author string, tr timerange.TimeRange) string {
	return fmt.Sprintf("repo:%s/%s is:pr author:%s created:%s", owner, repo, author, tr.SearchQualifier())
}

func AuthorMergedQuery(owner, repo, author string, tr timerange.TimeRange) string {
	return fmt.Sprintf("repo:%s/%s is:pr is:merged author:%s merged:%s", owner, repo, author, tr.SearchQualifier())
}
