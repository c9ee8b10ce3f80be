package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v56/github"
	"github.com/perbu/repo-metrics/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultPerPage  = 100
	DefaultMaxPages = 10

	// SearchResultLimit is the most results the search API returns for one
	// query; asking for a page beyond it fails with 422.
	SearchResultLimit = 1000
)

type Options struct {
	// BaseURL overrides the public API root, e.g. for GitHub Enterprise.
	BaseURL string
	// RateLimit is the sustained request rate; zero means one per second.
	RateLimit rate.Limit
	Burst     int
	PerPage   int
	// MaxPages caps page traversal per call. One reproduces first-page-only
	// listings.
	MaxPages int
	// Limiter, when set, is shared instead of building one from RateLimit.
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// List is one paginated listing. HasMore is set when the page cap stopped
// traversal before the remote ran out of pages.
type List[T any] struct {
	Items   []T
	HasMore bool
}

type SearchResult struct {
	Total      int
	Incomplete bool
	Items      []models.PullRequest
	HasMore    bool
}

// Client talks to one repository with one caller credential.
type Client struct {
	client   *github.Client
	owner    string
	repo     string
	limiter  *rate.Limiter
	perPage  int
	maxPages int
}

func NewClient(token, owner, repo string, opts Options) (*Client, error) {
	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	client := github.NewClient(tc)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = u
	}

	limiter := opts.Limiter
	if limiter == nil {
		limit := opts.RateLimit
		if limit <= 0 {
			limit = 1
		}
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(limit, burst)
	}

	perPage := opts.PerPage
	if perPage <= 0 || perPage > DefaultPerPage {
		perPage = DefaultPerPage
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	return &Client{
		client:   client,
		owner:    owner,
		repo:     repo,
		limiter:  limiter,
		perPage:  perPage,
		maxPages: maxPages,
	}, nil
}

func (c *Client) endpoint(suffix string) string {
	return fmt.Sprintf("repos/%s/%s/%s", c.owner, c.repo, suffix)
}

func (c *Client) wait(ctx context.Context, endpoint string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fetchError(endpoint, ctxErr)
		}
		// the limiter fails early when the next token lands past the deadline
		if _, ok := ctx.Deadline(); ok {
			return fetchError(endpoint, fmt.Errorf("%w: %v", context.DeadlineExceeded, err))
		}
		return fetchError(endpoint, fmt.Errorf("rate limiter error: %w", err))
	}
	return nil
}

func collect[S, T any](ctx context.Context, c *Client, endpoint string,
	fetch func(opts github.ListOptions) ([]S, *github.Response, error),
	convert func(S) T,
) (List[T], error) {
	out := List[T]{Items: make([]T, 0)}
	opts := github.ListOptions{PerPage: c.perPage}

	for page := 1; ; page++ {
		if err := c.wait(ctx, endpoint); err != nil {
			return List[T]{}, err
		}

		items, resp, err := fetch(opts)
		if err != nil {
			return List[T]{}, fetchError(endpoint, err)
		}

		for _, item := range items {
			out.Items = append(out.Items, convert(item))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		if page >= c.maxPages {
			out.HasMore = true
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// ListPullRequests lists PRs in the given state ("open", "closed", "all"),
// newest first.
func (c *Client) ListPullRequests(ctx context.Context, state string) (List[models.PullRequest], error) {
	return collect(ctx, c, c.endpoint("pulls"),
		func(lo github.ListOptions) ([]*github.PullRequest, *github.Response, error) {
			return c.client.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
				State:       state,
				Sort:        "created",
				Direction:   "desc",
				ListOptions: lo,
			})
		},
		convertPR,
	)
}

func (c *Client) GetPRDetails(ctx context.Context, prNumber int) (*models.PullRequest, error) {
	endpoint := c.endpoint(fmt.Sprintf("pulls/%d", prNumber))
	if err := c.wait(ctx, endpoint); err != nil {
		return nil, err
	}

	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, prNumber)
	if err != nil {
		return nil, fetchError(endpoint, err)
	}

	converted := convertPR(pr)
	return &converted, nil
}

// SearchPullRequests runs an issue search query. Total is the remote's
// total_count, which can exceed len(Items) when the page cap is reached.
func (c *Client) SearchPullRequests(ctx context.Context, query string) (SearchResult, error) {
	const endpoint = "search/issues"
	result := SearchResult{Items: make([]models.PullRequest, 0)}
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: c.perPage}}

	for page := 1; ; page++ {
		if err := c.wait(ctx, endpoint); err != nil {
			return SearchResult{}, err
		}

		res, resp, err := c.client.Search.Issues(ctx, query, opts)
		if err != nil {
			return SearchResult{}, fetchError(endpoint, err)
		}

		result.Total = res.GetTotal()
		result.Incomplete = result.Incomplete || res.GetIncompleteResults()
		for _, issue := range res.Issues {
			result.Items = append(result.Items, convertIssue(issue))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		if page >= c.maxPages || page*c.perPage >= SearchResultLimit {
			result.HasMore = true
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

func (c *Client) ListBranches(ctx context.Context) (List[models.Branch], error) {
	return collect(ctx, c, c.endpoint("branches"),
		func(lo github.ListOptions) ([]*github.Branch, *github.Response, error) {
			return c.client.Repositories.ListBranches(ctx, c.owner, c.repo, &github.BranchListOptions{
				ListOptions: lo,
			})
		},
		func(b *github.Branch) models.Branch {
			return models.Branch{
				Name:          b.GetName(),
				LastCommitSHA: b.GetCommit().GetSHA(),
				LastCommitURL: b.GetCommit().GetURL(),
			}
		},
	)
}

// ListCommits lists commits reachable from the default branch, newest first.
func (c *Client) ListCommits(ctx context.Context) (List[models.Commit], error) {
	return collect(ctx, c, c.endpoint("commits"),
		func(lo github.ListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
			return c.client.Repositories.ListCommits(ctx, c.owner, c.repo, &github.CommitsListOptions{
				ListOptions: lo,
			})
		},
		convertCommit,
	)
}

func (c *Client) ListContributors(ctx context.Context) (List[models.Contributor], error) {
	return collect(ctx, c, c.endpoint("contributors"),
		func(lo github.ListOptions) ([]*github.Contributor, *github.Response, error) {
			return c.client.Repositories.ListContributors(ctx, c.owner, c.repo, &github.ListContributorsOptions{
				ListOptions: lo,
			})
		},
		func(ct *github.Contributor) models.Contributor {
			return models.Contributor{
				ID:            ct.GetID(),
				Login:         ct.GetLogin(),
				AvatarURL:     ct.GetAvatarURL(),
				Contributions: ct.GetContributions(),
			}
		},
	)
}

func convertPR(pr *github.PullRequest) models.PullRequest {
	modelPR := models.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		User:      convertUser(pr.GetUser()),
		CreatedAt: pr.GetCreatedAt().Time,
		URL:       pr.GetURL(),
		HTMLURL:   pr.GetHTMLURL(),
	}

	if pr.ClosedAt != nil {
		t := pr.ClosedAt.Time
		modelPR.ClosedAt = &t
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		modelPR.MergedAt = &t
	}

	return modelPR
}

func convertIssue(issue *github.Issue) models.PullRequest {
	modelPR := models.PullRequest{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		State:     issue.GetState(),
		User:      convertUser(issue.GetUser()),
		CreatedAt: issue.GetCreatedAt().Time,
		URL:       issue.GetPullRequestLinks().GetURL(),
		HTMLURL:   issue.GetHTMLURL(),
	}

	if issue.ClosedAt != nil {
		t := issue.ClosedAt.Time
		modelPR.ClosedAt = &t
	}

	return modelPR
}

func convertCommit(commit *github.RepositoryCommit) models.Commit {
	modelCommit := models.Commit{
		SHA:     commit.GetSHA(),
		Message: commit.GetCommit().GetMessage(),
		Parents: len(commit.Parents),
		URL:     commit.GetHTMLURL(),
	}

	if author := commit.GetCommit().GetAuthor(); author != nil {
		modelCommit.AuthorName = author.GetName()
		modelCommit.Date = author.GetDate().Time
	}

	return modelCommit
}

func convertUser(user *github.User) models.User {
	return models.User{
		Login:     user.GetLogin(),
		ID:        user.GetID(),
		AvatarURL: user.GetAvatarURL(),
	}
}
