// Package metrics builds the dashboard's pull request metrics for one
// repository and time range.
package metrics

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/perbu/repo-metrics/bucket"
	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/models"
	"github.com/perbu/repo-metrics/timerange"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSampleSize        = 15
	DefaultDetailConcurrency = 3
)

var loginPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*(\[bot\])?$`)

// Client is the slice of the remote API the aggregator needs.
type Client interface {
	ListPullRequests(ctx context.Context, state string) (github.List[models.PullRequest], error)
	SearchPullRequests(ctx context.Context, query string) (github.SearchResult, error)
	GetPRDetails(ctx context.Context, prNumber int) (*models.PullRequest, error)
}

// ClientFunc builds a Client bound to one credential and repository.
type ClientFunc func(credential, owner, repo string) (Client, error)

type Config struct {
	// SampleSize caps the PRs whose details are fetched for timing.
	SampleSize int
	// DetailConcurrency bounds in-flight detail fetches; 1 is sequential.
	DetailConcurrency int
	Strategy          bucket.Strategy
	Now               func() time.Time
}

type Aggregator struct {
	clients ClientFunc
	cfg     Config
	logger  *logger.Logger
}

func New(clients ClientFunc, cfg Config, log *logger.Logger) *Aggregator {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = DefaultDetailConcurrency
	}
	if cfg.Strategy == nil {
		cfg.Strategy = bucket.EpochWeek
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Aggregator{
		clients: clients,
		cfg:     cfg,
		logger:  log.Component("metrics"),
	}
}

type Request struct {
	Owner      string
	Repo       string
	TimeRange  string
	Credential string
	// Strategy overrides the configured bucketing for this request.
	Strategy bucket.Strategy
}

func (r *Request) Validate() error {
	ref := models.RepoRef{Owner: r.Owner, Repo: r.Repo}
	if err := ref.Validate(); err != nil {
		return err
	}
	err := validation.ValidateStruct(r,
		validation.Field(&r.Credential, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// Aggregate fetches the repository's pull requests and folds them into a
// MetricsResult. Failures of the bulk list and search calls are fatal;
// failed detail fetches only shrink the timing sample.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*models.MetricsResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client, err := a.clients(req.Credential, req.Owner, req.Repo)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	tr := timerange.Resolve(req.TimeRange, a.cfg.Now())
	log := a.logger.With("owner", req.Owner, "repo", req.Repo, "range", tr.Key)

	var (
		allPRs  github.List[models.PullRequest]
		merged  github.SearchResult
		created github.SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		allPRs, err = client.ListPullRequests(gctx, "all")
		if err != nil {
			return fmt.Errorf("failed to list pull requests: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		merged, err = client.SearchPullRequests(gctx, github.MergedQuery(req.Owner, req.Repo, tr))
		if err != nil {
			return fmt.Errorf("failed to search merged pull requests: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		created, err = client.SearchPullRequests(gctx, github.CreatedQuery(req.Owner, req.Repo, tr))
		if err != nil {
			return fmt.Errorf("failed to search created pull requests: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("fetched pull requests",
		"all", len(allPRs.Items),
		"merged", len(merged.Items),
		"created_total", created.Total)

	samples := a.sampleTimeToMerge(ctx, client, merged.Items)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation aborted: %w", err)
	}
	if dropped := min(len(merged.Items), a.cfg.SampleSize) - len(samples); dropped > 0 {
		log.Warn("timing sample degraded", "dropped", dropped, "sampled", len(samples))
	}

	strategy := req.Strategy
	if strategy == nil {
		strategy = a.cfg.Strategy
	}

	return &models.MetricsResult{
		Summary: models.Summary{
			TotalPRs:            len(allPRs.Items),
			TotalPRsInRange:     created.Total,
			MergedPRs:           len(merged.Items),
			AvgTimeToMergeHours: averageHours(samples),
			StartDate:           tr.StartDate,
			EndDate:             tr.EndDate,
			Truncated:           allPRs.HasMore || merged.HasMore,
		},
		Trends: models.Trends{
			PRsByWeek: weeklyTrend(strategy, merged.Items),
		},
		Contributors: contributorStats(merged.Items),
		TimeToMerge:  samples,
	}, nil
}

// sampleTimeToMerge fetches details for the first SampleSize merged PRs
// through a bounded worker pool. Results keep the input order.
func (a *Aggregator) sampleTimeToMerge(ctx context.Context, client Client, merged []models.PullRequest) []models.TimeToMerge {
	candidates := merged[:min(len(merged), a.cfg.SampleSize)]
	results := make([]*models.TimeToMerge, len(candidates))

	var g errgroup.Group
	g.SetLimit(a.cfg.DetailConcurrency)
	for i, pr := range candidates {
		g.Go(func() error {
			detail, err := client.GetPRDetails(ctx, pr.Number)
			if err != nil {
				a.logger.Warn("failed to fetch PR detail", "pr", pr.Number, "error", err)
				return nil
			}
			if detail.MergedAt == nil {
				a.logger.Debug("PR detail has no merge time", "pr", pr.Number)
				return nil
			}
			results[i] = &models.TimeToMerge{
				PRNumber:         detail.Number,
				Title:            detail.Title,
				Author:           detail.User.Login,
				CreatedAt:        detail.CreatedAt,
				MergedAt:         *detail.MergedAt,
				TimeToMergeHours: detail.MergedAt.Sub(detail.CreatedAt).Hours(),
			}
			return nil
		})
	}
	_ = g.Wait()

	samples := make([]models.TimeToMerge, 0, len(results))
	for _, r := range results {
		if r != nil {
			samples = append(samples, *r)
		}
	}
	return samples
}

func averageHours(samples []models.TimeToMerge) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.TimeToMergeHours
	}
	return sum / float64(len(samples))
}

// mergeTime is the timestamp a merged PR is bucketed by. Search results
// carry no merge time, so the close time stands in for it.
func mergeTime(pr models.PullRequest) (time.Time, bool) {
	switch {
	case pr.ClosedAt != nil:
		return *pr.ClosedAt, true
	case pr.MergedAt != nil:
		return *pr.MergedAt, true
	default:
		return time.Time{}, false
	}
}

func weeklyTrend(strategy bucket.Strategy, merged []models.PullRequest) []models.WeekBucket {
	b := bucket.New(strategy)
	for _, pr := range merged {
		if ts, ok := mergeTime(pr); ok {
			b.Fold(ts, pr.User.Login)
		}
	}
	return b.Buckets()
}

func contributorStats(merged []models.PullRequest) []models.ContributorStats {
	byLogin := make(map[string]*models.ContributorStats)
	for _, pr := range merged {
		login := pr.User.Login
		cs, ok := byLogin[login]
		if !ok {
			cs = &models.ContributorStats{Login: login, AvatarURL: pr.User.AvatarURL}
			byLogin[login] = cs
		}
		// only merged PRs are seen here, so both counters move together
		cs.TotalPRs++
		cs.MergedPRs++
	}

	out := make([]models.ContributorStats, 0, len(byLogin))
	for _, cs := range byLogin {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPRs != out[j].TotalPRs {
			return out[i].TotalPRs > out[j].TotalPRs
		}
		return out[i].Login < out[j].Login
	})
	return out
}
