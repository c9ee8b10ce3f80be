package metrics

import (
	"context"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/perbu/repo-metrics/bucket"
	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/models"
	"github.com/perbu/repo-metrics/timerange"
	"golang.org/x/sync/errgroup"
)

const recentPRLimit = 5

type ContributorRequest struct {
	Request
	Username string
}

func (r *ContributorRequest) Validate() error {
	if err := r.Request.Validate(); err != nil {
		return err
	}
	err := validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, validation.Match(loginPattern)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// ContributorMetrics compares one author's merged PRs per week against the
// whole repository over the same range.
func (a *Aggregator) ContributorMetrics(ctx context.Context, req ContributorRequest) (*models.ContributorMetrics, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client, err := a.clients(req.Credential, req.Owner, req.Repo)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	tr := timerange.Resolve(req.TimeRange, a.cfg.Now())
	queries := []string{
		github.AuthorCreatedQuery(req.Owner, req.Repo, req.Username, tr),
		github.AuthorMergedQuery(req.Owner, req.Repo, req.Username, tr),
		github.MergedQuery(req.Owner, req.Repo, tr),
	}
	results := make([]github.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := client.SearchPullRequests(gctx, q)
			if err != nil {
				return fmt.Errorf("failed to search pull requests: %w", err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	userPRs, userMerged, teamMerged := results[0], results[1], results[2]

	strategy := req.Strategy
	if strategy == nil {
		strategy = a.cfg.Strategy
	}

	summary := models.ContributorSummary{
		TotalPRs:           userPRs.Total,
		MergedPRs:          userMerged.Total,
		TeamTotalMergedPRs: teamMerged.Total,
	}
	if userPRs.Total > 0 {
		summary.PRMergeRate = float64(userMerged.Total) / float64(userPRs.Total) * 100
	}

	recent := make([]models.RecentPR, 0, recentPRLimit)
	for _, pr := range userPRs.Items[:min(len(userPRs.Items), recentPRLimit)] {
		recent = append(recent, models.RecentPR{
			Number:    pr.Number,
			Title:     pr.Title,
			State:     pr.State,
			CreatedAt: pr.CreatedAt,
			ClosedAt:  pr.ClosedAt,
			URL:       pr.HTMLURL,
		})
	}

	return &models.ContributorMetrics{
		Summary:        summary,
		RecentPRs:      recent,
		ComparisonData: compareWeeks(strategy, userMerged.Items, teamMerged.Items),
	}, nil
}

func compareWeeks(strategy bucket.Strategy, user, team []models.PullRequest) []models.WeekComparison {
	userWeeks := bucket.New(strategy)
	for _, pr := range user {
		if ts, ok := mergeTime(pr); ok {
			userWeeks.Fold(ts, pr.User.Login)
		}
	}
	teamWeeks := bucket.New(strategy)
	for _, pr := range team {
		if ts, ok := mergeTime(pr); ok {
			teamWeeks.Fold(ts, pr.User.Login)
		}
	}

	userCounts := userWeeks.Counts()
	teamCounts := teamWeeks.Counts()

	weeks := make([]string, 0, len(userCounts)+len(teamCounts))
	for w := range teamCounts {
		weeks = append(weeks, w)
	}
	for w := range userCounts {
		if _, ok := teamCounts[w]; !ok {
			weeks = append(weeks, w)
		}
	}
	sort.Strings(weeks)

	teamTotal := float64(max(len(team), 1))
	out := make([]models.WeekComparison, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, models.WeekComparison{
			Week:    w,
			UserPRs: userCounts[w],
			TeamPRs: teamCounts[w],
			TeamAvg: float64(teamCounts[w]) / teamTotal,
		})
	}
	return out
}
