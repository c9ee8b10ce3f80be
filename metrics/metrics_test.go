package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/perbu/repo-metrics/bucket"
	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type fakeClient struct {
	mu sync.Mutex

	all        []models.PullRequest
	merged     []models.PullRequest
	created    int
	details    map[int]*models.PullRequest
	listErr    error
	searchErr  error
	detailErrs map[int]error
	searches   map[string]github.SearchResult

	queries   []string
	attempted []int

	// detailDelay holds each detail call open so overlapping calls can be counted.
	detailDelay time.Duration
	inFlight    atomic.Int32
	peak        atomic.Int32
}

func (f *fakeClient) ListPullRequests(_ context.Context, state string) (github.List[models.PullRequest], error) {
	if f.listErr != nil {
		return github.List[models.PullRequest]{}, f.listErr
	}
	return github.List[models.PullRequest]{Items: f.all}, nil
}

func (f *fakeClient) SearchPullRequests(_ context.Context, query string) (github.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.searchErr != nil {
		return github.SearchResult{}, f.searchErr
	}
	if res, ok := f.searches[query]; ok {
		return res, nil
	}
	if strings.Contains(query, "is:merged") {
		return github.SearchResult{Total: len(f.merged), Items: f.merged}, nil
	}
	return github.SearchResult{Total: f.created}, nil
}

func (f *fakeClient) GetPRDetails(_ context.Context, n int) (*models.PullRequest, error) {
	f.mu.Lock()
	f.attempted = append(f.attempted, n)
	f.mu.Unlock()

	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.peak.Load()
		if current <= seen || f.peak.CompareAndSwap(seen, current) {
			break
		}
	}
	time.Sleep(f.detailDelay)

	if err := f.detailErrs[n]; err != nil {
		return nil, err
	}
	if d, ok := f.details[n]; ok {
		return d, nil
	}
	return nil, &github.RemoteFetchError{Endpoint: "pulls", StatusCode: 404, Message: "Not Found"}
}

func newAggregator(f *fakeClient, cfg Config) *Aggregator {
	cfg.Now = func() time.Time { return testNow }
	return New(func(credential, owner, repo string) (Client, error) {
		return f, nil
	}, cfg, logger.Discard())
}

func ptr(t time.Time) *time.Time { return &t }

// mergedFixture returns n merged PRs and matching details; PR i took i+1 hours.
func mergedFixture(n int) ([]models.PullRequest, map[int]*models.PullRequest) {
	var prs []models.PullRequest
	details := make(map[int]*models.PullRequest)
	for i := 0; i < n; i++ {
		created := testNow.AddDate(0, 0, -20).Add(time.Duration(i) * 24 * time.Hour)
		merged := created.Add(time.Duration(i+1) * time.Hour)
		author := fmt.Sprintf("dev%d", i%3)
		pr := models.PullRequest{
			Number:    100 + i,
			Title:     fmt.Sprintf("PR %d", i),
			State:     "closed",
			User:      models.User{Login: author, AvatarURL: "https://avatars/" + author},
			CreatedAt: created,
			ClosedAt:  ptr(merged),
		}
		prs = append(prs, pr)

		d := pr
		d.MergedAt = ptr(merged)
		details[pr.Number] = &d
	}
	return prs, details
}

func request() Request {
	return Request{Owner: "octo", Repo: "widgets", TimeRange: "1m", Credential: "tok"}
}

func TestAggregateScenario(t *testing.T) {
	merged, details := mergedFixture(20)
	all := append(append([]models.PullRequest{}, merged...), make([]models.PullRequest, 7)...)
	f := &fakeClient{all: all, merged: merged, details: details, created: 24}

	res, err := newAggregator(f, Config{}).Aggregate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 27, res.Summary.TotalPRs)
	assert.Equal(t, 24, res.Summary.TotalPRsInRange)
	assert.Equal(t, 20, res.Summary.MergedPRs)
	assert.Equal(t, "2024-04-15", res.Summary.StartDate)
	assert.Equal(t, "2024-05-15", res.Summary.EndDate)
	require.Len(t, res.TimeToMerge, 15)
	assert.Len(t, f.attempted, 15)

	// samples keep search order even with a concurrent pool
	for i, s := range res.TimeToMerge {
		assert.Equal(t, 100+i, s.PRNumber)
		assert.InDelta(t, float64(i+1), s.TimeToMergeHours, 1e-9)
	}
	// mean of 1..15
	assert.InDelta(t, 8.0, res.Summary.AvgTimeToMergeHours, 1e-9)

	total := 0
	for _, wb := range res.Trends.PRsByWeek {
		total += wb.Count
	}
	assert.Equal(t, 20, total, "every merged PR is bucketed, not only the sample")

	require.Len(t, res.Contributors, 3)
	assert.Equal(t, "dev0", res.Contributors[0].Login)
	assert.Equal(t, 7, res.Contributors[0].TotalPRs)
	assert.Equal(t, 7, res.Contributors[0].MergedPRs)
	assert.Equal(t, "https://avatars/dev0", res.Contributors[0].AvatarURL)
}

func TestAggregateSearchQueries(t *testing.T) {
	f := &fakeClient{}
	_, err := newAggregator(f, Config{}).Aggregate(context.Background(), request())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"repo:octo/widgets is:pr is:merged merged:2024-04-15..2024-05-15",
		"repo:octo/widgets is:pr created:2024-04-15..2024-05-15",
	}, f.queries)
}

func TestAggregateFewerThanCap(t *testing.T) {
	merged, details := mergedFixture(4)
	f := &fakeClient{merged: merged, details: details}

	res, err := newAggregator(f, Config{DetailConcurrency: 1}).Aggregate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101, 102, 103}, f.attempted)
	assert.Len(t, res.TimeToMerge, 4)
}

func TestAggregateBoundsDetailConcurrency(t *testing.T) {
	merged, details := mergedFixture(20)
	f := &fakeClient{merged: merged, details: details, detailDelay: 20 * time.Millisecond}

	res, err := newAggregator(f, Config{DetailConcurrency: 2}).Aggregate(context.Background(), request())
	require.NoError(t, err)

	assert.Len(t, f.attempted, DefaultSampleSize)
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
	assert.Greater(t, f.peak.Load(), int32(1))

	require.Len(t, res.TimeToMerge, DefaultSampleSize)
	for i, s := range res.TimeToMerge {
		assert.Equal(t, 100+i, s.PRNumber)
	}
}

func TestAggregateToleratesDetailFailures(t *testing.T) {
	merged, details := mergedFixture(5)
	f := &fakeClient{
		merged:  merged,
		details: details,
		detailErrs: map[int]error{
			102: &github.RemoteFetchError{Endpoint: "pulls/102", StatusCode: 500, Message: "boom"},
		},
	}

	res, err := newAggregator(f, Config{}).Aggregate(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, res.TimeToMerge, 4)
	for _, s := range res.TimeToMerge {
		assert.NotEqual(t, 102, s.PRNumber)
	}
	// mean of 1,2,4,5
	assert.InDelta(t, 3.0, res.Summary.AvgTimeToMergeHours, 1e-9)
	assert.Equal(t, 5, res.Summary.MergedPRs)
}

func TestAggregateEmptySample(t *testing.T) {
	merged, _ := mergedFixture(3)
	f := &fakeClient{merged: merged}

	res, err := newAggregator(f, Config{}).Aggregate(context.Background(), request())
	require.NoError(t, err)
	assert.Empty(t, res.TimeToMerge)
	assert.NotNil(t, res.TimeToMerge)
	assert.Zero(t, res.Summary.AvgTimeToMergeHours)
	assert.Equal(t, 3, res.Summary.MergedPRs)
}

func TestAggregateSkipsDetailsWithoutMergeTime(t *testing.T) {
	merged, details := mergedFixture(2)
	details[101].MergedAt = nil
	f := &fakeClient{merged: merged, details: details}

	res, err := newAggregator(f, Config{}).Aggregate(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, res.TimeToMerge, 1)
	assert.Equal(t, 100, res.TimeToMerge[0].PRNumber)
}

func TestAggregateBulkFailuresAreFatal(t *testing.T) {
	remote := &github.RemoteFetchError{Endpoint: "search/issues", StatusCode: 422, Message: "Validation Failed"}

	f := &fakeClient{searchErr: remote}
	_, err := newAggregator(f, Config{}).Aggregate(context.Background(), request())
	require.Error(t, err)
	var rfe *github.RemoteFetchError
	assert.True(t, errors.As(err, &rfe))
	assert.Empty(t, f.attempted)

	f = &fakeClient{listErr: remote}
	_, err = newAggregator(f, Config{}).Aggregate(context.Background(), request())
	assert.True(t, errors.As(err, &rfe))
}

func TestAggregateInvalidInput(t *testing.T) {
	agg := newAggregator(&fakeClient{}, Config{})

	for _, req := range []Request{
		{Owner: "", Repo: "widgets", Credential: "tok"},
		{Owner: "octo", Repo: "", Credential: "tok"},
		{Owner: "octo/evil", Repo: "widgets", Credential: "tok"},
		{Owner: "octo", Repo: "wid gets", Credential: "tok"},
		{Owner: "octo", Repo: "..", Credential: "tok"},
		{Owner: "octo", Repo: "widgets", Credential: ""},
	} {
		_, err := agg.Aggregate(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "%+v", req)
	}
}

func TestAggregateCancelled(t *testing.T) {
	merged, details := mergedFixture(3)
	f := &fakeClient{merged: merged, details: details}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAggregator(f, Config{}).Aggregate(ctx, request())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregateBucketStrategyOverride(t *testing.T) {
	before := time.Date(2024, 5, 1, 23, 58, 30, 0, time.UTC) // Wednesday
	after := before.Add(3 * time.Minute)                     // Thursday
	merged := []models.PullRequest{
		{Number: 1, User: models.User{Login: "alice"}, ClosedAt: ptr(before)},
		{Number: 2, User: models.User{Login: "bob"}, ClosedAt: ptr(after)},
	}
	f := &fakeClient{merged: merged}
	agg := newAggregator(f, Config{})

	res, err := agg.Aggregate(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, res.Trends.PRsByWeek, 2)
	assert.Equal(t, "2024-04-25", res.Trends.PRsByWeek[0].Week)
	assert.Equal(t, "2024-05-02", res.Trends.PRsByWeek[1].Week)

	req := request()
	req.Strategy = bucket.CalendarWeek{Location: time.UTC, FirstDay: time.Monday}
	res, err = agg.Aggregate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Trends.PRsByWeek, 1)
	assert.Equal(t, "2024-04-29", res.Trends.PRsByWeek[0].Week)
	assert.Equal(t, map[string]int{"alice": 1, "bob": 1}, res.Trends.PRsByWeek[0].Authors)
}

func TestContributorStatsOrdering(t *testing.T) {
	prs := []models.PullRequest{
		{User: models.User{Login: "bob"}},
		{User: models.User{Login: "carol"}},
		{User: models.User{Login: "carol"}},
		{User: models.User{Login: "alice"}},
	}

	out := contributorStats(prs)
	require.Len(t, out, 3)
	assert.Equal(t, "carol", out[0].Login)
	assert.Equal(t, "alice", out[1].Login)
	assert.Equal(t, "bob", out[2].Login)
}
