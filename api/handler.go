package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/perbu/repo-metrics/bucket"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/metrics"
	"github.com/perbu/repo-metrics/models"
)

type MetricsService interface {
	Aggregate(ctx context.Context, req metrics.Request) (*models.MetricsResult, error)
	ContributorMetrics(ctx context.Context, req metrics.ContributorRequest) (*models.ContributorMetrics, error)
}

type BranchService interface {
	Analyze(ctx context.Context, owner, repo, credential string) (*models.BranchActivity, error)
}

type ContributorService interface {
	List(ctx context.Context, owner, repo, credential string) ([]models.RepoContributor, error)
}

type Summarizer interface {
	SummarizeMetrics(ctx context.Context, owner, repo string, result *models.MetricsResult) (string, error)
}

type DashboardHandler struct {
	metrics      MetricsService
	branches     BranchService
	contributors ContributorService
	// summarizer is nil when insights are disabled.
	summarizer Summarizer
	logger     *logger.Logger
}

func NewDashboardHandler(m MetricsService, b BranchService, c ContributorService, s Summarizer, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		metrics:      m,
		branches:     b,
		contributors: c,
		summarizer:   s,
		logger:       log.Component("handler/dashboard"),
	}
}

func (h *DashboardHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(Credential(h.logger))

	r.Get("/{owner}/{repo}/metrics", h.Metrics)
	r.Get("/{owner}/{repo}/contributors", h.Contributors)
	r.Get("/{owner}/{repo}/branch-activity", h.BranchActivity)
	r.Get("/{owner}/{repo}/contributor/{username}", h.Contributor)
	r.Get("/{owner}/{repo}/insights", h.Insights)

	return r
}

func (h *DashboardHandler) metricsRequest(r *http.Request) (metrics.Request, error) {
	req := metrics.Request{
		Owner:      chi.URLParam(r, "owner"),
		Repo:       chi.URLParam(r, "repo"),
		TimeRange:  r.URL.Query().Get("timeRange"),
		Credential: CredentialFrom(r.Context()),
	}

	q := r.URL.Query()
	if name := q.Get("bucket"); name != "" {
		strategy, err := bucket.Parse(name, q.Get("timezone"), q.Get("weekStart"))
		if err != nil {
			return metrics.Request{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		req.Strategy = strategy
	}

	return req, nil
}

func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	req, err := h.metricsRequest(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	result, err := h.metrics.Aggregate(r.Context(), req)
	if err != nil {
		writeError(w, fmt.Errorf("failed to fetch repository metrics: %w", err), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result, h.logger)
}

func (h *DashboardHandler) Contributor(w http.ResponseWriter, r *http.Request) {
	req, err := h.metricsRequest(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	result, err := h.metrics.ContributorMetrics(r.Context(), metrics.ContributorRequest{
		Request:  req,
		Username: chi.URLParam(r, "username"),
	})
	if err != nil {
		writeError(w, fmt.Errorf("failed to fetch contributor metrics: %w", err), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result, h.logger)
}

func (h *DashboardHandler) Contributors(w http.ResponseWriter, r *http.Request) {
	list, err := h.contributors.List(r.Context(),
		chi.URLParam(r, "owner"),
		chi.URLParam(r, "repo"),
		CredentialFrom(r.Context()))
	if err != nil {
		writeError(w, fmt.Errorf("failed to fetch contributors: %w", err), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, list, h.logger)
}

func (h *DashboardHandler) BranchActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.branches.Analyze(r.Context(),
		chi.URLParam(r, "owner"),
		chi.URLParam(r, "repo"),
		CredentialFrom(r.Context()))
	if err != nil {
		writeError(w, fmt.Errorf("failed to fetch branch activity: %w", err), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, activity, h.logger)
}

type InsightsResponse struct {
	Summary string `json:"summary"`
}

func (h *DashboardHandler) Insights(w http.ResponseWriter, r *http.Request) {
	if h.summarizer == nil {
		writeError(w, errInsightsDisabled, h.logger)
		return
	}

	req, err := h.metricsRequest(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	result, err := h.metrics.Aggregate(r.Context(), req)
	if err != nil {
		writeError(w, fmt.Errorf("failed to fetch repository metrics: %w", err), h.logger)
		return
	}

	summary, err := h.summarizer.SummarizeMetrics(r.Context(), req.Owner, req.Repo, result)
	if err != nil {
		writeError(w, fmt.Errorf("failed to summarize metrics: %w", err), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, InsightsResponse{Summary: summary}, h.logger)
}
