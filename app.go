package main

import (
	"context"
	"fmt"

	"github.com/perbu/repo-metrics/api"
	"github.com/perbu/repo-metrics/branches"
	"github.com/perbu/repo-metrics/bucket"
	"github.com/perbu/repo-metrics/config"
	"github.com/perbu/repo-metrics/contributors"
	"github.com/perbu/repo-metrics/gemini"
	"github.com/perbu/repo-metrics/github"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/metrics"
	"golang.org/x/time/rate"
)

// application holds the services shared by the server and the CLI commands.
type application struct {
	Config *config.Config
	Logger *logger.Logger

	Metrics      *metrics.Aggregator
	Branches     *branches.Analyzer
	Contributors *contributors.Service
}

func newApplication() (*application, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: cfg.LogAddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	strategy, err := bucket.Parse(cfg.BucketStrategy, cfg.BucketTimezone, cfg.BucketWeekStart)
	if err != nil {
		return nil, fmt.Errorf("invalid bucket settings: %w", err)
	}

	classifier, err := branches.ParseClassifier(cfg.CommitClassifier)
	if err != nil {
		return nil, err
	}

	newClient := githubClients(cfg)

	return &application{
		Config: cfg,
		Logger: log,
		Metrics: metrics.New(func(credential, owner, repo string) (metrics.Client, error) {
			c, err := newClient(credential, owner, repo)
			if err != nil {
				return nil, err
			}
			return c, nil
		}, metrics.Config{
			SampleSize:        cfg.TimingSampleSize,
			DetailConcurrency: cfg.DetailConcurrency,
			Strategy:          strategy,
		}, log),
		Branches: branches.New(func(credential, owner, repo string) (branches.Client, error) {
			c, err := newClient(credential, owner, repo)
			if err != nil {
				return nil, err
			}
			return c, nil
		}, classifier, log),
		Contributors: contributors.NewService(func(credential, owner, repo string) (contributors.Client, error) {
			c, err := newClient(credential, owner, repo)
			if err != nil {
				return nil, err
			}
			return c, nil
		}, log),
	}, nil
}

// githubClients returns a factory for per-request clients. All clients
// share one limiter so concurrent requests stay within the configured rate.
func githubClients(cfg *config.Config) func(credential, owner, repo string) (*github.Client, error) {
	limiter := rate.NewLimiter(rate.Limit(cfg.GitHubRateLimit), cfg.GitHubRateBurst)
	return func(credential, owner, repo string) (*github.Client, error) {
		return github.NewClient(credential, owner, repo, github.Options{
			BaseURL:  cfg.GitHubAPIURL,
			PerPage:  cfg.GitHubPerPage,
			MaxPages: cfg.GitHubMaxPages,
			Limiter:  limiter,
		})
	}
}

// summarizer returns nil when no Gemini key is configured.
func (a *application) summarizer(ctx context.Context, apiKey string) (*gemini.Client, error) {
	if apiKey == "" {
		return nil, nil
	}
	return gemini.NewClient(ctx, apiKey, a.Config.GeminiModel, a.Logger)
}

func (a *application) newServer(summarizer api.Summarizer) *api.HTTPServer {
	dashboard := api.NewDashboardHandler(a.Metrics, a.Branches, a.Contributors, summarizer, a.Logger)
	return api.NewHTTPServer(&api.ServerConfig{
		Host:           a.Config.ServerHost,
		Port:           a.Config.ServerPort,
		ReadTimeout:    a.Config.ServerReadTimeout,
		WriteTimeout:   a.Config.ServerWriteTimeout,
		IdleTimeout:    a.Config.ServerIdleTimeout,
		RequestTimeout: a.Config.RequestTimeout,
	}, dashboard, a.Logger)
}
