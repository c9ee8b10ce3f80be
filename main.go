package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perbu/repo-metrics/api"
	"github.com/perbu/repo-metrics/metrics"
	"github.com/perbu/repo-metrics/report"
	"github.com/perbu/repo-metrics/timerange"
)

func main() {
	var (
		serveCmd        = flag.NewFlagSet("serve", flag.ExitOnError)
		metricsCmd      = flag.NewFlagSet("metrics", flag.ExitOnError)
		contributorsCmd = flag.NewFlagSet("contributors", flag.ExitOnError)
		branchesCmd     = flag.NewFlagSet("branches", flag.ExitOnError)
		insightsCmd     = flag.NewFlagSet("insights", flag.ExitOnError)

		// Metrics flags
		metricsRepo   = repoFlags(metricsCmd)
		timeRange     = metricsCmd.String("range", timerange.DefaultKey, "Time range: 1w, 1m, 3m, 6m, 1y")
		metricsOutput = metricsCmd.String("output", "stdout", "Output format: stdout, json, csv")

		// Contributors flags
		contributorsRepo   = repoFlags(contributorsCmd)
		contributorsOutput = contributorsCmd.String("output", "stdout", "Output format: stdout, json, csv")

		// Branches flags
		branchesRepo   = repoFlags(branchesCmd)
		branchesOutput = branchesCmd.String("output", "stdout", "Output format: stdout, json, csv")

		// Insights flags
		insightsRepo  = repoFlags(insightsCmd)
		insightsRange = insightsCmd.String("range", timerange.DefaultKey, "Time range: 1w, 1m, 3m, 6m, 1y")
		geminiKey     = insightsCmd.String("key", "", "Gemini API key")
	)

	if len(os.Args) < 2 {
		fmt.Println("Usage: repo-metrics <command> [options]")
		fmt.Println("Commands:")
		fmt.Println("  serve         - Run the dashboard HTTP API")
		fmt.Println("  metrics       - Print pull request metrics for a repository")
		fmt.Println("  contributors  - Print repository contributors")
		fmt.Println("  branches      - Print branch and merge activity")
		fmt.Println("  insights      - Summarize pull request metrics with Gemini")
		os.Exit(1)
	}

	app, err := newApplication()
	if err != nil {
		fmt.Printf("failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(ctx, cancel, app)

	switch os.Args[1] {
	case "serve":
		serveCmd.Parse(os.Args[2:])
		if err := serve(ctx, app); err != nil {
			app.Logger.Error("server failed", "error", err)
			os.Exit(1)
		}

	case "metrics":
		metricsCmd.Parse(os.Args[2:])
		metricsRepo.require(app)
		result, err := app.Metrics.Aggregate(ctx, metrics.Request{
			Owner:      *metricsRepo.owner,
			Repo:       *metricsRepo.repo,
			TimeRange:  *timeRange,
			Credential: *metricsRepo.token,
		})
		if err != nil {
			fatal(app, "metrics failed", err)
		}
		out, err := report.Metrics(*metricsRepo.owner, *metricsRepo.repo, result, *metricsOutput)
		if err != nil {
			fatal(app, "formatting failed", err)
		}
		fmt.Println(out)

	case "contributors":
		contributorsCmd.Parse(os.Args[2:])
		contributorsRepo.require(app)
		list, err := app.Contributors.List(ctx, *contributorsRepo.owner, *contributorsRepo.repo, *contributorsRepo.token)
		if err != nil {
			fatal(app, "contributors failed", err)
		}
		out, err := report.Contributors(list, *contributorsOutput)
		if err != nil {
			fatal(app, "formatting failed", err)
		}
		fmt.Println(out)

	case "branches":
		branchesCmd.Parse(os.Args[2:])
		branchesRepo.require(app)
		activity, err := app.Branches.Analyze(ctx, *branchesRepo.owner, *branchesRepo.repo, *branchesRepo.token)
		if err != nil {
			fatal(app, "branch activity failed", err)
		}
		out, err := report.Branches(activity, *branchesOutput)
		if err != nil {
			fatal(app, "formatting failed", err)
		}
		fmt.Println(out)

	case "insights":
		insightsCmd.Parse(os.Args[2:])
		insightsRepo.require(app)
		if *geminiKey == "" {
			*geminiKey = app.Config.GeminiAPIKey
			if *geminiKey == "" {
				fatal(app, "Gemini API key required: use -key flag or GEMINI_API_KEY env var", nil)
			}
		}
		summarizer, err := app.summarizer(ctx, *geminiKey)
		if err != nil {
			fatal(app, "failed to create Gemini client", err)
		}
		defer summarizer.Close()

		result, err := app.Metrics.Aggregate(ctx, metrics.Request{
			Owner:      *insightsRepo.owner,
			Repo:       *insightsRepo.repo,
			TimeRange:  *insightsRange,
			Credential: *insightsRepo.token,
		})
		if err != nil {
			fatal(app, "metrics failed", err)
		}
		summary, err := summarizer.SummarizeMetrics(ctx, *insightsRepo.owner, *insightsRepo.repo, result)
		if err != nil {
			fatal(app, "summary failed", err)
		}
		fmt.Println(summary)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

type repoArgs struct {
	owner *string
	repo  *string
	token *string
}

func repoFlags(fs *flag.FlagSet) repoArgs {
	return repoArgs{
		owner: fs.String("owner", "", "Repository owner"),
		repo:  fs.String("repo", "", "Repository name"),
		token: fs.String("token", "", "GitHub personal access token"),
	}
}

func (r repoArgs) require(app *application) {
	if *r.token == "" {
		*r.token = app.Config.GitHubToken
		if *r.token == "" {
			fatal(app, "GitHub token required: use -token flag or GITHUB_TOKEN env var", nil)
		}
	}
	if *r.owner == "" {
		fatal(app, "Repository owner required: use -owner flag", nil)
	}
	if *r.repo == "" {
		fatal(app, "Repository name required: use -repo flag", nil)
	}
}

func fatal(app *application, msg string, err error) {
	if err != nil {
		app.Logger.Error(msg, "error", err)
	} else {
		app.Logger.Error(msg)
	}
	os.Exit(1)
}

func serve(ctx context.Context, app *application) error {
	var summarizer api.Summarizer
	gc, err := app.summarizer(ctx, app.Config.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if gc != nil {
		defer gc.Close()
		summarizer = gc
	} else {
		app.Logger.Info("GEMINI_API_KEY not set, insights disabled")
	}

	server := app.newServer(summarizer)
	if err := server.Start(ctx); err != nil {
		return err
	}

	app.Logger.Info("service started",
		"environment", app.Config.Environment,
		"log_level", app.Config.LogLevel)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}

	app.Logger.Info("service stopped gracefully")
	return nil
}

// setupGracefulShutdown cancels ctx on SIGINT or SIGTERM.
func setupGracefulShutdown(ctx context.Context, cancel context.CancelFunc, app *application) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			app.Logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
}
