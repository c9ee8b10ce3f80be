package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/perbu/repo-metrics/logger"
	"github.com/perbu/repo-metrics/models"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.5-flash"

type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *logger.Logger
}

func NewClient(ctx context.Context, apiKey string, modelName string, log *logger.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if modelName == "" {
		modelName = DefaultModel
	}

	log = log.Component("gemini")
	log.Debug("using Gemini model", "model", modelName)
	model := client.GenerativeModel(modelName)

	// Configure model for consistent output
	model.SetTemperature(0.3)
	model.SetTopK(40)
	model.SetTopP(0.95)

	return &Client{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    log,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SummarizeMetrics asks the model for a short Markdown reading of a
// repository's metrics.
func (c *Client) SummarizeMetrics(ctx context.Context, owner, repo string, result *models.MetricsResult) (string, error) {
	prompt := `You are reviewing pull request metrics for a software team's dashboard.
Write a short Markdown summary (at most 200 words) covering:

1. Merge throughput and how it trends week over week
2. Time to merge, calling out outliers in the sample
3. How work is spread across contributors

Only state what the numbers support. The timing sample is capped and may not
cover every merged PR; say so if it matters.

Metrics:
` + BuildMetricsContext(owner, repo, result)

	c.logger.Debug("requesting metrics summary", "owner", owner, "repo", repo, "model", c.modelName)
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
	}

	return "", fmt.Errorf("no content generated")
}

// BuildMetricsContext renders a result as the plain-text block sent to the model.
func BuildMetricsContext(owner, repo string, result *models.MetricsResult) string {
	var sb strings.Builder

	s := result.Summary
	sb.WriteString(fmt.Sprintf("Repository: %s/%s\n", owner, repo))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n", s.StartDate, s.EndDate))
	sb.WriteString(fmt.Sprintf("Total PRs (all time, all states): %d\n", s.TotalPRs))
	sb.WriteString(fmt.Sprintf("PRs opened in window: %d\n", s.TotalPRsInRange))
	sb.WriteString(fmt.Sprintf("PRs merged in window: %d\n", s.MergedPRs))
	sb.WriteString(fmt.Sprintf("Average time to merge: %.1f hours over %d sampled PRs\n", s.AvgTimeToMergeHours, len(result.TimeToMerge)))
	if s.Truncated {
		sb.WriteString("Note: listings were truncated at the page cap.\n")
	}

	sb.WriteString("\n--- Merged per week ---\n")
	for _, wb := range result.Trends.PRsByWeek {
		sb.WriteString(fmt.Sprintf("%s: %d\n", wb.Week, wb.Count))
	}

	sb.WriteString("\n--- Contributors ---\n")
	for _, c := range result.Contributors {
		sb.WriteString(fmt.Sprintf("%s: %d merged\n", c.Login, c.MergedPRs))
	}

	if len(result.TimeToMerge) > 0 {
		sb.WriteString("\n--- Time to merge sample ---\n")
		for _, t := range result.TimeToMerge {
			sb.WriteString(fmt.Sprintf("#%d by %s: %.1fh\n", t.PRNumber, t.Author, t.TimeToMergeHours))
		}
	}

	return sb.String()
}
