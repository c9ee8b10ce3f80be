// Package report renders results for the command line.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/perbu/repo-metrics/models"
)

const timeFormat = "2006-01-02 15:04:05"

func Metrics(owner, repo string, result *models.MetricsResult, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(result)
	case "csv":
		return metricsCSV(result)
	default:
		return metricsStdout(owner, repo, result), nil
	}
}

func Contributors(list []models.RepoContributor, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(list)
	case "csv":
		rows := [][]string{{"ID", "Login", "Contributions", "Avatar URL"}}
		for _, c := range list {
			rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Login, strconv.Itoa(c.Contributions), c.AvatarURL})
		}
		return formatCSV(rows)
	default:
		var buf strings.Builder
		buf.WriteString(fmt.Sprintf("Contributors: %d\n\n", len(list)))
		for _, c := range list {
			buf.WriteString(fmt.Sprintf("  %-30s %6d\n", c.Login, c.Contributions))
		}
		return buf.String(), nil
	}
}

func Branches(activity *models.BranchActivity, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(activity)
	case "csv":
		rows := [][]string{{"SHA", "Type", "Branch Merge", "Author", "Date", "Message"}}
		for _, e := range activity.RecentActivity {
			rows = append(rows, []string{
				e.SHA,
				string(e.Type),
				strconv.FormatBool(e.BranchMerge),
				e.Author,
				e.Date.Format(timeFormat),
				firstLine(e.Message),
			})
		}
		return formatCSV(rows)
	default:
		var buf strings.Builder
		buf.WriteString(fmt.Sprintf("Active branches: %d\n", activity.ActiveBranches))
		for _, b := range activity.BranchList {
			marker := " "
			if b.IsDefault {
				marker = "*"
			}
			buf.WriteString(fmt.Sprintf("  %s %s (%s)\n", marker, b.Name, shortSHA(b.LastCommitSHA)))
		}
		buf.WriteString("\nRecent activity:\n")
		for _, e := range activity.RecentActivity {
			buf.WriteString(fmt.Sprintf("  %s %-6s %s %s: %s\n",
				shortSHA(e.SHA), e.Type, e.Date.Format(timeFormat), e.Author, firstLine(e.Message)))
		}
		if activity.HasMore {
			buf.WriteString("\n(listing truncated at page cap)\n")
		}
		return buf.String(), nil
	}
}

func formatJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatCSV(rows [][]string) (string, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// metricsCSV writes the weekly trend, one row per week and author.
func metricsCSV(result *models.MetricsResult) (string, error) {
	rows := [][]string{{"Week", "Week Total", "Author", "Author Count"}}
	for _, wb := range result.Trends.PRsByWeek {
		for _, author := range sortedKeys(wb.Authors) {
			rows = append(rows, []string{
				wb.Week,
				strconv.Itoa(wb.Count),
				author,
				strconv.Itoa(wb.Authors[author]),
			})
		}
	}
	return formatCSV(rows)
}

func metricsStdout(owner, repo string, result *models.MetricsResult) string {
	var buf strings.Builder
	s := result.Summary

	buf.WriteString(fmt.Sprintf("Repository: %s/%s\n", owner, repo))
	buf.WriteString(fmt.Sprintf("Window: %s .. %s\n", s.StartDate, s.EndDate))
	buf.WriteString(fmt.Sprintf("Total PRs: %d (opened in window: %d)\n", s.TotalPRs, s.TotalPRsInRange))
	buf.WriteString(fmt.Sprintf("Merged PRs: %d\n", s.MergedPRs))
	buf.WriteString(fmt.Sprintf("Avg time to merge: %.1fh (sample of %d)\n", s.AvgTimeToMergeHours, len(result.TimeToMerge)))
	if s.Truncated {
		buf.WriteString("Warning: listings truncated at page cap\n")
	}
	buf.WriteString("\n")

	buf.WriteString("Merged per week:\n")
	for _, wb := range result.Trends.PRsByWeek {
		buf.WriteString(fmt.Sprintf("  %s %4d %s\n", wb.Week, wb.Count, strings.Repeat("#", wb.Count)))
	}
	buf.WriteString("\n")

	buf.WriteString("Contributors:\n")
	for _, c := range result.Contributors {
		buf.WriteString(fmt.Sprintf("  %-30s %4d\n", c.Login, c.MergedPRs))
	}

	if len(result.TimeToMerge) > 0 {
		buf.WriteString("\nTime to merge:\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for _, t := range result.TimeToMerge {
			buf.WriteString(fmt.Sprintf("  #%-6d %8.1fh  %-20s %s\n", t.PRNumber, t.TimeToMergeHours, t.Author, truncate(t.Title, 50)))
		}
	}

	return buf.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
