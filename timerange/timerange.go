// Package timerange turns the dashboard's symbolic range keys into concrete
// calendar-date bounds.
package timerange

import (
	"fmt"
	"time"
)

const (
	DateFormat = "2006-01-02"
	DefaultKey = "3m"
)

type TimeRange struct {
	Key       string
	StartDate string
	EndDate   string
}

// SearchQualifier renders the range in the search DSL's <start>..<end> form.
func (tr TimeRange) SearchQualifier() string {
	return fmt.Sprintf("%s..%s", tr.StartDate, tr.EndDate)
}

var aliases = map[string]string{
	"7d":      "1w",
	"week":    "1w",
	"30d":     "1m",
	"month":   "1m",
	"90d":     "3m",
	"quarter": "3m",
	"180d":    "6m",
	"half":    "6m",
	"365d":    "1y",
	"year":    "1y",
}

// Supported reports whether key names a known range, directly or by alias.
func Supported(key string) bool {
	_, ok := canonical(key)
	return ok
}

func canonical(key string) (string, bool) {
	if a, ok := aliases[key]; ok {
		key = a
	}
	switch key {
	case "1w", "1m", "3m", "6m", "1y":
		return key, true
	}
	return DefaultKey, false
}

// Resolve maps key to a range ending on now's date. Unknown keys fall back
// to the three month default.
func Resolve(key string, now time.Time) TimeRange {
	now = now.UTC()
	key, _ = canonical(key)

	var start time.Time
	switch key {
	case "1w":
		start = now.AddDate(0, 0, -7)
	case "1m":
		start = now.AddDate(0, -1, 0)
	case "6m":
		start = now.AddDate(0, -6, 0)
	case "1y":
		start = now.AddDate(-1, 0, 0)
	default:
		start = now.AddDate(0, -3, 0)
	}

	return TimeRange{
		Key:       key,
		StartDate: start.Format(DateFormat),
		EndDate:   now.Format(DateFormat),
	}
}
