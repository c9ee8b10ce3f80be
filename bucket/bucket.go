// Package bucket folds timestamped events into fixed time slices.
package bucket

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/perbu/repo-metrics/models"
)

const (
	KeyFormat = "2006-01-02"
	Week      = 7 * 24 * time.Hour
)

// Strategy maps a timestamp to the start of the slice that contains it.
type Strategy interface {
	Start(t time.Time) time.Time
}

// Fixed slices time into Width-long intervals counted from the Unix epoch.
type Fixed struct {
	Width time.Duration
}

func (f Fixed) Start(t time.Time) time.Time {
	width := f.Width.Milliseconds()
	if width <= 0 {
		width = Week.Milliseconds()
	}
	ms := t.UnixMilli()
	slot := ms / width
	if ms%width < 0 {
		slot--
	}
	return time.UnixMilli(slot * width).UTC()
}

// EpochWeek is the seven day Fixed strategy. Its weeks begin on Thursdays
// (UTC) because 1970-01-01 was a Thursday.
var EpochWeek = Fixed{Width: Week}

// CalendarWeek aligns slices to local midnight of FirstDay in Location.
type CalendarWeek struct {
	Location *time.Location
	FirstDay time.Weekday
}

func (c CalendarWeek) Start(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	offset := (int(t.Weekday()) - int(c.FirstDay) + 7) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// Parse builds a strategy from its configuration name.
func Parse(name, timezone, firstDay string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", "epoch-week":
		return EpochWeek, nil
	case "day":
		return Fixed{Width: 24 * time.Hour}, nil
	case "calendar-week":
		loc := time.UTC
		if timezone != "" {
			l, err := time.LoadLocation(timezone)
			if err != nil {
				return nil, fmt.Errorf("invalid bucket timezone %q: %w", timezone, err)
			}
			loc = l
		}
		day, err := parseWeekday(firstDay)
		if err != nil {
			return nil, err
		}
		return CalendarWeek{Location: loc, FirstDay: day}, nil
	default:
		return nil, fmt.Errorf("unknown bucket strategy %q", name)
	}
}

func parseWeekday(s string) (time.Weekday, error) {
	if s == "" {
		return time.Monday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid week start %q", s)
}

// Bucketer accumulates per-slice counts and per-author breakdowns.
// It is safe for concurrent use.
type Bucketer struct {
	strategy Strategy

	mu      sync.Mutex
	buckets map[string]*models.WeekBucket
}

func New(strategy Strategy) *Bucketer {
	if strategy == nil {
		strategy = EpochWeek
	}
	return &Bucketer{
		strategy: strategy,
		buckets:  make(map[string]*models.WeekBucket),
	}
}

func (b *Bucketer) Key(t time.Time) string {
	return b.strategy.Start(t).Format(KeyFormat)
}

func (b *Bucketer) Fold(t time.Time, author string) {
	key := b.Key(t)

	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := b.buckets[key]
	if !ok {
		wb = &models.WeekBucket{Week: key, Authors: make(map[string]int)}
		b.buckets[key] = wb
	}
	wb.Count++
	wb.Authors[author]++
}

// Buckets returns a copy of the buckets ordered by key.
func (b *Bucketer) Buckets() []models.WeekBucket {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.WeekBucket, 0, len(b.buckets))
	for _, wb := range b.buckets {
		authors := make(map[string]int, len(wb.Authors))
		for k, v := range wb.Authors {
			authors[k] = v
		}
		out = append(out, models.WeekBucket{Week: wb.Week, Count: wb.Count, Authors: authors})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Week < out[j].Week
	})
	return out
}

// Counts returns the total per key, without the author breakdown.
func (b *Bucketer) Counts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]int, len(b.buckets))
	for k, wb := range b.buckets {
		out[k] = wb.Count
	}
	return out
}
