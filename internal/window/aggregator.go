package window

import (
	"sort"
	"sync"
	"time"

	"github.com/randomizedcoder/hls-listener-stats/internal/parser"
)

// topCategoryLimit bounds the category breakdown in aggregate stats.
const topCategoryLimit = 5

// CategoryCount is one user agent category with its request count.
type CategoryCount struct {
	Label string
	Count int
}

// AggregateStats is a point-in-time view of all windowed metrics.
type AggregateStats struct {
	ActiveShort int
	ActiveLong  int

	// Rate counters over the trailing rate interval
	Rate            Counts
	RequestsPerSec  float64
	SegmentsPerSec  float64
	PlaylistsPerSec float64

	// Error rate = error-status events / total events in the rate interval;
	// no traffic yields 0, not a failure.
	ErrorRate float64

	// Success rates are only meaningful with traffic of that kind
	SegmentSuccessRate  float64
	SegmentSuccessOK    bool
	PlaylistSuccessRate float64
	PlaylistSuccessOK   bool

	// Category breakdown over the short window, largest first
	TopCategories []CategoryCount
}

// Aggregator ingests one event at a time and maintains the short and long
// windows plus the rate counters, with lazy eviction before every query.
//
// Thread-safe: Add runs on the ingestion goroutine while Snapshot is called
// from the publish cycle.
type Aggregator struct {
	mu    sync.Mutex
	clock Clock

	short *Window
	long  *Window
	rate  *Window

	rateInterval time.Duration
}

// NewAggregator creates an aggregator with the given window durations.
func NewAggregator(short, long, rateInterval time.Duration) *Aggregator {
	return NewAggregatorWithClock(short, long, rateInterval, realClock{})
}

// NewAggregatorWithClock creates an aggregator with a custom clock for tests.
func NewAggregatorWithClock(short, long, rateInterval time.Duration, clock Clock) *Aggregator {
	return &Aggregator{
		clock:        clock,
		short:        newWindow(short),
		long:         newWindow(long),
		rate:         newWindow(rateInterval),
		rateInterval: rateInterval,
	}
}

// Add ingests one parsed event into all windows.
func (a *Aggregator) Add(ev *parser.AccessEvent) {
	e := Entry{
		Timestamp:   ev.Timestamp,
		Fingerprint: ev.Fingerprint,
		Segment:     ev.IsSegment(),
		Status:      ev.Status,
		Category:    parser.CategorizeUserAgent(ev.UserAgent),
	}

	a.mu.Lock()
	a.short.add(e)
	a.long.add(e)
	a.rate.add(e)
	a.mu.Unlock()
}

// Snapshot evicts expired entries and returns current aggregate stats.
func (a *Aggregator) Snapshot() AggregateStats {
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.short.evict(now)
	a.long.evict(now)
	a.rate.evict(now)

	stats := AggregateStats{
		ActiveShort: a.short.active(),
		ActiveLong:  a.long.active(),
		Rate:        a.rate.counts,
	}

	secs := a.rateInterval.Seconds()
	if secs > 0 {
		stats.RequestsPerSec = float64(stats.Rate.Total) / secs
		stats.SegmentsPerSec = float64(stats.Rate.Segments) / secs
		stats.PlaylistsPerSec = float64(stats.Rate.Playlists) / secs
	}

	if stats.Rate.Total > 0 {
		errors := stats.Rate.Errors4xx + stats.Rate.Errors5xx
		stats.ErrorRate = float64(errors) / float64(stats.Rate.Total)
	}

	if denom := stats.Rate.SegmentOK + stats.Rate.SegmentFail; denom > 0 {
		stats.SegmentSuccessRate = float64(stats.Rate.SegmentOK) / float64(denom)
		stats.SegmentSuccessOK = true
	}
	if denom := stats.Rate.PlaylistOK + stats.Rate.PlaylistFail; denom > 0 {
		stats.PlaylistSuccessRate = float64(stats.Rate.PlaylistOK) / float64(denom)
		stats.PlaylistSuccessOK = true
	}

	stats.TopCategories = topCategories(a.short.catCounts, topCategoryLimit)

	return stats
}

// topCategories returns the largest categories, ties broken by label for
// stable output.
func topCategories(counts map[string]int, limit int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for label, count := range counts {
		out = append(out, CategoryCount{Label: label, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
