package window

import (
	"fmt"
	"testing"
	"time"

	"github.com/randomizedcoder/hls-listener-stats/internal/parser"
)

// fakeClock is a settable clock for deterministic window tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func segEvent(ts time.Time, fp string, status int) *parser.AccessEvent {
	return &parser.AccessEvent{
		Timestamp:   ts,
		Fingerprint: fp,
		UserAgent:   "AppleCoreMedia/1.0 (iPhone)",
		Status:      status,
		Kind:        parser.KindSegment,
	}
}

func TestAggregatorRatesAndErrors(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := NewAggregatorWithClock(60*time.Second, 5*time.Minute, 60*time.Second, clock)

	// 100 requests from 20 listeners within the rate interval, 5 of them errors
	for i := 0; i < 100; i++ {
		fp := fmt.Sprintf("fp%02d", i%20)
		status := 200
		if i < 5 {
			status = 404
		}
		agg.Add(segEvent(t0.Add(time.Duration(i)*100*time.Millisecond), fp, status))
	}

	clock.now = t0.Add(30 * time.Second)
	stats := agg.Snapshot()

	if stats.ErrorRate != 0.05 {
		t.Errorf("error rate = %v, want 0.05", stats.ErrorRate)
	}
	wantRate := 100.0 / 60.0
	if stats.RequestsPerSec != wantRate {
		t.Errorf("requests/sec = %v, want %v", stats.RequestsPerSec, wantRate)
	}

	// The 5 failed fetchers are fp00..fp04, all of which also have
	// successful fetches later in the run, so all 20 are active.
	if stats.ActiveShort != 20 {
		t.Errorf("active short = %d, want 20", stats.ActiveShort)
	}
	if stats.ActiveLong != 20 {
		t.Errorf("active long = %d, want 20", stats.ActiveLong)
	}
}

func TestAggregatorShortLongDivergence(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := NewAggregatorWithClock(60*time.Second, 5*time.Minute, 60*time.Second, clock)

	agg.Add(segEvent(t0, "early", 200))
	agg.Add(segEvent(t0.Add(3*time.Minute), "late", 200))

	// 3m30s in: "early" has left the short window but not the long one
	clock.now = t0.Add(3*time.Minute + 30*time.Second)
	stats := agg.Snapshot()

	if stats.ActiveShort != 1 {
		t.Errorf("active short = %d, want 1", stats.ActiveShort)
	}
	if stats.ActiveLong != 2 {
		t.Errorf("active long = %d, want 2", stats.ActiveLong)
	}
}

func TestAggregatorEmptyTraffic(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := NewAggregatorWithClock(60*time.Second, 5*time.Minute, 60*time.Second, clock)

	stats := agg.Snapshot()
	if stats.ErrorRate != 0 {
		t.Errorf("error rate with no traffic = %v, want 0", stats.ErrorRate)
	}
	if stats.SegmentSuccessOK || stats.PlaylistSuccessOK {
		t.Error("success rates should be unavailable with no traffic")
	}
	if stats.ActiveShort != 0 || stats.RequestsPerSec != 0 {
		t.Errorf("expected zeroes, got %+v", stats)
	}
}

func TestAggregatorSuccessRates(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := NewAggregatorWithClock(60*time.Second, 5*time.Minute, 60*time.Second, clock)

	agg.Add(segEvent(t0, "a", 200))
	agg.Add(segEvent(t0, "a", 200))
	agg.Add(segEvent(t0, "a", 404))
	agg.Add(segEvent(t0, "a", 200))

	stats := agg.Snapshot()
	if !stats.SegmentSuccessOK {
		t.Fatal("segment success rate should be available")
	}
	if stats.SegmentSuccessRate != 0.75 {
		t.Errorf("segment success rate = %v, want 0.75", stats.SegmentSuccessRate)
	}
	if stats.PlaylistSuccessOK {
		t.Error("playlist success rate should be unavailable without playlist traffic")
	}
}

func TestAggregatorTopCategories(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := NewAggregatorWithClock(60*time.Second, 5*time.Minute, 60*time.Second, clock)

	add := func(ua string, n int) {
		for i := 0; i < n; i++ {
			agg.Add(&parser.AccessEvent{
				Timestamp: t0, Fingerprint: "fp", UserAgent: ua,
				Status: 200, Kind: parser.KindSegment,
			})
		}
	}
	add("AppleCoreMedia/1.0 (iPhone)", 5)
	add("okhttp/4.10.0", 3)
	add("curl/8.0.1", 3)
	add("Mozilla/5.0 (Windows NT 10.0)", 1)

	stats := agg.Snapshot()
	if len(stats.TopCategories) != 4 {
		t.Fatalf("categories = %d, want 4", len(stats.TopCategories))
	}
	if stats.TopCategories[0].Label != "iOS" || stats.TopCategories[0].Count != 5 {
		t.Errorf("top category = %+v, want iOS 5", stats.TopCategories[0])
	}
	// Tie between Android and CLI broken by label
	if stats.TopCategories[1].Label != "Android" || stats.TopCategories[2].Label != "CLI" {
		t.Errorf("tie break wrong: %+v", stats.TopCategories[1:3])
	}
}

func TestTopCategoriesLimit(t *testing.T) {
	counts := map[string]int{
		"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6, "g": 7,
	}
	out := topCategories(counts, 5)
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5", len(out))
	}
	if out[0].Label != "g" || out[4].Label != "c" {
		t.Errorf("ordering wrong: %+v", out)
	}
}
