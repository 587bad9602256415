package snapshot

import (
	"testing"
	"time"

	"github.com/randomizedcoder/hls-listener-stats/internal/latency"
	"github.com/randomizedcoder/hls-listener-stats/internal/session"
	"github.com/randomizedcoder/hls-listener-stats/internal/tailer"
	"github.com/randomizedcoder/hls-listener-stats/internal/window"
)

var t0 = time.Date(2026, 8, 21, 14, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeAggregates struct {
	stats window.AggregateStats
}

func (f *fakeAggregates) Snapshot() window.AggregateStats { return f.stats }

type fakeSessions struct {
	stats     session.Stats
	durations session.SessionStats
	sweeps    int
}

func (f *fakeSessions) Stats() session.Stats               { return f.stats }
func (f *fakeSessions) SessionStats() session.SessionStats { return f.durations }
func (f *fakeSessions) Sweep(now time.Time) int {
	f.sweeps++
	return 2
}

type fakeLatency struct {
	est latency.Estimate
}

func (f *fakeLatency) Estimate() latency.Estimate { return f.est }

type fakeTailer struct {
	stats tailer.Stats
}

func (f *fakeTailer) Stats() tailer.Stats { return f.stats }

type fakePipeline struct {
	parseErrors, skipped int64
}

func (f *fakePipeline) ParseErrors() int64  { return f.parseErrors }
func (f *fakePipeline) SkippedLines() int64 { return f.skipped }

func newTestBuilder(clock *fakeClock, agg *fakeAggregates, sess *fakeSessions) (*Builder, *Publisher) {
	pub := NewPublisher()
	b := NewBuilder(Config{
		Interval:      time.Second,
		SweepInterval: time.Minute,
		Aggregates:    agg,
		Sessions:      sess,
		Latency: &fakeLatency{est: latency.Estimate{
			Seconds:            12.5,
			Confidence:         latency.ConfidenceEstimated,
			PlaylistAgeSeconds: 0.5,
			PlaylistAgeOK:      true,
			IngestUp:           true,
		}},
		Tailer:    &fakeTailer{stats: tailer.Stats{Lines: 100, Bytes: 9000, Rotations: 1}},
		Pipeline:  &fakePipeline{parseErrors: 3, skipped: 7},
		Publisher: pub,
		Clock:     clock,
	})
	return b, pub
}

func TestPublishOnceAssemblesSnapshot(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := &fakeAggregates{stats: window.AggregateStats{
		ActiveShort:    42,
		ActiveLong:     57,
		RequestsPerSec: 1.5,
		ErrorRate:      0.05,
	}}
	sess := &fakeSessions{
		stats:     session.Stats{ActiveSessions: 40, NewTotal: 10, ReturningTotal: 5, EvictedTotal: 2},
		durations: session.SessionStats{AvgSeconds: 300, P50Seconds: 250, Samples: 12},
	}
	b, pub := newTestBuilder(clock, agg, sess)

	clock.now = t0.Add(30 * time.Second)
	s := b.PublishOnce()

	if pub.Load() != s {
		t.Error("snapshot should be published")
	}
	if s.ActiveShort != 42 || s.ActiveLong != 57 {
		t.Errorf("listener counts wrong: %d / %d", s.ActiveShort, s.ActiveLong)
	}
	if s.NewCount != 10 || s.ReturningCount != 5 {
		t.Errorf("classification counts wrong: %d / %d", s.NewCount, s.ReturningCount)
	}
	if s.UptimeSeconds != 30 {
		t.Errorf("uptime = %v, want 30", s.UptimeSeconds)
	}
	if s.Latency.Confidence != "estimated" || s.Latency.Seconds != 12.5 {
		t.Errorf("latency = %+v", s.Latency)
	}
	if !s.IngestUp {
		t.Error("ingest_up should be carried through")
	}
	if s.PlaylistAgeSeconds == nil || *s.PlaylistAgeSeconds != 0.5 {
		t.Errorf("playlist age = %v, want 0.5", s.PlaylistAgeSeconds)
	}
	if s.ParseErrorCount != 3 || s.SkippedLineCount != 7 {
		t.Errorf("pipeline counters wrong: %d / %d", s.ParseErrorCount, s.SkippedLineCount)
	}
	if s.Tailer.Lines != 100 || s.Tailer.Rotations != 1 {
		t.Errorf("tailer health wrong: %+v", s.Tailer)
	}
	if s.Session.P50Seconds != 250 || s.Session.Samples != 12 {
		t.Errorf("session summary wrong: %+v", s.Session)
	}
	if s.Origin != nil {
		t.Error("origin should be absent when no source is wired")
	}
}

func TestDeltaShortTracking(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := &fakeAggregates{stats: window.AggregateStats{ActiveShort: 10}}
	sess := &fakeSessions{}
	b, _ := newTestBuilder(clock, agg, sess)

	first := b.PublishOnce()
	if first.DeltaShort != nil {
		t.Error("first publish has no prior; delta must be nil")
	}

	agg.stats.ActiveShort = 15
	second := b.PublishOnce()
	if second.DeltaShort == nil || *second.DeltaShort != 5 {
		t.Fatalf("delta = %v, want 5", second.DeltaShort)
	}
	if second.DeltaShortPct == nil || *second.DeltaShortPct != 0.5 {
		t.Fatalf("delta pct = %v, want 0.5", second.DeltaShortPct)
	}

	agg.stats.ActiveShort = 12
	third := b.PublishOnce()
	if third.DeltaShort == nil || *third.DeltaShort != -3 {
		t.Errorf("delta = %v, want -3", third.DeltaShort)
	}
}

func TestDeltaPctNilWhenPriorZero(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := &fakeAggregates{stats: window.AggregateStats{ActiveShort: 0}}
	sess := &fakeSessions{}
	b, _ := newTestBuilder(clock, agg, sess)

	b.PublishOnce()
	agg.stats.ActiveShort = 5
	s := b.PublishOnce()

	if s.DeltaShort == nil || *s.DeltaShort != 5 {
		t.Errorf("delta = %v, want 5", s.DeltaShort)
	}
	if s.DeltaShortPct != nil {
		t.Error("delta pct must be nil when the prior count was zero")
	}
}

func TestSweepRunsOnSchedule(t *testing.T) {
	clock := &fakeClock{now: t0}
	agg := &fakeAggregates{}
	sess := &fakeSessions{}
	b, _ := newTestBuilder(clock, agg, sess)

	// Within the sweep interval: no sweep yet
	clock.now = t0.Add(30 * time.Second)
	b.PublishOnce()
	if sess.sweeps != 0 {
		t.Errorf("sweeps = %d, want 0 before the interval elapses", sess.sweeps)
	}

	clock.now = t0.Add(61 * time.Second)
	b.PublishOnce()
	if sess.sweeps != 1 {
		t.Errorf("sweeps = %d, want 1", sess.sweeps)
	}

	// The schedule restarts from the last sweep
	clock.now = t0.Add(90 * time.Second)
	b.PublishOnce()
	if sess.sweeps != 1 {
		t.Errorf("sweeps = %d, want still 1", sess.sweeps)
	}
}

func TestOnPublishHook(t *testing.T) {
	clock := &fakeClock{now: t0}
	pub := NewPublisher()
	var hooked *MetricsSnapshot

	b := NewBuilder(Config{
		Aggregates: &fakeAggregates{},
		Sessions:   &fakeSessions{},
		Latency:    &fakeLatency{},
		Tailer:     &fakeTailer{},
		Pipeline:   &fakePipeline{},
		Publisher:  pub,
		OnPublish:  func(s *MetricsSnapshot) { hooked = s },
		Clock:      clock,
	})

	s := b.PublishOnce()
	if hooked != s {
		t.Error("OnPublish hook should receive the published snapshot")
	}
}

type fakeOrigin struct {
	origin *Origin
}

func (f *fakeOrigin) Current() *Origin { return f.origin }

func TestOriginIncludedWhenWired(t *testing.T) {
	clock := &fakeClock{now: t0}
	pub := NewPublisher()
	b := NewBuilder(Config{
		Aggregates: &fakeAggregates{},
		Sessions:   &fakeSessions{},
		Latency:    &fakeLatency{},
		Tailer:     &fakeTailer{},
		Pipeline:   &fakePipeline{},
		Origin:     &fakeOrigin{origin: &Origin{Healthy: true, ActiveConnections: 12}},
		Publisher:  pub,
		Clock:      clock,
	})

	s := b.PublishOnce()
	if s.Origin == nil || s.Origin.ActiveConnections != 12 {
		t.Errorf("origin = %+v, want 12 connections", s.Origin)
	}
}
