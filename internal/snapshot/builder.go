package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/randomizedcoder/hls-listener-stats/internal/latency"
	"github.com/randomizedcoder/hls-listener-stats/internal/session"
	"github.com/randomizedcoder/hls-listener-stats/internal/tailer"
	"github.com/randomizedcoder/hls-listener-stats/internal/window"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// AggregateSource provides windowed traffic stats.
type AggregateSource interface {
	Snapshot() window.AggregateStats
}

// SessionSource provides session classification state and the TTL sweep.
type SessionSource interface {
	Stats() session.Stats
	SessionStats() session.SessionStats
	Sweep(now time.Time) int
}

// LatencySource provides the live-delay estimate.
type LatencySource interface {
	Estimate() latency.Estimate
}

// TailerSource provides tailer health counters.
type TailerSource interface {
	Stats() tailer.Stats
}

// PipelineSource provides per-line fault counters from the ingestion loop.
type PipelineSource interface {
	ParseErrors() int64
	SkippedLines() int64
}

// OriginSource provides optional origin exporter metrics.
type OriginSource interface {
	Current() *Origin
}

// Config wires a Builder to its state sources.
type Config struct {
	Interval      time.Duration
	SweepInterval time.Duration

	Aggregates AggregateSource
	Sessions   SessionSource
	Latency    LatencySource
	Tailer     TailerSource
	Pipeline   PipelineSource
	Origin     OriginSource // may be nil (feature disabled)

	Publisher *Publisher
	OnPublish func(*MetricsSnapshot) // optional hook (Prometheus export)

	Logger *slog.Logger
	Clock  Clock
}

// Builder assembles a MetricsSnapshot on a fixed cadence, decoupled from
// event arrival rate so CPU stays bounded under bursty traffic.
type Builder struct {
	cfg       Config
	clock     Clock
	logger    *slog.Logger
	startTime time.Time

	lastSweep time.Time

	// Listener delta state vs previous publish
	prevActiveShort int
	hasPrev         bool
}

// NewBuilder creates a Builder. The publish interval defaults to 1s and the
// sweep interval to 60s when unset.
func NewBuilder(cfg Config) *Builder {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}

	now := cfg.Clock.Now()
	return &Builder{
		cfg:       cfg,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		startTime: now,
		lastSweep: now,
	}
}

// Run publishes snapshots on the configured cadence until ctx is cancelled.
func (b *Builder) Run(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.PublishOnce()
		}
	}
}

// PublishOnce builds one snapshot, publishes it, and runs the session sweep
// when due. Exposed for tests and for a final publish at shutdown.
func (b *Builder) PublishOnce() *MetricsSnapshot {
	now := b.clock.Now()

	if now.Sub(b.lastSweep) >= b.cfg.SweepInterval {
		evicted := b.cfg.Sessions.Sweep(now)
		b.lastSweep = now
		if evicted > 0 {
			b.logger.Debug("session_sweep", "evicted", evicted)
		}
	}

	s := b.build(now)
	b.cfg.Publisher.Publish(s)
	if b.cfg.OnPublish != nil {
		b.cfg.OnPublish(s)
	}
	return s
}

// build assembles one frozen snapshot from all sources.
func (b *Builder) build(now time.Time) *MetricsSnapshot {
	agg := b.cfg.Aggregates.Snapshot()
	sess := b.cfg.Sessions.Stats()
	sessDur := b.cfg.Sessions.SessionStats()
	est := b.cfg.Latency.Estimate()
	tail := b.cfg.Tailer.Stats()

	s := &MetricsSnapshot{
		GeneratedAt:   now,
		UptimeSeconds: now.Sub(b.startTime).Seconds(),

		ActiveShort:     agg.ActiveShort,
		ActiveLong:      agg.ActiveLong,
		NewCount:        sess.NewTotal,
		ReturningCount:  sess.ReturningTotal,
		ActiveSessions:  sess.ActiveSessions,
		EvictedSessions: sess.EvictedTotal,

		RequestsPerSec:   agg.RequestsPerSec,
		SegmentRequests:  agg.Rate.Segments,
		PlaylistRequests: agg.Rate.Playlists,
		SegmentsPerSec:   agg.SegmentsPerSec,
		PlaylistsPerSec:  agg.PlaylistsPerSec,
		ErrorRate:        agg.ErrorRate,
		Errors4xx:        agg.Rate.Errors4xx,
		Errors5xx:        agg.Rate.Errors5xx,

		Session: SessionSummary{
			AvgSeconds: sessDur.AvgSeconds,
			P25Seconds: sessDur.P25Seconds,
			P50Seconds: sessDur.P50Seconds,
			P75Seconds: sessDur.P75Seconds,
			Samples:    sessDur.Samples,
		},

		Latency: Latency{
			Seconds:    est.Seconds,
			Confidence: est.Confidence.String(),
		},
		IngestUp: est.IngestUp,

		ParseErrorCount:  b.cfg.Pipeline.ParseErrors(),
		SkippedLineCount: b.cfg.Pipeline.SkippedLines(),
		Tailer: TailerHealth{
			Lines:     tail.Lines,
			Bytes:     tail.Bytes,
			Rotations: tail.Rotations,
			Errors:    tail.Errors,
		},
	}

	if agg.SegmentSuccessOK {
		v := agg.SegmentSuccessRate
		s.SegmentSuccessRate = &v
	}
	if agg.PlaylistSuccessOK {
		v := agg.PlaylistSuccessRate
		s.PlaylistSuccessRate = &v
	}

	s.TopCategories = make([]Category, 0, len(agg.TopCategories))
	for _, c := range agg.TopCategories {
		s.TopCategories = append(s.TopCategories, Category{Label: c.Label, Count: c.Count})
	}

	if est.PlaylistAgeOK {
		age := est.PlaylistAgeSeconds
		s.PlaylistAgeSeconds = &age
	}

	if b.hasPrev {
		delta := agg.ActiveShort - b.prevActiveShort
		s.DeltaShort = &delta
		if b.prevActiveShort > 0 {
			pct := float64(delta) / float64(b.prevActiveShort)
			s.DeltaShortPct = &pct
		}
	}
	b.prevActiveShort = agg.ActiveShort
	b.hasPrev = true

	if b.cfg.Origin != nil {
		s.Origin = b.cfg.Origin.Current()
	}

	return s
}
