// Package engine wires the ingestion pipeline together: tailer, parser,
// session tracker, window aggregator, latency estimator, and the snapshot
// publish cycle.
//
// One goroutine owns ingestion end to end (read line, parse, classify,
// aggregate), so events are applied in log order without per-event locking
// games. Everything downstream reads published snapshots.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/hls-listener-stats/internal/config"
	"github.com/randomizedcoder/hls-listener-stats/internal/latency"
	"github.com/randomizedcoder/hls-listener-stats/internal/metrics"
	"github.com/randomizedcoder/hls-listener-stats/internal/parser"
	"github.com/randomizedcoder/hls-listener-stats/internal/session"
	"github.com/randomizedcoder/hls-listener-stats/internal/snapshot"
	"github.com/randomizedcoder/hls-listener-stats/internal/tailer"
	"github.com/randomizedcoder/hls-listener-stats/internal/window"
)

// lineBufferSize is the tailer channel capacity; absorbs short parse stalls
// without unbounding memory.
const lineBufferSize = 4096

// Engine owns the full pipeline from access log to published snapshot.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	tailer    *tailer.Tailer
	parser    *parser.Parser
	fper      *session.Fingerprinter
	tracker   *session.Tracker
	agg       *window.Aggregator
	estimator *latency.Estimator
	origin    *metrics.OriginScraper
	publisher *snapshot.Publisher
	builder   *snapshot.Builder

	// Per-line fault counters (PipelineSource)
	parseErrors  atomic.Int64
	skippedLines atomic.Int64
}

// New constructs the engine. Pattern problems surface here as configuration
// errors, before anything starts.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := parser.New(cfg.LogPattern, cfg.StreamPrefix)
	if err != nil {
		return nil, fmt.Errorf("building parser: %w", err)
	}

	backoff := tailer.NewBackoff(time.Now().UnixNano(), tailer.BackoffConfig{
		Initial:    cfg.BackoffInitial,
		Max:        cfg.BackoffMax,
		Multiplier: cfg.BackoffMultiply,
		JitterPct:  0.4,
	})

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		tailer:    tailer.New(cfg.AccessLogPath, cfg.PollInterval, lineBufferSize, backoff, logger),
		parser:    p,
		fper:      session.NewFingerprinter(cfg.FingerprintSalt),
		tracker:   session.NewTracker(cfg.SessionTTL),
		agg:       window.NewAggregator(cfg.ShortWindow, cfg.LongWindow, cfg.RateInterval),
		estimator: latency.New(cfg.PlaylistPath, cfg.SegmentSeconds, logger),
		origin:    metrics.NewOriginScraper(cfg.OriginMetricsURL, cfg.OriginMetricsInterval, logger),
		publisher: snapshot.NewPublisher(),
	}

	builderCfg := snapshot.Config{
		Interval:      cfg.PublishInterval,
		SweepInterval: cfg.SweepInterval,
		Aggregates:    e.agg,
		Sessions:      e.tracker,
		Latency:       e.estimator,
		Tailer:        e.tailer,
		Pipeline:      e,
		Publisher:     e.publisher,
		OnPublish:     metrics.UpdateFromSnapshot,
		Logger:        logger,
	}
	if e.origin != nil {
		builderCfg.Origin = e.origin
	}
	e.builder = snapshot.NewBuilder(builderCfg)

	return e, nil
}

// Publisher returns the snapshot publisher for API and dashboard readers.
func (e *Engine) Publisher() *snapshot.Publisher {
	return e.publisher
}

// ParseErrors returns the cumulative count of malformed lines discarded.
func (e *Engine) ParseErrors() int64 {
	return e.parseErrors.Load()
}

// SkippedLines returns the cumulative count of well-formed lines outside
// the stream scope.
func (e *Engine) SkippedLines() int64 {
	return e.skippedLines.Load()
}

// Run drives the pipeline until ctx is cancelled, then publishes one final
// snapshot so shutdown leaves consistent state behind.
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.tailer.Run(ctx)
	}()

	if e.origin != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.origin.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.builder.Run(ctx)
	}()

	e.logger.Info("engine_started",
		"access_log", e.cfg.AccessLogPath,
		"stream_prefix", e.cfg.StreamPrefix,
		"playlist", e.cfg.PlaylistPath,
	)

	// Ingestion loop; exits when the tailer closes its channel.
	for line := range e.tailer.Lines() {
		e.ingest(line)
	}

	wg.Wait()
	e.builder.PublishOnce()

	e.logger.Info("engine_stopped",
		"lines", e.tailer.Stats().Lines,
		"parse_errors", e.parseErrors.Load(),
	)
	return nil
}

// ingest applies one raw log line to the session tracker and windows.
func (e *Engine) ingest(line string) {
	ev, err := e.parser.ParseLine(line)
	if err != nil {
		e.parseErrors.Add(1)
		e.logger.Debug("parse_error", "error", err)
		return
	}
	if ev == nil {
		e.skippedLines.Add(1)
		return
	}

	ev.Fingerprint = e.fper.Derive(ev.RemoteAddr, ev.UserAgent)

	// Identity is anchored on successful segment fetches; failed requests
	// still feed the traffic windows for error rates.
	isSegment := ev.IsSegment() && !ev.IsError()
	class := e.tracker.Observe(ev.Fingerprint, ev.Timestamp, isSegment)
	if class != session.ClassSameSession {
		e.logger.Debug("listener_classified",
			"class", class.String(),
			"fingerprint", ev.Fingerprint,
		)
	}

	e.agg.Add(ev)
}
