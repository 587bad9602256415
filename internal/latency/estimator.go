// Package latency estimates end-to-end live delay from server-observable
// playlist state only - no client feedback channel exists.
//
// The heuristic: every segment still listed in the live playlist window sits
// between capture and playback, so
//
//	latency ~= live segment count x target duration + playlist age
//
// where playlist age (time since the playlist was last rewritten) captures
// how far the encoder is into producing the next segment. The result is an
// approximation and carries a confidence flag rather than posing as a
// measurement.
package latency

import (
	"log/slog"
	"os"
	"time"

	"github.com/grafov/m3u8"
)

// ingestStaleFactor: the ingest pipeline is considered down when the
// playlist has not been rewritten for this many target durations.
const ingestStaleFactor = 3.5

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Confidence qualifies a latency estimate.
type Confidence int

const (
	// ConfidenceUnavailable means the playlist could not be read; the
	// Seconds field is meaningless and must not be displayed as data.
	ConfidenceUnavailable Confidence = iota
	// ConfidenceEstimated means the estimate was derived from live
	// playlist state.
	ConfidenceEstimated
)

// String returns the wire name of the confidence level.
func (c Confidence) String() string {
	if c == ConfidenceEstimated {
		return "estimated"
	}
	return "unavailable"
}

// Estimate is one recomputed latency figure. Never persisted.
type Estimate struct {
	Seconds    float64
	Confidence Confidence

	// Supporting playlist state
	PlaylistAgeSeconds float64
	PlaylistAgeOK      bool
	IngestUp           bool
	SegmentCount       int
	TargetDuration     float64
}

// Estimator derives latency estimates from the live media playlist file.
type Estimator struct {
	path           string
	fallbackTarget float64 // seconds, used when the playlist omits a target
	clock          Clock
	logger         *slog.Logger
}

// New creates an estimator reading the playlist at path.
func New(path string, fallbackTarget time.Duration, logger *slog.Logger) *Estimator {
	return NewWithClock(path, fallbackTarget, logger, realClock{})
}

// NewWithClock creates an estimator with a custom clock for tests.
func NewWithClock(path string, fallbackTarget time.Duration, logger *slog.Logger, clock Clock) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		path:           path,
		fallbackTarget: fallbackTarget.Seconds(),
		clock:          clock,
		logger:         logger,
	}
}

// Estimate recomputes the latency estimate from current playlist state.
// An unreadable playlist degrades to ConfidenceUnavailable; it never
// returns stale or fabricated data.
func (e *Estimator) Estimate() Estimate {
	now := e.clock.Now()
	est := Estimate{Confidence: ConfidenceUnavailable}

	fi, err := os.Stat(e.path)
	if err != nil {
		e.logger.Debug("playlist_stat_error", "path", e.path, "error", err)
		return est
	}

	age := now.Sub(fi.ModTime()).Seconds()
	if age < 0 {
		age = 0
	}
	est.PlaylistAgeSeconds = age
	est.PlaylistAgeOK = true
	est.IngestUp = age < ingestStaleFactor*e.fallbackTarget

	f, err := os.Open(e.path)
	if err != nil {
		e.logger.Debug("playlist_open_error", "path", e.path, "error", err)
		return est
	}
	defer f.Close()

	playlist, listType, err := m3u8.DecodeFrom(f, true)
	if err != nil {
		e.logger.Debug("playlist_decode_error", "path", e.path, "error", err)
		return est
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || listType != m3u8.MEDIA {
		e.logger.Debug("playlist_not_media", "path", e.path)
		return est
	}

	target := media.TargetDuration
	if target <= 0 {
		target = e.fallbackTarget
	}

	est.SegmentCount = int(media.Count())
	est.TargetDuration = target
	est.IngestUp = age < ingestStaleFactor*target
	est.Seconds = float64(est.SegmentCount)*target + age
	est.Confidence = ConfidenceEstimated

	return est
}
