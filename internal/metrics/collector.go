// Package metrics provides Prometheus metrics for hls-listener-stats.
//
// The gauges mirror the most recently published MetricsSnapshot; they are
// refreshed once per publish cycle, so scrapes between publishes see the
// same consistent view as /api/stats readers.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/hls-listener-stats/internal/snapshot"
)

// --- Listeners ---
var (
	statsActiveShort = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_active_listeners_short",
			Help: "Distinct listeners in the short window",
		},
	)

	statsActiveLong = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_active_listeners_long",
			Help: "Distinct listeners in the long window",
		},
	)

	statsNewListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_new_listeners",
			Help: "Cumulative listeners classified as new since start",
		},
	)

	statsReturningListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_returning_listeners",
			Help: "Cumulative listeners classified as returning since start",
		},
	)

	statsActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_active_sessions",
			Help: "Fingerprint records currently tracked",
		},
	)

	statsEvictedSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_evicted_sessions",
			Help: "Cumulative fingerprint records evicted by the TTL sweep",
		},
	)
)

// --- Traffic ---
var (
	statsRequestsPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_requests_per_second",
			Help: "Stream requests per second over the rate interval",
		},
	)

	statsSegmentsPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_segment_requests_per_second",
			Help: "Segment requests per second over the rate interval",
		},
	)

	statsPlaylistsPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_playlist_requests_per_second",
			Help: "Playlist requests per second over the rate interval",
		},
	)

	statsErrorRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_error_rate",
			Help: "Error-status fraction of requests in the rate interval",
		},
	)
)

// --- Stream health ---
var (
	statsLatencySeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_latency_estimate_seconds",
			Help: "Estimated end-to-end live delay",
		},
	)

	statsLatencyAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_latency_available",
			Help: "1 when the latency estimate is available, 0 otherwise",
		},
	)

	statsIngestUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_ingest_up",
			Help: "1 when the playlist is being rewritten recently, 0 otherwise",
		},
	)

	statsPlaylistAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_playlist_age_seconds",
			Help: "Seconds since the live playlist was last rewritten",
		},
	)
)

// --- Pipeline health ---
var (
	statsParseErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_parse_errors",
			Help: "Cumulative malformed log lines discarded",
		},
	)

	statsLinesRead = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_log_lines_read",
			Help: "Cumulative log lines read by the tailer",
		},
	)

	statsRotations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_log_rotations",
			Help: "Cumulative log rotations detected",
		},
	)

	statsTailerErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hls_stats_tailer_errors",
			Help: "Cumulative tailer open/read errors",
		},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers all metrics with the default registry.
// Safe to call multiple times.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			statsActiveShort,
			statsActiveLong,
			statsNewListeners,
			statsReturningListeners,
			statsActiveSessions,
			statsEvictedSessions,
			statsRequestsPerSec,
			statsSegmentsPerSec,
			statsPlaylistsPerSec,
			statsErrorRate,
			statsLatencySeconds,
			statsLatencyAvailable,
			statsIngestUp,
			statsPlaylistAge,
			statsParseErrors,
			statsLinesRead,
			statsRotations,
			statsTailerErrors,
		)
	})
}

// UpdateFromSnapshot refreshes all gauges from one published snapshot.
func UpdateFromSnapshot(s *snapshot.MetricsSnapshot) {
	statsActiveShort.Set(float64(s.ActiveShort))
	statsActiveLong.Set(float64(s.ActiveLong))
	statsNewListeners.Set(float64(s.NewCount))
	statsReturningListeners.Set(float64(s.ReturningCount))
	statsActiveSessions.Set(float64(s.ActiveSessions))
	statsEvictedSessions.Set(float64(s.EvictedSessions))

	statsRequestsPerSec.Set(s.RequestsPerSec)
	statsSegmentsPerSec.Set(s.SegmentsPerSec)
	statsPlaylistsPerSec.Set(s.PlaylistsPerSec)
	statsErrorRate.Set(s.ErrorRate)

	if s.Latency.Confidence == "estimated" {
		statsLatencySeconds.Set(s.Latency.Seconds)
		statsLatencyAvailable.Set(1)
	} else {
		statsLatencySeconds.Set(0)
		statsLatencyAvailable.Set(0)
	}

	if s.IngestUp {
		statsIngestUp.Set(1)
	} else {
		statsIngestUp.Set(0)
	}

	if s.PlaylistAgeSeconds != nil {
		statsPlaylistAge.Set(*s.PlaylistAgeSeconds)
	}

	statsParseErrors.Set(float64(s.ParseErrorCount))
	statsLinesRead.Set(float64(s.Tailer.Lines))
	statsRotations.Set(float64(s.Tailer.Rotations))
	statsTailerErrors.Set(float64(s.Tailer.Errors))
}
