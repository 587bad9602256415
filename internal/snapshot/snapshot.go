// Package snapshot assembles and publishes the externally visible metrics
// document.
//
// A MetricsSnapshot is immutable once built. The Publisher swaps a single
// atomic pointer, so arbitrarily many concurrent readers observe either the
// complete prior snapshot or the complete new one - torn reads are
// impossible by construction, and readers never share a lock with the
// ingestion path.
package snapshot

import (
	"sync/atomic"
	"time"
)

// Latency is the published live-delay estimate.
type Latency struct {
	Seconds    float64 `json:"seconds"`
	Confidence string  `json:"confidence"` // "estimated" or "unavailable"
}

// SessionSummary is the completed-session duration distribution.
type SessionSummary struct {
	AvgSeconds float64 `json:"avg_seconds"`
	P25Seconds float64 `json:"p25_seconds"`
	P50Seconds float64 `json:"p50_seconds"`
	P75Seconds float64 `json:"p75_seconds"`
	Samples    int64   `json:"sample_count"`
}

// Category is one user agent category bucket.
type Category struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TailerHealth mirrors the tailer's counters into the snapshot.
type TailerHealth struct {
	Lines     int64 `json:"lines"`
	Bytes     int64 `json:"bytes"`
	Rotations int64 `json:"rotations"`
	Errors    int64 `json:"errors"`
}

// Origin holds optional web-server exporter metrics.
type Origin struct {
	Healthy           bool    `json:"healthy"`
	ActiveConnections int64   `json:"active_connections"`
	RequestsPerSec    float64 `json:"requests_per_sec"`
	Error             string  `json:"error,omitempty"`
}

// MetricsSnapshot is one consistent, timestamped aggregate of all computed
// metrics. Exclusively constructed by the Builder; frozen afterwards.
type MetricsSnapshot struct {
	GeneratedAt   time.Time `json:"generated_at"`
	UptimeSeconds float64   `json:"uptime_seconds"`

	// Listeners
	ActiveShort     int      `json:"active_short"`
	ActiveLong      int      `json:"active_long"`
	DeltaShort      *int     `json:"delta_short"`     // nil on the first publish
	DeltaShortPct   *float64 `json:"delta_short_pct"` // nil when prior count was 0
	NewCount        int64    `json:"new_count"`
	ReturningCount  int64    `json:"returning_count"`
	ActiveSessions  int      `json:"active_sessions"`
	EvictedSessions int64    `json:"evicted_sessions"`

	// Traffic over the rate interval
	RequestsPerSec      float64  `json:"requests_per_sec"`
	SegmentRequests     int64    `json:"segment_requests"`
	PlaylistRequests    int64    `json:"playlist_requests"`
	SegmentsPerSec      float64  `json:"segments_per_sec"`
	PlaylistsPerSec     float64  `json:"playlists_per_sec"`
	ErrorRate           float64  `json:"error_rate"`
	Errors4xx           int64    `json:"errors_4xx"`
	Errors5xx           int64    `json:"errors_5xx"`
	SegmentSuccessRate  *float64 `json:"segment_success_rate"`  // nil without segment traffic
	PlaylistSuccessRate *float64 `json:"playlist_success_rate"` // nil without playlist traffic

	Session       SessionSummary `json:"session"`
	TopCategories []Category     `json:"top_user_agent_categories"`

	// Stream health
	Latency            Latency  `json:"latency"`
	PlaylistAgeSeconds *float64 `json:"playlist_age_seconds"` // nil when playlist unreadable
	IngestUp           bool     `json:"ingest_up"`

	// Pipeline health
	ParseErrorCount  int64        `json:"parse_error_count"`
	SkippedLineCount int64        `json:"skipped_line_count"`
	Tailer           TailerHealth `json:"tailer"`

	Origin *Origin `json:"origin,omitempty"`
}

// Publisher holds the most recently published snapshot for lock-free reads.
type Publisher struct {
	cur atomic.Pointer[MetricsSnapshot]
}

// NewPublisher creates a Publisher with no snapshot yet ("not ready").
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish atomically replaces the current snapshot. All-or-nothing: readers
// see either the previous snapshot or this one.
func (p *Publisher) Publish(s *MetricsSnapshot) {
	p.cur.Store(s)
}

// Load returns the latest published snapshot, or nil before the first
// publish. Never blocks.
func (p *Publisher) Load() *MetricsSnapshot {
	return p.cur.Load()
}
