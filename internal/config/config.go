// Package config provides configuration management for hls-listener-stats.
package config

import "time"

// DefaultLogPattern matches the nginx "combined" access log format.
//
// Named groups addr, time, request, status and bytes are required by the
// parser; agent is optional but needed for listener fingerprinting.
const DefaultLogPattern = `^(?P<addr>\S+) \S+ \S+ \[(?P<time>[^\]]+)\] "(?P<request>[^"]*)" (?P<status>\d{3}) (?P<bytes>\d+|-)(?: "(?P<referer>[^"]*)" "(?P<agent>[^"]*)")?`

// Config holds all configuration options for the stats engine.
type Config struct {
	// Input
	AccessLogPath string        `json:"access_log_path"`
	LogPattern    string        `json:"log_pattern"`
	StreamPrefix  string        `json:"stream_prefix"`
	PollInterval  time.Duration `json:"poll_interval"`

	// Playlist / latency estimation
	PlaylistPath   string        `json:"playlist_path"`
	SegmentSeconds time.Duration `json:"segment_seconds"` // fallback target duration

	// Windows / sessions
	ShortWindow   time.Duration `json:"short_window"`
	LongWindow    time.Duration `json:"long_window"`
	RateInterval  time.Duration `json:"rate_interval"`
	SessionTTL    time.Duration `json:"session_ttl"`
	SweepInterval time.Duration `json:"sweep_interval"`

	// Identity
	FingerprintSalt string `json:"fingerprint_salt"`

	// Publishing
	PublishInterval time.Duration `json:"publish_interval"`

	// Serving
	ListenAddr string `json:"listen_addr"`

	// Origin exporter scraping (optional)
	OriginMetricsURL      string        `json:"origin_metrics_url"`
	OriginMetricsInterval time.Duration `json:"origin_metrics_interval"`

	// Tailer retry policy
	BackoffInitial  time.Duration `json:"backoff_initial"`
	BackoffMax      time.Duration `json:"backoff_max"`
	BackoffMultiply float64       `json:"backoff_multiply"`

	// Observability
	Verbose   bool   `json:"verbose"`
	LogFormat string `json:"log_format"` // json, text

	// Dashboard
	TUIEnabled bool `json:"tui"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Input
		AccessLogPath: "/data/logs/hls_access.log",
		LogPattern:    DefaultLogPattern,
		StreamPrefix:  "/hls/",
		PollInterval:  250 * time.Millisecond,

		// Playlist
		PlaylistPath:   "/data/hls/live.m3u8",
		SegmentSeconds: 4 * time.Second,

		// Windows / sessions
		ShortWindow:   60 * time.Second,
		LongWindow:    5 * time.Minute,
		RateInterval:  60 * time.Second,
		SessionTTL:    10 * time.Minute,
		SweepInterval: 60 * time.Second,

		// Publishing
		PublishInterval: 1 * time.Second,

		// Serving
		ListenAddr: "0.0.0.0:17092",

		// Origin exporter (disabled unless a URL is set)
		OriginMetricsInterval: 2 * time.Second,

		// Tailer retry policy
		BackoffInitial:  250 * time.Millisecond,
		BackoffMax:      5 * time.Second,
		BackoffMultiply: 1.7,

		// Observability
		Verbose:   false,
		LogFormat: "json",

		// Dashboard
		TUIEnabled: false,
	}
}
