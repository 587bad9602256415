package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ParseFlags parses command-line flags and returns a Config.
// Returns an error if required arguments are missing or invalid.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `hls-listener-stats - live audience metrics from HLS access logs

Usage:
  hls-listener-stats [flags]

Input Flags:
`)
		printFlagCategory([]string{"access-log", "log-pattern", "stream-prefix", "poll-interval"})

		fmt.Fprintf(os.Stderr, "\nLatency Estimation:\n")
		printFlagCategory([]string{"playlist", "segment-seconds"})

		fmt.Fprintf(os.Stderr, "\nWindows & Sessions:\n")
		printFlagCategory([]string{"short-window", "long-window", "rate-interval", "session-ttl", "sweep-interval"})

		fmt.Fprintf(os.Stderr, "\nIdentity:\n")
		printFlagCategory([]string{"fingerprint-salt"})

		fmt.Fprintf(os.Stderr, "\nPublishing & Serving:\n")
		printFlagCategory([]string{"publish-interval", "listen"})

		fmt.Fprintf(os.Stderr, "\nOrigin Metrics:\n")
		printFlagCategory([]string{"origin-metrics", "origin-metrics-interval"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"v", "log-format", "tui"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Follow the default access log and serve metrics on :17092
  hls-listener-stats -access-log /data/logs/hls_access.log -playlist /data/hls/live.m3u8

  # Shorter windows for a low-traffic stream, with the terminal dashboard
  hls-listener-stats -short-window 30s -long-window 2m -tui

`)
	}

	// Input
	flag.StringVar(&cfg.AccessLogPath, "access-log", cfg.AccessLogPath, "Path to the web server access log")
	flag.StringVar(&cfg.LogPattern, "log-pattern", cfg.LogPattern, "Access log regex with named groups (addr, time, request, status, bytes, agent)")
	flag.StringVar(&cfg.StreamPrefix, "stream-prefix", cfg.StreamPrefix, "URL path prefix of stream traffic")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "How often the tailer polls for appended lines")

	// Latency estimation
	flag.StringVar(&cfg.PlaylistPath, "playlist", cfg.PlaylistPath, "Path to the live HLS media playlist")
	flag.DurationVar(&cfg.SegmentSeconds, "segment-seconds", cfg.SegmentSeconds, "Fallback segment target duration when the playlist omits it")

	// Windows & sessions
	flag.DurationVar(&cfg.ShortWindow, "short-window", cfg.ShortWindow, `"Currently listening" window duration`)
	flag.DurationVar(&cfg.LongWindow, "long-window", cfg.LongWindow, `"Recent activity" window duration`)
	flag.DurationVar(&cfg.RateInterval, "rate-interval", cfg.RateInterval, "Trailing interval for request/error rates")
	flag.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Inactivity gap after which a listener session expires")
	flag.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often expired sessions are evicted")

	// Identity
	flag.StringVar(&cfg.FingerprintSalt, "fingerprint-salt", cfg.FingerprintSalt, "Salt mixed into client fingerprints (set this in production)")

	// Publishing & serving
	flag.DurationVar(&cfg.PublishInterval, "publish-interval", cfg.PublishInterval, "Snapshot publish cadence")
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address for /api/stats and /metrics")

	// Origin metrics
	flag.StringVar(&cfg.OriginMetricsURL, "origin-metrics", cfg.OriginMetricsURL,
		"Web server exporter URL (e.g., http://10.177.0.10:9113/metrics). "+
			"If empty, origin metrics are disabled. Defaults to empty (disabled).")
	flag.DurationVar(&cfg.OriginMetricsInterval, "origin-metrics-interval", cfg.OriginMetricsInterval,
		"Interval for scraping the origin exporter")

	// Observability
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	// TUI (Terminal User Interface)
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard (suppresses logs)")

	flag.Parse()

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
