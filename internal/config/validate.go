package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// requiredGroups are the named capture groups the log pattern must define.
var requiredGroups = []string{"addr", "time", "request", "status", "bytes"}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Configuration faults are fatal at startup only; nothing here is
// re-checked mid-run. Returns nil if valid.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.AccessLogPath == "" {
		errs = append(errs, ValidationError{
			Field:   "access_log",
			Message: "access log path is required",
		})
	}

	// The parse pattern is versioned configuration: a pattern that does not
	// compile or is missing required groups is a configuration error, never
	// a runtime crash.
	if err := validatePattern(cfg.LogPattern); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log_pattern",
			Message: err.Error(),
		})
	}

	if cfg.StreamPrefix == "" || !strings.HasPrefix(cfg.StreamPrefix, "/") {
		errs = append(errs, ValidationError{
			Field:   "stream_prefix",
			Message: `must be a URL path prefix starting with "/"`,
		})
	}

	if cfg.PollInterval < 10*time.Millisecond {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: "must be at least 10ms",
		})
	}

	if cfg.ShortWindow <= 0 {
		errs = append(errs, ValidationError{
			Field:   "short_window",
			Message: "must be positive",
		})
	}

	if cfg.LongWindow < cfg.ShortWindow {
		errs = append(errs, ValidationError{
			Field:   "long_window",
			Message: "must be at least the short window",
		})
	}

	if cfg.RateInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "rate_interval",
			Message: "must be positive",
		})
	}

	if cfg.SessionTTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "session_ttl",
			Message: "must be positive",
		})
	}

	if cfg.SweepInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "sweep_interval",
			Message: "must be positive",
		})
	}

	if cfg.SegmentSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "segment_seconds",
			Message: "must be positive",
		})
	}

	if cfg.PublishInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "publish_interval",
			Message: "must be positive",
		})
	}

	if cfg.ListenAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "listen",
			Message: "listen address is required",
		})
	}

	if cfg.BackoffInitial <= 0 || cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff",
			Message: "initial must be positive and max must be >= initial",
		})
	}

	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be at least 1.0",
		})
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: `must be "json" or "text"`,
		})
	}

	return errors.Join(errs...)
}

// validatePattern compiles the log pattern and checks required named groups.
func validatePattern(pattern string) error {
	if pattern == "" {
		return errors.New("log pattern is required")
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("does not compile: %w", err)
	}

	have := make(map[string]bool)
	for _, name := range re.SubexpNames() {
		if name != "" {
			have[name] = true
		}
	}

	var missing []string
	for _, name := range requiredGroups {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing named groups: %s", strings.Join(missing, ", "))
	}

	return nil
}
