package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/randomizedcoder/hls-listener-stats/internal/snapshot"
)

// OriginScraper polls the web server's Prometheus exporter so the snapshot
// can correlate listener counts with server-side connection state.
// Uses atomic.Value for lock-free reads from the publish cycle.
type OriginScraper struct {
	exporterURL string
	interval    time.Duration
	logger      *slog.Logger
	httpClient  *http.Client

	current atomic.Value // *snapshot.Origin

	// Rate calculation state
	lastReqTotal atomic.Uint64 // float64 as bits (math.Float64bits)
	lastReqTime  atomic.Value  // time.Time
}

// NewOriginScraper creates a scraper for the web server exporter.
// Returns nil if the URL is empty (feature disabled).
func NewOriginScraper(exporterURL string, interval time.Duration, logger *slog.Logger) *OriginScraper {
	if exporterURL == "" {
		return nil
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &OriginScraper{
		exporterURL: exporterURL,
		interval:    interval,
		logger:      logger,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}

	s.current.Store(&snapshot.Origin{
		Healthy: false,
		Error:   "not yet scraped",
	})

	return s
}

// Run scrapes on the configured interval until ctx is cancelled.
func (s *OriginScraper) Run(ctx context.Context) {
	if s == nil {
		return // feature disabled
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scrape()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scrape()
		}
	}
}

// Current returns the latest scraped origin state (lock-free).
// Returns nil when the feature is disabled.
func (s *OriginScraper) Current() *snapshot.Origin {
	if s == nil {
		return nil
	}
	ptr := s.current.Load()
	if ptr == nil {
		return nil
	}
	return ptr.(*snapshot.Origin)
}

// scrape fetches and decodes one exporter page, preserving the last good
// values on failure so the snapshot degrades instead of zeroing out.
func (s *OriginScraper) scrape() {
	prev := s.Current()

	families, err := s.fetch()
	if err != nil {
		s.logger.Debug("origin_scrape_error", "url", s.exporterURL, "error", err)
		next := &snapshot.Origin{
			Healthy: false,
			Error:   err.Error(),
		}
		if prev != nil {
			next.ActiveConnections = prev.ActiveConnections
			next.RequestsPerSec = prev.RequestsPerSec
		}
		s.current.Store(next)
		return
	}

	s.current.Store(&snapshot.Origin{
		Healthy:           true,
		ActiveConnections: extractActiveConnections(families),
		RequestsPerSec:    s.extractRequestRate(families),
	})
}

// fetch retrieves the exporter page and parses the Prometheus text format.
func (s *OriginScraper) fetch() (map[string]*dto.MetricFamily, error) {
	resp, err := s.httpClient.Get(s.exporterURL)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	decoder := expfmt.NewDecoder(resp.Body, expfmt.FmtText)
	families := make(map[string]*dto.MetricFamily)

	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		families[mf.GetName()] = &mf
	}

	return families, nil
}

// extractActiveConnections reads nginx_connections_active.
func extractActiveConnections(families map[string]*dto.MetricFamily) int64 {
	mf, ok := families["nginx_connections_active"]
	if !ok {
		return 0
	}
	if len(mf.GetMetric()) > 0 {
		return int64(mf.GetMetric()[0].GetGauge().GetValue())
	}
	return 0
}

// extractRequestRate derives requests/sec from the nginx_http_requests_total
// counter across consecutive scrapes.
func (s *OriginScraper) extractRequestRate(families map[string]*dto.MetricFamily) float64 {
	now := time.Now()

	var reqTotal float64
	if mf, ok := families["nginx_http_requests_total"]; ok {
		for _, metric := range mf.GetMetric() {
			reqTotal += metric.GetCounter().GetValue()
		}
	}

	var rate float64
	lastTotal := math.Float64frombits(s.lastReqTotal.Load())
	if lastTimeVal := s.lastReqTime.Load(); lastTimeVal != nil {
		lastTime := lastTimeVal.(time.Time)
		deltaTime := now.Sub(lastTime).Seconds()
		// Counter resets on exporter restart show up as a negative delta
		if deltaTime > 0 && reqTotal >= lastTotal {
			rate = (reqTotal - lastTotal) / deltaTime
		}
	}

	s.lastReqTotal.Store(math.Float64bits(reqTotal))
	s.lastReqTime.Store(now)

	return rate
}
