package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func exporterPage(connections int, requests float64) string {
	return fmt.Sprintf(`# HELP nginx_connections_active Active client connections
# TYPE nginx_connections_active gauge
nginx_connections_active %d
# HELP nginx_http_requests_total Total http requests
# TYPE nginx_http_requests_total counter
nginx_http_requests_total %g
`, connections, requests)
}

func TestNewOriginScraperDisabled(t *testing.T) {
	s := NewOriginScraper("", time.Second, discardLogger())
	if s != nil {
		t.Fatal("empty URL should disable the scraper")
	}
	if s.Current() != nil {
		t.Error("Current on a nil scraper should return nil")
	}
}

func TestScrapeExtractsConnections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, exporterPage(37, 1000))
	}))
	defer srv.Close()

	s := NewOriginScraper(srv.URL, time.Second, discardLogger())
	s.scrape()

	cur := s.Current()
	if cur == nil {
		t.Fatal("expected origin state")
	}
	if !cur.Healthy {
		t.Errorf("healthy = false, error = %q", cur.Error)
	}
	if cur.ActiveConnections != 37 {
		t.Errorf("connections = %d, want 37", cur.ActiveConnections)
	}
	// First scrape has no prior counter sample
	if cur.RequestsPerSec != 0 {
		t.Errorf("rate = %v, want 0 on first scrape", cur.RequestsPerSec)
	}
}

func TestScrapeRequestRateAcrossScrapes(t *testing.T) {
	var total atomic.Int64
	total.Store(1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, exporterPage(5, float64(total.Load())))
	}))
	defer srv.Close()

	s := NewOriginScraper(srv.URL, time.Second, discardLogger())
	s.scrape()

	total.Store(1100)
	time.Sleep(100 * time.Millisecond)
	s.scrape()

	cur := s.Current()
	if cur.RequestsPerSec <= 0 {
		t.Errorf("rate = %v, want positive after a counter increase", cur.RequestsPerSec)
	}
	// 100 requests over ~0.1s; allow generous scheduling slack
	if cur.RequestsPerSec > 2000 {
		t.Errorf("rate = %v, implausibly high", cur.RequestsPerSec)
	}
}

func TestScrapeCounterResetIgnored(t *testing.T) {
	var total atomic.Int64
	total.Store(1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, exporterPage(5, float64(total.Load())))
	}))
	defer srv.Close()

	s := NewOriginScraper(srv.URL, time.Second, discardLogger())
	s.scrape()

	// Exporter restart: counter goes backwards
	total.Store(10)
	time.Sleep(20 * time.Millisecond)
	s.scrape()

	if rate := s.Current().RequestsPerSec; rate != 0 {
		t.Errorf("rate = %v, want 0 across a counter reset", rate)
	}
}

func TestScrapeFailurePreservesLastValues(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, exporterPage(37, 1000))
	}))
	defer srv.Close()

	s := NewOriginScraper(srv.URL, time.Second, discardLogger())
	s.scrape()

	fail.Store(true)
	s.scrape()

	cur := s.Current()
	if cur.Healthy {
		t.Error("healthy should be false after a failed scrape")
	}
	if cur.Error == "" {
		t.Error("error should be set after a failed scrape")
	}
	if cur.ActiveConnections != 37 {
		t.Errorf("connections = %d, want last good value 37", cur.ActiveConnections)
	}
}

func TestScrapeBeforeFirstSuccess(t *testing.T) {
	s := NewOriginScraper("http://127.0.0.1:1/metrics", time.Second, discardLogger())

	cur := s.Current()
	if cur == nil {
		t.Fatal("expected the initial placeholder state")
	}
	if cur.Healthy {
		t.Error("initial state should be unhealthy")
	}
}
