// Package api serves the stats document, health checks, and Prometheus
// metrics over HTTP.
//
// Handlers read only the atomically published snapshot, so request handling
// never contends with the ingestion path.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randomizedcoder/hls-listener-stats/internal/snapshot"
)

// Server provides HTTP endpoints for the stats API, health checks, and
// Prometheus metrics.
type Server struct {
	addr      string
	server    *http.Server
	publisher *snapshot.Publisher
	logger    *slog.Logger
}

// NewServer creates the HTTP server. All endpoints share one listener.
func NewServer(addr string, publisher *snapshot.Publisher, logger *slog.Logger) *Server {
	s := &Server{
		addr:      addr,
		publisher: publisher,
		logger:    logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/stats", s.statsHandler)
	mux.HandleFunc("/api/health", s.healthHandler)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Liveness check
	mux.HandleFunc("/healthz", livenessHandler)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	return s
}

// statsHandler serves the latest published snapshot as JSON.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.publisher.Load()
	if snap == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Debug("stats_encode_error", "error", err)
	}
}

// healthReply is the /api/health response body.
type healthReply struct {
	Status        string  `json:"status"` // "ok" or "degraded"
	IngestUp      bool    `json:"ingest_up"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	TailerErrors  int64   `json:"tailer_errors"`
}

// healthHandler reports pipeline health. Degraded ingest returns 503 so
// load balancer checks fail over without parsing the body.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.publisher.Load()
	if snap == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	reply := healthReply{
		Status:        "ok",
		IngestUp:      snap.IngestUp,
		UptimeSeconds: snap.UptimeSeconds,
		TailerErrors:  snap.Tailer.Errors,
	}

	code := http.StatusOK
	if !snap.IngestUp {
		reply.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		s.logger.Debug("health_encode_error", "error", err)
	}
}

// livenessHandler answers process liveness probes.
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// Start starts the server in a goroutine. Returns immediately; use
// Shutdown to stop.
func (s *Server) Start() error {
	s.logger.Info("api_server_starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api_server_error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("api_server_shutting_down")
	return s.server.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.addr
}
