// Package main provides the hls-listener-stats CLI entry point.
//
// hls-listener-stats tails a web server access log for an HLS audio stream
// and publishes live audience metrics: active listeners, session
// classification, request rates, and a latency estimate.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/hls-listener-stats/internal/api"
	"github.com/randomizedcoder/hls-listener-stats/internal/config"
	"github.com/randomizedcoder/hls-listener-stats/internal/engine"
	"github.com/randomizedcoder/hls-listener-stats/internal/logging"
	"github.com/randomizedcoder/hls-listener-stats/internal/metrics"
	"github.com/randomizedcoder/hls-listener-stats/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/hls-listener-stats
var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("hls-listener-stats %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// When TUI is enabled, suppress logs to avoid interfering with rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger.Info("starting",
		"version", version,
		"access_log", cfg.AccessLogPath,
		"stream_prefix", cfg.StreamPrefix,
		"playlist", cfg.PlaylistPath,
		"listen", cfg.ListenAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	metrics.RegisterMetrics()

	eng, err := engine.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg.ListenAddr, eng.Publisher(), logger)
	if err := server.Start(); err != nil {
		logger.Error("api_server_start_failed", "error", err)
		return 1
	}

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx)
	}()

	if cfg.TUIEnabled {
		model := tui.New(tui.Config{
			StreamPrefix: cfg.StreamPrefix,
			ListenAddr:   cfg.ListenAddr,
			Source:       eng.Publisher(),
		})
		program := tea.NewProgram(model, tea.WithAltScreen())

		// Quit the TUI when the run context ends
		go func() {
			<-ctx.Done()
			tui.SendQuit(program)
		}()

		if _, err := program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		}
		// TUI exit (q / ctrl+c) stops the engine too
		stop()
	}

	err = <-engineDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sderr := server.Shutdown(shutdownCtx); sderr != nil {
		logger.Warn("api_server_shutdown_error", "error", sderr)
	}

	if err != nil {
		logger.Error("engine_failed", "error", err)
		return 1
	}
	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      hls-listener-stats                           ║")
	fmt.Println("║        Live Audience Metrics from HLS Access Logs                 ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Access log:  %s\n", cfg.AccessLogPath)
	fmt.Printf("  Stream:      %s*\n", cfg.StreamPrefix)
	fmt.Printf("  Playlist:    %s\n", cfg.PlaylistPath)
	fmt.Printf("  API:         http://%s/api/stats\n", cfg.ListenAddr)
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.ListenAddr)
	if cfg.OriginMetricsURL != "" {
		fmt.Printf("  Origin:      %s\n", cfg.OriginMetricsURL)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
