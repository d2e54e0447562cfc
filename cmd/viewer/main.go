// Package main is the entry point for the fieldline artifact viewer.
//
// The viewer is a small read-only HTTP server over the runs directory the
// pipeline writes into. It lists completed runs and serves their artifacts
// (interactive map, boundary vectors, run report, quicklook) so results can
// be inspected in a browser without touching the filesystem by hand.
//
// Usage:
//
//	go run ./cmd/viewer
//	go run ./cmd/viewer -dir ./runs -port 9090
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldline/internal/config"
	"fieldline/internal/viewer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	dirFlag := flag.String("dir", "", "runs directory to serve (default: ARTIFACTS_DIR from config)")
	portFlag := flag.String("port", "", "port to listen on (default: VIEWER_PORT from config)")
	flag.Parse()

	// The viewer is a local convenience tool, so a nil SecretProvider is
	// fine: SSM resolution is bypassed when APP_ENV=local and the viewer
	// needs no secrets either way.
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	runsDir := cfg.Artifacts.Dir
	if *dirFlag != "" {
		runsDir = *dirFlag
	}
	port := cfg.Viewer.Port
	if *portFlag != "" {
		port = *portFlag
	}

	logger.Info("fieldline viewer starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"runs_dir", runsDir,
		"port", port,
	)

	srv, err := viewer.NewServer(viewer.ServerConfig{
		RunsDir:        runsDir,
		RequestTimeout: cfg.Viewer.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating viewer server: %w", err)
	}

	return runHTTPServer(srv.Handler(), ":"+port, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(handler http.Handler, addr string, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
