// Package main is the entry point for the learnify API server.
//
// main stays minimal: read configuration, build the logger and tracer,
// make sure the data directory exists, and hand over to internal/server.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/learnify/internal/config"
	"github.com/sakif/learnify/internal/server"
	"github.com/sakif/learnify/internal/telemetry"
)

func main() {
	ctx := context.Background()

	// === 1. CONFIGURATION ===
	// Environment variables, with an optional .env file for local runs.
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	// Human-readable text locally, JSON everywhere else so log shippers can
	// parse it.
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// === 3. TRACING ===
	// A no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
	shutdownTracing, err := telemetry.Init(ctx, "learnify", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialise tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// === 4. DATA DIRECTORY ===
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if !cfg.GitHubEnabled() {
		logger.Info("GITHUB_CLIENT_ID not set; GitHub sign-in is disabled")
	}
	if cfg.GeneratorURL == "" {
		logger.Warn("GENERATOR_URL not set; content generation will fail")
	}

	// === 5. SERVE ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.Env == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
