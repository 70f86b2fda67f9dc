package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hardwicksoftware/specmem-backfill/internal/adapter/embed"
	"github.com/hardwicksoftware/specmem-backfill/internal/adapter/store"
	"github.com/hardwicksoftware/specmem-backfill/internal/service"
	"github.com/hardwicksoftware/specmem-backfill/pkg/config"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("🚀 Starting embedding backfill",
		"project", cfg.ProjectPath,
		"socket", cfg.SocketPath,
		"batch_size", cfg.BatchSize,
	)

	// ── Preconditions ────────────────────────────────────────────────────
	if _, err := os.Stat(cfg.SocketPath); err != nil {
		slog.Error("embedding socket not found, is the embedding daemon running?",
			"socket", cfg.SocketPath, "error", err)
		os.Exit(1)
	}

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.New(cfg.DatabaseURL, cfg.ProjectPath, cfg.MaxWorkers)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	slog.Info("database ready", "schema", pgStore.Schema())

	// ── Embedding client + service ───────────────────────────────────────
	client := embed.NewClient(cfg.SocketPath)
	backfill := service.NewBackfillService(pgStore, client, cfg.BatchSize)

	ctx := context.Background()

	dimension, err := backfill.Preflight(ctx)
	if err != nil {
		slog.Error("embedding service unreachable", "socket", cfg.SocketPath, "error", err)
		os.Exit(1)
	}
	slog.Info("embedding service ready", "dimension", dimension)

	// ── Run ──────────────────────────────────────────────────────────────
	stats, err := backfill.Run(ctx)
	if err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	if stats.Remaining > 0 {
		slog.Warn("some symbols are still missing embeddings", "remaining", stats.Remaining)
	}
}
