package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hardwicksoftware/specmem-backfill/internal/domain"
	"github.com/hardwicksoftware/specmem-backfill/internal/port"
)

const progressInterval = 500 * time.Millisecond

// BackfillService drives the embedding backfill: it pages through symbols
// missing a vector, embeds each page in one batch call and falls back to
// per-row calls when the batch fails. A single bad row never aborts the
// run; failures only show up in the counters.
type BackfillService struct {
	store     port.SymbolStore
	embedder  port.Embedder
	batchSize int

	// dimension learned from the preflight call, used to reject
	// malformed vectors before they are written.
	dimension int
}

// NewBackfillService creates a backfill service.
func NewBackfillService(store port.SymbolStore, embedder port.Embedder, batchSize int) *BackfillService {
	return &BackfillService{
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Preflight verifies the embedding service answers and learns its vector
// dimension. A failure here is fatal; the run must not start.
func (s *BackfillService) Preflight(ctx context.Context) (int, error) {
	vec, err := s.embedder.Embed(ctx, "test")
	if err != nil {
		return 0, fmt.Errorf("trial embedding: %w", err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("trial embedding: service returned an empty vector")
	}
	s.dimension = len(vec)
	return s.dimension, nil
}

// Run executes the backfill to completion. Per-row and per-batch failures
// are counted and skipped; only setup and infrastructure errors (counts,
// page fetches) are returned.
func (s *BackfillService) Run(ctx context.Context) (*domain.RunStats, error) {
	if s.dimension == 0 {
		if _, err := s.Preflight(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	stats := &domain.RunStats{}

	total, err := s.store.CountMissing(ctx)
	if err != nil {
		return nil, err
	}
	allDefs, err := s.store.CountTotal(ctx)
	if err != nil {
		return nil, err
	}
	stats.Total = total
	stats.AllDefs = allDefs

	if total == 0 {
		stats.Elapsed = time.Since(start)
		slog.Info("all symbols already embedded", "all_defs", allDefs)
		return stats, nil
	}

	slog.Info("starting backfill",
		"missing", total, "all_defs", allDefs, "dimension", s.dimension, "batch_size", s.batchSize)

	afterID := ""
	lastProgress := time.Now()
	for {
		page, err := s.store.FetchPage(ctx, afterID, s.batchSize)
		if err != nil {
			return stats, err
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		texts := make([]string, len(page))
		for i := range page {
			texts[i] = page[i].EmbeddingText()
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			slog.Warn("batch embed failed, falling back to single calls",
				"rows", len(page), "error", err)
			s.fallback(ctx, page, stats)
		} else {
			for i := range page {
				s.persist(ctx, &page[i], vectors[i], stats)
			}
		}

		if time.Since(lastProgress) >= progressInterval {
			s.reportProgress(stats, start)
			lastProgress = time.Now()
		}
	}

	stats.Elapsed = time.Since(start)

	remaining, err := s.store.CountMissing(ctx)
	if err != nil {
		slog.Warn("could not verify remaining count", "error", err)
	} else {
		stats.Remaining = remaining
	}

	slog.Info("backfill finished",
		"processed", stats.Processed,
		"failed", stats.Failed,
		"remaining", stats.Remaining,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
		"rate", fmt.Sprintf("%.1f/s", stats.Rate()))

	return stats, nil
}

// fallback embeds a page one row at a time, in row order, after a failed
// batch call. Each row either persists or is counted failed; no further
// retry beyond this one attempt per row.
func (s *BackfillService) fallback(ctx context.Context, page []domain.SymbolDefinition, stats *domain.RunStats) {
	for i := range page {
		vec, err := s.embedder.Embed(ctx, page[i].EmbeddingText())
		if err != nil {
			slog.Warn("fallback embed failed", "id", page[i].ID, "error", err)
			stats.Failed++
			continue
		}
		s.persist(ctx, &page[i], vec, stats)
	}
}

// persist writes one vector, counting the row failed (and leaving it
// null) when the vector is malformed or the write errors.
func (s *BackfillService) persist(ctx context.Context, sym *domain.SymbolDefinition, vec []float32, stats *domain.RunStats) {
	if len(vec) == 0 || len(vec) != s.dimension {
		slog.Warn("malformed vector, leaving row unembedded",
			"id", sym.ID, "got_dims", len(vec), "want_dims", s.dimension)
		stats.Failed++
		return
	}
	if err := s.store.WriteEmbedding(ctx, sym.ID, vec); err != nil {
		slog.Warn("write embedding failed", "id", sym.ID, "error", err)
		stats.Failed++
		return
	}
	stats.Processed++
}

func (s *BackfillService) reportProgress(stats *domain.RunStats, start time.Time) {
	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(stats.Processed) / elapsed
	}
	eta := time.Duration(0)
	if rate > 0 {
		eta = time.Duration(float64(stats.Total-stats.Processed)/rate) * time.Second
	}
	slog.Info("progress",
		"done", fmt.Sprintf("%d/%d", stats.Processed, stats.Total),
		"percent", fmt.Sprintf("%.0f%%", 100*float64(stats.Processed)/float64(stats.Total)),
		"failed", stats.Failed,
		"rate", fmt.Sprintf("%.1f/s", rate),
		"eta", eta.Round(time.Second))
}
