package port

import (
	"context"

	"github.com/hardwicksoftware/specmem-backfill/internal/domain"
)

// SymbolStore abstracts the schema-isolated persistence layer for symbol
// definitions. All operations are confined to one project's schema.
type SymbolStore interface {
	// CountMissing returns how many symbols still have a null embedding.
	CountMissing(ctx context.Context) (int, error)

	// CountTotal returns the total number of symbol rows.
	CountTotal(ctx context.Context) (int, error)

	// FetchPage returns up to limit symbols with a null embedding whose
	// id sorts after afterID, with language denormalized from the owning
	// file. Paging by id keeps the scan moving past rows that keep
	// failing instead of refetching them forever.
	FetchPage(ctx context.Context, afterID string, limit int) ([]domain.SymbolDefinition, error)

	// WriteEmbedding stores the vector for a single symbol by id.
	WriteEmbedding(ctx context.Context, id string, vector []float32) error
}
