package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hardwicksoftware/specmem-backfill/internal/domain"
)

// Store handles all symbol reads/writes, confined to one project's schema.
// The search_path binding is connection-local, so every freshly acquired
// pool connection is rebound before any query runs on it.
type Store struct {
	db     *sqlx.DB
	schema string
}

// New opens a connection pool and returns a store bound to the project's
// schema. maxConns bounds pool size only; the backfill itself is sequential.
func New(databaseURL, projectPath string, maxConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, schema: SchemaForPath(projectPath)}, nil
}

// NewFromDB wraps an existing database handle. Used by tests.
func NewFromDB(db *sqlx.DB, projectPath string) *Store {
	return &Store{db: db, schema: SchemaForPath(projectPath)}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Schema returns the resolved schema name.
func (s *Store) Schema() string {
	return s.schema
}

// withConn runs fn on a single pool connection with the schema binding
// applied, releasing the connection afterwards.
func (s *Store) withConn(ctx context.Context, fn func(*sqlx.Conn) error) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	bind := fmt.Sprintf("SET search_path TO %s, %s",
		pq.QuoteIdentifier(s.schema), pq.QuoteIdentifier("public"))
	if _, err := conn.ExecContext(ctx, bind); err != nil {
		return fmt.Errorf("bind schema %s: %w", s.schema, err)
	}

	return fn(conn)
}

// CountMissing returns how many symbols still have a null embedding.
func (s *Store) CountMissing(ctx context.Context) (int, error) {
	var n int
	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &n,
			`SELECT COUNT(*) FROM symbols WHERE embedding IS NULL`)
	})
	if err != nil {
		return 0, fmt.Errorf("count missing: %w", err)
	}
	return n, nil
}

// CountTotal returns the total number of symbol rows.
func (s *Store) CountTotal(ctx context.Context) (int, error) {
	var n int
	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM symbols`)
	})
	if err != nil {
		return 0, fmt.Errorf("count total: %w", err)
	}
	return n, nil
}

// FetchPage returns up to limit unembedded symbols after afterID in id
// order, with language denormalized from the owning file. Orphaned rows
// (no matching file) come back with an empty language.
func (s *Store) FetchPage(ctx context.Context, afterID string, limit int) ([]domain.SymbolDefinition, error) {
	query := `SELECT s.id, s.kind, s.name,
	                 COALESCE(s.signature, '') AS signature,
	                 COALESCE(s.docstring, '') AS docstring,
	                 s.file_path,
	                 COALESCE(f.language, '') AS language
	          FROM symbols s
	          LEFT JOIN files f ON f.path = s.file_path
	          WHERE s.embedding IS NULL AND s.id > $1
	          ORDER BY s.id
	          LIMIT $2`

	var page []domain.SymbolDefinition
	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &page, query, afterID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return page, nil
}

// WriteEmbedding stores the vector for a single symbol. The vector is
// always passed as a bind value, never interpolated into the query text.
func (s *Store) WriteEmbedding(ctx context.Context, id string, vector []float32) error {
	err := s.withConn(ctx, func(conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE symbols SET embedding = $1::vector WHERE id = $2`,
			vectorToString(vector), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("write embedding: %w", err)
	}
	return nil
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
