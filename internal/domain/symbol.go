package domain

import (
	"fmt"
	"strings"
	"time"
)

// SymbolDefinition represents one discovered code construct (function,
// class, method, ...) stored in the symbols table. Embedding is nil until
// the indexer or the backfill pipeline fills it.
type SymbolDefinition struct {
	ID        string    `json:"id"        db:"id"`
	Kind      string    `json:"kind"      db:"kind"`
	Name      string    `json:"name"      db:"name"`
	Signature string    `json:"signature" db:"signature"`
	Docstring string    `json:"docstring" db:"docstring"`
	FilePath  string    `json:"file_path" db:"file_path"`
	Language  string    `json:"language"  db:"language"`
	Embedding []float32 `json:"-"         db:"embedding"`
}

// EmbeddingText composes the canonical text a symbol is embedded from.
// The indexing pipeline uses the same composition, so vectors produced by
// either path stay comparable. Optional fields are omitted when empty.
func (s *SymbolDefinition) EmbeddingText() string {
	lines := []string{fmt.Sprintf("%s %s", s.Kind, s.Name)}
	if s.Signature != "" {
		lines = append(lines, s.Signature)
	}
	if s.Docstring != "" {
		lines = append(lines, s.Docstring)
	}
	if s.FilePath != "" {
		lines = append(lines, "File: "+s.FilePath)
	}
	if s.Language != "" {
		lines = append(lines, "Language: "+s.Language)
	}
	return strings.Join(lines, "\n")
}

// RunStats holds the counters for one backfill invocation. It is never
// persisted.
type RunStats struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Total     int           `json:"total"`
	AllDefs   int           `json:"all_defs"`
	Remaining int           `json:"remaining"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Rate returns throughput in symbols per second.
func (r *RunStats) Rate() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Processed) / secs
}
