package port

import "context"

// Embedder abstracts the local inference service that turns text into
// fixed-dimension vectors. Implementations target the embedding socket
// daemon; tests substitute in-memory fakes.
type Embedder interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result is positionally aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
