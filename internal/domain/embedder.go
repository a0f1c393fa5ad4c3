package domain

import "context"

// Embedder maps text to fixed-dimension vectors.
type Embedder interface {
	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts and returns vectors in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension reports the vector dimension D.
	Dimension() int
	// Name identifies the backend and model, e.g. "openai:text-embedding-3-small".
	Name() string
}
