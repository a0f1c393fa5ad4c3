package domain

import "context"

// ScoredPoint is one similarity-search hit.
type ScoredPoint struct {
	// Score is nil only for backends that do not report similarity.
	Score   *float64
	Payload map[string]any
}

// Text returns the passage content stored under PayloadTextKey.
func (p ScoredPoint) Text() string {
	if s, ok := p.Payload[PayloadTextKey].(string); ok {
		return s
	}
	return ""
}

// VectorIndex is the read side of a vector collection.
type VectorIndex interface {
	// Search returns up to topK points ordered by descending cosine similarity.
	// An index holding fewer points returns what it has, possibly none.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredPoint, error)
	// Dimension reports the vector size the collection was created with.
	Dimension() int
	// Name identifies the backend and collection.
	Name() string
}

// Point is a vector with its payload, ready to be written to a collection.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// IndexWriter is the write side used when (re)building a collection.
type IndexWriter interface {
	// EnsureCollection creates the collection, dropping it first when recreate is set.
	EnsureCollection(ctx context.Context, recreate bool) error
	// Upsert writes points into the collection.
	Upsert(ctx context.Context, points []Point) error
}
