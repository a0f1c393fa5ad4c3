package domain

import "context"

// PairScorer is the cross-encoder scoring backend behind a Reranker.
// It scores every (query, text) pair and returns one score per text, in input order.
type PairScorer interface {
	ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}

// Reranker produces a refined relevance ordering of a candidate set.
type Reranker interface {
	// Rerank scores all candidates against the query and returns the topN highest,
	// sorted descending by rerank score with ties kept in their original order.
	// An empty candidate set returns an empty result without calling the backend.
	Rerank(ctx context.Context, query string, candidates []Candidate, topN int) ([]Candidate, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}
