package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ragbench/internal/domain"
	"ragbench/internal/infra/metrics"
)

// CrossEncoderReranker implements domain.Reranker over a pairwise scoring backend.
// It holds no state across calls besides the scorer handle.
type CrossEncoderReranker struct {
	scorer domain.PairScorer
	logger *slog.Logger
}

var _ domain.Reranker = (*CrossEncoderReranker)(nil)

// NewCrossEncoderReranker creates a reranker backed by scorer.
func NewCrossEncoderReranker(scorer domain.PairScorer, logger *slog.Logger) *CrossEncoderReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossEncoderReranker{scorer: scorer, logger: logger}
}

// Rerank scores every candidate against the query and keeps the topN best.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate, topN int) ([]domain.Candidate, error) {
	if topN < 0 {
		return nil, fmt.Errorf("%w: rerank top_n must be >= 0, got %d", domain.ErrConfiguration, topN)
	}
	if len(candidates) == 0 {
		return []domain.Candidate{}, nil
	}

	start := time.Now()
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	scores, err := r.scorer.ScorePairs(ctx, query, texts)
	if err != nil {
		r.logger.Warn("reranking_failed",
			slog.String("model", r.scorer.ModelName()),
			slog.Int("candidate_count", len(candidates)),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return nil, domain.WrapKind(domain.ErrRerank, "score pairs", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: scorer returned %d scores for %d candidates", domain.ErrRerank, len(scores), len(candidates))
	}

	ranked := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		c.RerankScore = domain.Float64Ptr(scores[i])
		ranked[i] = c
	}
	// Stable so equal scores keep dense order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].RerankScore > *ranked[j].RerankScore
	})
	if topN < len(ranked) {
		ranked = ranked[:topN]
	}

	elapsed := time.Since(start)
	metrics.RecordStage(metrics.StageRerank, elapsed)
	r.logger.Debug("reranking_completed",
		slog.String("model", r.scorer.ModelName()),
		slog.Int("candidate_count", len(candidates)),
		slog.Int("reranked_count", len(ranked)),
		slog.Int64("duration_ms", elapsed.Milliseconds()))

	return ranked, nil
}

// ModelName returns the scoring model identifier.
func (r *CrossEncoderReranker) ModelName() string {
	return r.scorer.ModelName()
}
