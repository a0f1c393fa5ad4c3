package retrieval_test

import (
	"context"

	"ragbench/internal/domain"

	"github.com/stretchr/testify/mock"
)

type mockEmbedder struct {
	mock.Mock
	dim int
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockEmbedder) Dimension() int { return m.dim }
func (m *mockEmbedder) Name() string   { return "mock:embed" }

type mockIndex struct {
	mock.Mock
	dim int
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, topK int) ([]domain.ScoredPoint, error) {
	args := m.Called(ctx, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredPoint), args.Error(1)
}

func (m *mockIndex) Dimension() int { return m.dim }
func (m *mockIndex) Name() string   { return "mock:collection" }

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	args := m.Called(ctx, query, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func (m *mockScorer) ModelName() string { return "mock-reranker" }

func point(text string, score float64) domain.ScoredPoint {
	return domain.ScoredPoint{
		Score:   domain.Float64Ptr(score),
		Payload: map[string]any{domain.PayloadTextKey: text, "source": text + ".md"},
	}
}

func candidate(text string, score float64) domain.Candidate {
	return domain.Candidate{Text: text, BaseScore: domain.Float64Ptr(score)}
}
