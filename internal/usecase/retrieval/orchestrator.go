package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ragbench/internal/domain"
	"ragbench/internal/infra/metrics"
)

// Orchestrator runs the retrieval stage: embed the question, search the index and
// optionally rerank. Gateways are long-lived and shared across calls; nothing is cached.
type Orchestrator struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	reranker domain.Reranker
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReranker sets the reranker used when rerank is enabled.
func WithReranker(r domain.Reranker) Option {
	return func(o *Orchestrator) {
		o.reranker = r
	}
}

// WithClock overrides the clock used for stage timings.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an Orchestrator over the given gateways.
func NewOrchestrator(embedder domain.Embedder, index domain.VectorIndex, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		embedder: embedder,
		index:    index,
		logger:   logger,
		tracer:   otel.Tracer("ragbench/retrieval"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ValidateParams checks retrieval parameters before any item runs.
func (o *Orchestrator) ValidateParams(params domain.RetrievalParams) error {
	if params.DenseTopK <= 0 {
		return fmt.Errorf("%w: dense_top_k must be positive, got %d", domain.ErrConfiguration, params.DenseTopK)
	}
	if params.RerankTopN < 0 {
		return fmt.Errorf("%w: rerank_top_n must be >= 0, got %d", domain.ErrConfiguration, params.RerankTopN)
	}
	if params.RerankEnabled && o.reranker == nil {
		return fmt.Errorf("%w: rerank enabled but no reranker configured", domain.ErrConfiguration)
	}
	return nil
}

// Retrieve executes one retrieval for question.
func (o *Orchestrator) Retrieve(ctx context.Context, question string, params domain.RetrievalParams) (*domain.RetrievalResult, error) {
	if err := o.ValidateParams(params); err != nil {
		return nil, err
	}

	// Stage 1: embed the question once.
	start := o.now()
	vector, err := o.embedQuery(ctx, question)
	embedElapsed := o.now().Sub(start)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage(metrics.StageEmbedQuery, embedElapsed)

	// Stage 2: single similarity search.
	start = o.now()
	dense, err := o.search(ctx, vector, params.DenseTopK)
	retrieveElapsed := o.now().Sub(start)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage(metrics.StageSearch, retrieveElapsed)

	// Stage 3: rerank the full dense set.
	var reranked []domain.Candidate
	var rerankElapsed time.Duration
	if params.RerankEnabled {
		start = o.now()
		reranked, err = o.rerank(ctx, question, dense, params.RerankTopN)
		rerankElapsed = o.now().Sub(start)
		if err != nil {
			return nil, err
		}
	}

	timings := domain.NewStageTimings(embedElapsed, retrieveElapsed, rerankElapsed)
	result := domain.NewRetrievalResult(question, params, dense, reranked, timings)

	attrs := []any{
		slog.Int("dense_count", len(result.DenseResults)),
		slog.Int("final_count", len(result.FinalResults)),
		slog.Float64("top_dense_score", result.TopDenseScore),
		slog.Int64("duration_ms", timings.Total.Milliseconds()),
	}
	if result.TopRerankScore != nil {
		attrs = append(attrs, slog.Float64("top_rerank_score", *result.TopRerankScore))
	}
	o.logger.DebugContext(ctx, "retrieval_completed", attrs...)

	return &result, nil
}

func (o *Orchestrator) embedQuery(ctx context.Context, question string) ([]float32, error) {
	ctx, span := o.tracer.Start(ctx, "ragbench.embed_query",
		trace.WithAttributes(attribute.String("ragbench.embedder", o.embedder.Name())))
	defer span.End()

	vector, err := o.embedder.EmbedQuery(ctx, question)
	if err != nil {
		err = domain.WrapKind(domain.ErrEmbedding, "embed query", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.WarnContext(ctx, "embedding_failed",
			slog.String("embedder", o.embedder.Name()),
			slog.String("error", err.Error()))
		return nil, err
	}
	if want := o.index.Dimension(); want > 0 && len(vector) != want {
		err = fmt.Errorf("%w: %w: embedder %s produced %d dims, index %s expects %d",
			domain.ErrEmbedding, domain.ErrDimensionMismatch, o.embedder.Name(), len(vector), o.index.Name(), want)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dimension mismatch")
		return nil, err
	}
	return vector, nil
}

func (o *Orchestrator) search(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	ctx, span := o.tracer.Start(ctx, "ragbench.search",
		trace.WithAttributes(
			attribute.String("ragbench.index", o.index.Name()),
			attribute.Int("ragbench.top_k", topK)))
	defer span.End()

	points, err := o.index.Search(ctx, vector, topK)
	if err != nil {
		err = domain.WrapKind(domain.ErrRetrieval, "search", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.WarnContext(ctx, "search_failed",
			slog.String("index", o.index.Name()),
			slog.String("error", err.Error()))
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(points))
	for _, p := range points {
		candidates = append(candidates, domain.Candidate{
			Text:      p.Text(),
			Payload:   p.Payload,
			BaseScore: p.Score,
		})
	}
	span.SetAttributes(attribute.Int("ragbench.hits", len(candidates)))
	return candidates, nil
}

func (o *Orchestrator) rerank(ctx context.Context, question string, dense []domain.Candidate, topN int) ([]domain.Candidate, error) {
	ctx, span := o.tracer.Start(ctx, "ragbench.rerank",
		trace.WithAttributes(
			attribute.String("ragbench.reranker", o.reranker.ModelName()),
			attribute.Int("ragbench.candidates", len(dense))))
	defer span.End()

	reranked, err := o.reranker.Rerank(ctx, question, dense, topN)
	if err != nil {
		err = domain.WrapKind(domain.ErrRerank, "rerank", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if reranked == nil {
		reranked = []domain.Candidate{}
	}
	return reranked, nil
}
