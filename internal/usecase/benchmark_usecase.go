package usecase

import (
	"context"
	"log/slog"
	"time"

	"ragbench/internal/domain"
	"ragbench/internal/usecase/summary"
	"ragbench/internal/worker"
)

// BenchmarkReport is the outcome of one benchmark pass under a single threshold pair.
type BenchmarkReport struct {
	Thresholds domain.Thresholds     `json:"thresholds"`
	Results    []domain.ItemResult   `json:"-"`
	Summary    domain.MetricsSummary `json:"summary"`
	Elapsed    time.Duration         `json:"-"`
}

// BenchmarkRunner fans items out over a worker pool and folds results into one
// summary on a single goroutine.
type BenchmarkRunner struct {
	evaluator *Evaluator
	pool      *worker.Pool
	logger    *slog.Logger
}

// NewBenchmarkRunner creates a runner. A nil pool runs items sequentially.
func NewBenchmarkRunner(evaluator *Evaluator, pool *worker.Pool, logger *slog.Logger) *BenchmarkRunner {
	if pool == nil {
		pool = worker.NewPool(worker.DefaultPoolConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BenchmarkRunner{evaluator: evaluator, pool: pool, logger: logger}
}

// WithEvaluator returns a copy of r that evaluates with e.
func (r *BenchmarkRunner) WithEvaluator(e *Evaluator) *BenchmarkRunner {
	cp := *r
	cp.evaluator = e
	return &cp
}

// Run evaluates every item under th. Configuration errors are returned before any
// item runs. If ctx is cancelled mid-run the report covers the items that finished,
// in input order, and the context error is returned alongside it.
func (r *BenchmarkRunner) Run(ctx context.Context, items []domain.BenchItem, th domain.Thresholds) (*BenchmarkReport, error) {
	cfg := EvaluationConfig{Retrieval: r.evaluator.Params(), Thresholds: th}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	acc := summary.NewAccumulator()
	slots := make([]*domain.ItemResult, len(items))

	runErr := worker.Run(ctx, r.pool, len(items),
		func(ctx context.Context, i int) domain.ItemResult {
			return r.evaluator.Evaluate(ctx, items[i], th)
		},
		func(i int, res domain.ItemResult) {
			slots[i] = &res
			acc.Add(res)
		})

	results := make([]domain.ItemResult, 0, len(items))
	for _, s := range slots {
		if s != nil {
			results = append(results, *s)
		}
	}
	report := &BenchmarkReport{
		Thresholds: th,
		Results:    results,
		Summary:    acc.Snapshot(),
		Elapsed:    time.Since(start),
	}

	r.logger.InfoContext(ctx, "benchmark_completed",
		slog.Int("items", len(items)),
		slog.Int("processed", len(results)),
		slog.Int("failed", report.Summary.Counts.Failed),
		slog.Float64("tau_dense", th.Dense),
		slog.Float64("tau_rerank", th.Rerank),
		slog.Float64("answer_success_rate", report.Summary.AnswerSuccessRate),
		slog.Float64("hallucination_rate", report.Summary.HallucinationRate),
		slog.Int64("duration_ms", report.Elapsed.Milliseconds()))

	return report, runErr
}
