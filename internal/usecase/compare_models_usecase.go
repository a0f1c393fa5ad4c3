package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ragbench/internal/domain"
)

// ModelComparisonRow summarizes one generator model over the benchmark.
type ModelComparisonRow struct {
	Model            string                `json:"model"`
	FaithfulnessRate float64               `json:"faithfulness_rate"`
	MeanCostUSD      float64               `json:"avg_cost_usd"`
	MeanTokens       float64               `json:"avg_tokens"`
	MeanRetrievalMs  float64               `json:"avg_retrieval_ms"`
	Summary          domain.MetricsSummary `json:"summary"`
	Results          []domain.ItemResult   `json:"-"`
}

// CompareModelsUsecase runs the same benchmark once per generator model. Retrieval,
// gate and judge stay fixed so only generation varies.
type CompareModelsUsecase struct {
	runner     *BenchmarkRunner
	generators []domain.Generator
	logger     *slog.Logger
}

// NewCompareModelsUsecase creates the comparison.
func NewCompareModelsUsecase(runner *BenchmarkRunner, generators []domain.Generator, logger *slog.Logger) *CompareModelsUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompareModelsUsecase{runner: runner, generators: generators, logger: logger}
}

// Execute returns one row per generator, in the configured order.
func (u *CompareModelsUsecase) Execute(ctx context.Context, items []domain.BenchItem, th domain.Thresholds) ([]ModelComparisonRow, error) {
	if len(u.generators) == 0 {
		return nil, fmt.Errorf("%w: no generator models configured", domain.ErrConfiguration)
	}

	rows := make([]ModelComparisonRow, 0, len(u.generators))
	for _, g := range u.generators {
		runner := u.runner.WithEvaluator(u.runner.evaluator.WithGenerator(g))
		rep, err := runner.Run(ctx, items, th)
		if rep != nil {
			rows = append(rows, ModelComparisonRow{
				Model:            g.Model(),
				FaithfulnessRate: rep.Summary.FaithfulnessRate,
				MeanCostUSD:      rep.Summary.MeanCostUSD,
				MeanTokens:       rep.Summary.MeanTokens,
				MeanRetrievalMs:  rep.Summary.RetrievalLatency.MeanMs,
				Summary:          rep.Summary,
				Results:          rep.Results,
			})
		}
		if err != nil {
			return rows, err
		}
		u.logger.InfoContext(ctx, "model_compared",
			slog.String("model", g.Model()),
			slog.Float64("faithfulness_rate", rep.Summary.FaithfulnessRate),
			slog.Float64("avg_cost_usd", rep.Summary.MeanCostUSD))
	}
	return rows, nil
}
