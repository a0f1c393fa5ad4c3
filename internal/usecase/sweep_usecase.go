package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ragbench/internal/domain"
	"ragbench/internal/infra/logger"
)

// SweepCellReport pairs a cell summary with its item results.
type SweepCellReport struct {
	Cell    domain.SweepCell
	Results []domain.ItemResult
}

// SweepRunner evaluates a benchmark once per threshold cell. Each cell reruns the
// full per-item pipeline with its own accumulator.
type SweepRunner struct {
	runner          *BenchmarkRunner
	cellConcurrency int
	logger          *slog.Logger
}

// NewSweepRunner creates a sweep runner. cellConcurrency < 1 means cells run one at a time.
func NewSweepRunner(runner *BenchmarkRunner, cellConcurrency int, log *slog.Logger) *SweepRunner {
	if log == nil {
		log = slog.Default()
	}
	return &SweepRunner{runner: runner, cellConcurrency: max(cellConcurrency, 1), logger: log}
}

// Run returns one report per grid cell, in grid order regardless of completion order.
func (s *SweepRunner) Run(ctx context.Context, items []domain.BenchItem, grid SweepGrid) ([]SweepCellReport, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	cells := grid.Cells()
	for _, th := range cells {
		cfg := EvaluationConfig{Retrieval: s.runner.evaluator.Params(), Thresholds: th}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	reports := make([]SweepCellReport, len(cells))
	for i, th := range cells {
		reports[i].Cell.Thresholds = th
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cellConcurrency)
	for i, th := range cells {
		g.Go(func() error {
			cellCtx := logger.WithSweepCell(gctx, CellKey(th))
			rep, err := s.runner.Run(cellCtx, items, th)
			if rep != nil {
				reports[i] = SweepCellReport{
					Cell:    domain.SweepCell{Thresholds: th, Summary: rep.Summary},
					Results: rep.Results,
				}
			}
			return err
		})
	}
	err := g.Wait()

	s.logger.InfoContext(ctx, "sweep_completed",
		slog.Int("cells", len(cells)),
		slog.Int("items", len(items)))
	return reports, err
}
