package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"ragbench/internal/domain"
	"ragbench/internal/infra/logger"
)

// BenchLoader reads benchmark items from a file.
type BenchLoader interface {
	LoadBench(path string) ([]domain.BenchItem, error)
}

// QueuedRunConfig is the config stored with a queued run.
type QueuedRunConfig struct {
	Thresholds domain.Thresholds `json:"thresholds"`
	// Grid is set for sweep runs.
	Grid *SweepGrid `json:"grid,omitempty"`
}

// RunExecutor executes runs queued through the HTTP API.
type RunExecutor struct {
	loader   BenchLoader
	runner   *BenchmarkRunner
	sweeper  *SweepRunner
	recorder *RunRecorder
}

// NewRunExecutor creates an executor.
func NewRunExecutor(loader BenchLoader, runner *BenchmarkRunner, sweeper *SweepRunner, recorder *RunRecorder) *RunExecutor {
	return &RunExecutor{loader: loader, runner: runner, sweeper: sweeper, recorder: recorder}
}

// Execute runs a queued benchmark or sweep, stores its item results and returns the
// summary to be saved on the run.
func (e *RunExecutor) Execute(ctx context.Context, run *domain.RunRecord) (json.RawMessage, error) {
	ctx = logger.WithRunID(ctx, run.ID)

	var cfg QueuedRunConfig
	if len(run.Config) > 0 {
		if err := json.Unmarshal(run.Config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: decode run config: %w", domain.ErrConfiguration, err)
		}
	}
	items, err := e.loader.LoadBench(run.BenchPath)
	if err != nil {
		return nil, err
	}

	switch run.Kind {
	case domain.RunKindBenchmark:
		rep, err := e.runner.Run(ctx, items, cfg.Thresholds)
		if rep == nil {
			return nil, err
		}
		if serr := e.recorder.SaveItems(ctx, run.ID, "", rep.Results); serr != nil && err == nil {
			err = serr
		}
		raw, merr := json.Marshal(rep.Summary)
		if merr != nil && err == nil {
			err = merr
		}
		return raw, err

	case domain.RunKindSweep:
		grid := DefaultSweepGrid()
		if cfg.Grid != nil {
			grid = *cfg.Grid
		}
		reports, err := e.sweeper.Run(ctx, items, grid)
		cells := make([]domain.SweepCell, 0, len(reports))
		for _, rep := range reports {
			cells = append(cells, rep.Cell)
			if serr := e.recorder.SaveItems(ctx, run.ID, CellKey(rep.Cell.Thresholds), rep.Results); serr != nil && err == nil {
				err = serr
			}
		}
		raw, merr := json.Marshal(cells)
		if merr != nil && err == nil {
			err = merr
		}
		return raw, err

	default:
		return nil, fmt.Errorf("%w: run kind %q cannot be queued", domain.ErrConfiguration, run.Kind)
	}
}
