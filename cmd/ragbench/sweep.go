package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ragbench/internal/adapter/benchfile"
	"ragbench/internal/domain"
	"ragbench/internal/infra/logger"
	"ragbench/internal/usecase"
)

func newSweepCmd(a *app) *cobra.Command {
	var (
		bench  string
		dense  []float64
		rerank []float64
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate a benchmark over a threshold grid",
		Long: `Run the full pipeline once per (tau_dense, tau_rerank) cell and print one row of
outcome rates per cell. The grid defaults to sweep.dense x sweep.rerank.

Examples:
  ragbench sweep --bench bench.jsonl
  ragbench sweep --bench bench.jsonl --dense 0.2,0.3 --rerank 0.1,0.2,0.3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			items, err := benchfile.NewLoader().LoadBench(bench)
			if err != nil {
				return err
			}
			grid := a.container.SweepGrid()
			if cmd.Flags().Changed("dense") {
				grid.Dense = dense
			}
			if cmd.Flags().Changed("rerank") {
				grid.Rerank = rerank
			}
			if err := grid.Validate(); err != nil {
				return err
			}

			runner, err := a.container.BenchmarkRunner(ctx)
			if err != nil {
				return err
			}
			recorder, err := a.container.Recorder(ctx)
			if err != nil {
				return err
			}
			run, err := recorder.Start(ctx, domain.RunKindSweep, domain.RunStatusRunning, bench, usecase.QueuedRunConfig{Grid: &grid})
			if err != nil {
				return err
			}
			ctx = logger.WithRunID(ctx, run.ID)

			reports, runErr := a.container.SweepRunner(runner).Run(ctx, items, grid)
			if reports == nil {
				return errors.Join(runErr, recorder.Finish(ctx, run.ID, nil, runErr))
			}

			errs := []error{runErr}
			cells := make([]domain.SweepCell, 0, len(reports))
			for _, rep := range reports {
				cells = append(cells, rep.Cell)
				th := rep.Cell.Thresholds
				errs = append(errs,
					recorder.SaveItems(ctx, run.ID, usecase.CellKey(th), rep.Results),
					benchfile.WriteResults(a.outputPath(fmt.Sprintf("sweep_%s_%.2f_%.2f.jsonl", run.ID, th.Dense, th.Rerank)), rep.Results),
				)
			}
			summaryPath := a.outputPath(fmt.Sprintf("sweep_%s.json", run.ID))
			errs = append(errs,
				benchfile.WriteJSON(summaryPath, cells),
				recorder.Finish(ctx, run.ID, cells, runErr),
				a.printer.SweepCells(cells),
			)
			a.printer.Success("wrote %s", summaryPath)
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&bench, "bench", "", "benchmark file (JSONL, JSON or YAML)")
	cmd.Flags().Float64SliceVar(&dense, "dense", nil, "tau_dense values (default from config)")
	cmd.Flags().Float64SliceVar(&rerank, "rerank", nil, "tau_rerank values (default from config)")
	_ = cmd.MarkFlagRequired("bench")
	return cmd
}
