package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ragbench/internal/domain"
	"ragbench/internal/usecase"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored runs",
	}
	cmd.AddCommand(newRunsListCmd(a), newRunsShowCmd(a))
	return cmd
}

func (a *app) runRepository(cmd *cobra.Command) (domain.RunRepository, error) {
	repo, err := a.container.RunRepository(cmd.Context())
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("%w: run store is disabled (run_store.backend=none)", domain.ErrConfiguration)
	}
	return repo, nil
}

func newRunsListCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the most recent runs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.runRepository(cmd)
			if err != nil {
				return err
			}
			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return a.writeJSON(runs)
			}
			return a.printer.Runs(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	var (
		items  bool
		cell   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run and its summary",
		Long: `Show a stored run. Summaries of plain runs and sweeps are rendered as tables;
other kinds are printed as JSON.

Examples:
  ragbench runs show 0b5c...
  ragbench runs show 0b5c... --items --cell 0.30/0.20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.runRepository(cmd)
			if err != nil {
				return err
			}
			run, err := repo.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}

			var results []domain.ItemResult
			if items {
				if results, err = repo.ListItems(ctx, run.ID, cell); err != nil {
					return err
				}
			}
			if asJSON {
				return a.writeJSON(struct {
					*domain.RunRecord
					Items []domain.ItemResult `json:"items,omitempty"`
				}{run, results})
			}

			if err := a.printer.Runs([]domain.RunRecord{*run}); err != nil {
				return err
			}
			if run.Error != "" {
				a.printer.Error("%s", run.Error)
			}
			if err := a.printSummary(run); err != nil {
				return err
			}
			if items {
				return a.printer.Items(results)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&items, "items", false, "include per-item records")
	cmd.Flags().StringVar(&cell, "cell", "", "sweep cell key, e.g. 0.30/0.20")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func (a *app) printSummary(run *domain.RunRecord) error {
	if len(run.Summary) == 0 || string(run.Summary) == "null" {
		return nil
	}
	switch run.Kind {
	case domain.RunKindBenchmark:
		var s domain.MetricsSummary
		if err := json.Unmarshal(run.Summary, &s); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		return a.printer.Summary("Summary", s)
	case domain.RunKindSweep:
		var cells []domain.SweepCell
		if err := json.Unmarshal(run.Summary, &cells); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		return a.printer.SweepCells(cells)
	case domain.RunKindCompareModels:
		var rows []usecase.ModelComparisonRow
		if err := json.Unmarshal(run.Summary, &rows); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		return a.printer.ModelComparison(rows)
	default:
		return a.writeJSON(run.Summary)
	}
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
