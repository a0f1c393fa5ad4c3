package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"ragbench/internal/adapter/benchfile"
	"ragbench/internal/domain"
	"ragbench/internal/infra/logger"
	"ragbench/internal/usecase"
)

func newCompareModelsCmd(a *app) *cobra.Command {
	var (
		bench  string
		models []string
		th     thresholdFlags
	)
	cmd := &cobra.Command{
		Use:   "compare-models",
		Short: "Run the benchmark once per generator model",
		Long: `Keep retrieval, the gate and the judge fixed and vary only the generator model.
Prints faithfulness, answer success, tokens and estimated cost per model.

Examples:
  ragbench compare-models --bench bench.jsonl
  ragbench compare-models --bench bench.jsonl --models gpt-4.1-mini,gpt-4o`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			items, err := benchfile.NewLoader().LoadBench(bench)
			if err != nil {
				return err
			}
			thresholds := th.resolve(cmd, a.cfg.Thresholds)

			uc, err := a.container.CompareModels(ctx, models)
			if err != nil {
				return err
			}
			recorder, err := a.container.Recorder(ctx)
			if err != nil {
				return err
			}
			run, err := recorder.Start(ctx, domain.RunKindCompareModels, domain.RunStatusRunning, bench, usecase.QueuedRunConfig{Thresholds: thresholds})
			if err != nil {
				return err
			}
			ctx = logger.WithRunID(ctx, run.ID)

			rows, runErr := uc.Execute(ctx, items, thresholds)
			errs := []error{runErr}
			for _, row := range rows {
				errs = append(errs,
					recorder.SaveItems(ctx, run.ID, row.Model, row.Results),
					benchfile.WriteResults(a.outputPath(fmt.Sprintf("compare_%s_%s.jsonl", run.ID, fileSafe(row.Model))), row.Results),
				)
			}
			summaryPath := a.outputPath(fmt.Sprintf("compare_models_%s.json", run.ID))
			errs = append(errs,
				benchfile.WriteJSON(summaryPath, rows),
				recorder.Finish(ctx, run.ID, rows, runErr),
				a.printer.ModelComparison(rows),
			)
			a.printer.Success("wrote %s", summaryPath)
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&bench, "bench", "", "benchmark file (JSONL, JSON or YAML)")
	cmd.Flags().StringSliceVar(&models, "models", nil, "generator models (default compare.models)")
	_ = cmd.MarkFlagRequired("bench")
	th.register(cmd)
	return cmd
}

func newCompareEmbeddingsCmd(a *app) *cobra.Command {
	var (
		bench string
		ks    []int
	)
	cmd := &cobra.Command{
		Use:   "compare-embeddings",
		Short: "Measure recall@k per embedding model and collection",
		Long: `For each compare.embeddings entry, retrieve every answerable item that lists
must_contain substrings and report the share whose top-k dense and final passages
contain all of them. Without compare.embeddings the configured embedding and
collection are measured.

Examples:
  ragbench compare-embeddings --bench bench.jsonl
  ragbench compare-embeddings --bench bench.jsonl --ks 1,5,20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			items, err := benchfile.NewLoader().LoadBench(bench)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ks") {
				a.cfg.Compare.Ks = ks
			}
			if len(a.cfg.Compare.Ks) == 0 {
				a.cfg.Compare.Ks = usecase.DefaultRecallKs
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			printKs := slices.Clone(a.cfg.Compare.Ks)
			slices.Sort(printKs)

			uc, err := a.container.CompareEmbeddings(ctx)
			if err != nil {
				return err
			}
			recorder, err := a.container.Recorder(ctx)
			if err != nil {
				return err
			}
			run, err := recorder.Start(ctx, domain.RunKindCompareEmbeddings, domain.RunStatusRunning, bench, a.cfg.Compare)
			if err != nil {
				return err
			}
			ctx = logger.WithRunID(ctx, run.ID)

			rows, runErr := uc.Execute(ctx, items)
			summaryPath := a.outputPath(fmt.Sprintf("compare_embeddings_%s.json", run.ID))
			errs := []error{
				runErr,
				benchfile.WriteJSON(summaryPath, rows),
				recorder.Finish(ctx, run.ID, rows, runErr),
				a.printer.Recall(rows, printKs),
			}
			a.printer.Success("wrote %s", summaryPath)
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&bench, "bench", "", "benchmark file (JSONL, JSON or YAML)")
	cmd.Flags().IntSliceVar(&ks, "ks", nil, "recall cutoffs (default compare.ks)")
	_ = cmd.MarkFlagRequired("bench")
	return cmd
}

var unsafeFileChars = strings.NewReplacer("/", "_", ":", "_", " ", "_")

func fileSafe(name string) string {
	return unsafeFileChars.Replace(name)
}
