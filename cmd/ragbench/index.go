package main

import (
	"time"

	"github.com/spf13/cobra"

	"ragbench/internal/adapter/benchfile"
	"ragbench/internal/usecase"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		corpus     string
		collection string
		recreate   bool
		resume     bool
		batchSize  int
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build a vector collection from a JSONL corpus",
		Long: `Chunk every corpus record ({"text", "source"} per line), embed the passages in
batches and upsert them into the configured collection. Identical passages are
embedded once. Progress is saved to a cursor file after each batch so an
interrupted run can resume.

Examples:
  ragbench index --corpus corpus.jsonl --recreate
  ragbench index --corpus corpus.jsonl --collection docs_large --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			records, err := benchfile.NewLoader().LoadCorpus(corpus)
			if err != nil {
				return err
			}
			if collection != "" {
				a.cfg.Index.Collection = collection
			}
			if !cmd.Flags().Changed("batch-size") {
				batchSize = a.cfg.Embedding.BatchSize
			}

			uc, err := a.container.IndexCorpus(ctx)
			if err != nil {
				return err
			}
			start := time.Now()
			stats, err := uc.Execute(ctx, records, usecase.IndexOptions{
				Corpus:     corpus,
				Collection: a.cfg.Index.Collection,
				Recreate:   recreate,
				Resume:     resume,
				BatchSize:  batchSize,
			})
			if err != nil {
				return err
			}
			a.printer.IndexStats(a.cfg.Index.Collection, *stats, time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVar(&corpus, "corpus", "", "corpus file (JSONL)")
	cmd.Flags().StringVar(&collection, "collection", "", "collection to build (default index.collection)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the collection")
	cmd.Flags().BoolVar(&resume, "resume", true, "continue from the cursor file")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per embedding batch (default embedding.batch_size)")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}
