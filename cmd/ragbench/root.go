package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"ragbench/internal/di"
	"ragbench/internal/infra/config"
	"ragbench/internal/infra/logger"
	"ragbench/internal/infra/telemetry"
	"ragbench/internal/output"
)

// app is the state shared by every command of one invocation.
type app struct {
	cfgFile   string
	colorMode string
	quiet     bool
	verbose   bool

	out    io.Writer
	errOut io.Writer

	cfg       *config.Config
	logger    *slog.Logger
	printer   *output.Printer
	container *di.Container
	shutdown  telemetry.ShutdownFunc
}

// execute runs the command line in args and releases every resource it opened,
// whether or not the command succeeded.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close(context.WithoutCancel(ctx)))
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragbench",
		Short: "Retrieval and answer/abstain benchmark for RAG pipelines",
		Long: `ragbench measures how well a retrieval-augmented generation pipeline retrieves
context, decides whether to answer or abstain, and stays faithful to the context.

Example usage:
  ragbench index --corpus corpus.jsonl          # Build the vector collection
  ragbench run --bench bench.jsonl              # Evaluate with the configured thresholds
  ragbench sweep --bench bench.jsonl            # Evaluate every (tau_dense, tau_rerank) cell
  ragbench compare-models --bench bench.jsonl   # One run per generator model
  ragbench compare-embeddings --bench bench.jsonl
  ragbench serve                                # HTTP API with queued runs
  ragbench runs list`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .ragbench.yaml)")
	root.PersistentFlags().StringVar(&a.colorMode, "color", "auto", "color output: auto, always or never")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "only print errors")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(a),
		newSweepCmd(a),
		newCompareModelsCmd(a),
		newCompareEmbeddingsCmd(a),
		newIndexCmd(a),
		newServeCmd(a),
		newRunsCmd(a),
	)
	return root
}

// init loads configuration and builds the logger, printer and container.
func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	mode, err := output.ParseColorMode(a.colorMode)
	if err != nil {
		return err
	}
	a.printer = output.NewPrinter(output.PrinterOptions{
		ColorMode:    mode,
		ConfigColors: cfg.Output.Color,
		Quiet:        a.quiet,
		Out:          a.out,
		Err:          a.errOut,
	})

	a.shutdown, err = telemetry.InitProvider(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	a.logger = logger.NewWithOptions(logger.Options{
		Level:  level,
		Format: cfg.Log.Format,
		OTel:   cfg.Telemetry.Enabled,
		Writer: a.errOut,
	})
	a.container = di.New(cfg, a.logger)

	a.logger.Debug("configuration_loaded",
		slog.String("embedding", cfg.Embedding.Backend+":"+cfg.Embedding.Model),
		slog.String("index", cfg.Index.Backend+":"+cfg.Index.Collection),
		slog.Bool("rerank", cfg.Rerank.Enabled),
		slog.String("run_store", cfg.RunStore.Backend))
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.container != nil {
		errs = append(errs, a.container.Close())
		a.container = nil
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	return errors.Join(errs...)
}
