package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"ragbench/internal/adapter/rag_http"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval and evaluation HTTP API",
		Long: `Start the HTTP API:
  POST /v1/retrieve       retrieval stage only
  POST /v1/evaluate       one item through the full pipeline
  POST /v1/runs           queue a run or sweep over a bench file
  GET  /v1/runs[/:id]     stored runs and their items
  GET  /healthz, /readyz, /metrics

Queued runs are executed by an in-process worker when server.worker is set and a
run store is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv, err := a.container.Server(ctx)
			if err != nil {
				return err
			}
			e := rag_http.NewServer(srv.Handler, a.logger, srv.Checks...)

			if srv.Worker != nil {
				srv.Worker.Start()
				defer srv.Worker.Stop()
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server_starting", slog.String("addr", addr))
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("server_shutting_down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}
