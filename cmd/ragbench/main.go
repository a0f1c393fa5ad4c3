// Command ragbench benchmarks retrieval-augmented generation pipelines: retrieval
// quality, the answer/abstain gate and answer faithfulness.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
