// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tagprobe/tagprobe-cli/cmd"
	"github.com/tagprobe/tagprobe-cli/internal/observability"
)

// main is the entry point for the TagProbe CLI application.
func main() {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM)
	// for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Graceful shutdown initiated by Ctrl+C.
			os.Exit(0)
		}
		os.Exit(1)
	}
}
