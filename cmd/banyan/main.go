package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"banyan/cmd/banyan/cmd"
	"banyan/core/logger"

	"go.uber.org/zap"
)

// main is the entry point of the banyan runtime CLI.
func main() {
	ctx := logger.WithComponent(context.Background(), "main")

	defer func() {
		// Syncing may fail on shutdown when stdout is gone; nothing to do.
		_ = logger.Logger.Sync()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info(ctx, "Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()
	}()

	cmd.Execute(ctx)
}
