package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
)

func main() {
	logger := log.NewIPFSLogger("subtensor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
