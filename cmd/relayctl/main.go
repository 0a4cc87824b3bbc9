// Package main is relayctl, the operator CLI of the mentor relay. It runs
// the relay operations directly, without the HTTP service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx, version); err != nil {
		stop()
		os.Exit(1)
	}
}
