package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := initializeApp()
	if err != nil {
		log.Fatalf("failed to start application: %v", err)
	}
	defer cleanup()

	if err := app.Run(ctx); err != nil {
		cleanup()
		log.Fatalf("application stopped with error: %v", err)
	}
}
