package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/operari-hq/acp-trader/pkg/config"
	"github.com/operari-hq/acp-trader/pkg/trader"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the trader service. The negotiation transport is attached by
	// the protocol integration; without one the escrow monitor and health
	// endpoints still run against the on-disk job records.
	service, err := trader.NewService(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create trader service: %v", err)
	}

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Start the service
	log.Printf("Starting the trader service as %s (%s custody)...", cfg.Role, cfg.CustodyMode)
	service.Start(ctx)
}
