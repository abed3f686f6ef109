package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"strategy-validator/internal/logger"
	"strategy-validator/internal/metrics"
	"strategy-validator/internal/orchestrator"
	"strategy-validator/internal/trace"

	"github.com/google/uuid"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Fatal(err)
	}

	compressOldLogs(ctx)

	// Claim ownership identity for this orchestrator process.
	processID := uuid.NewString()
	logger.Info(ctx, "Validator starting", "process_id", processID, "workers", cfg.Workers)

	st, closeStore, err := initializeStore(ctx, cfg, processID)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	market, closeMarket, err := initializeMarketData(ctx, cfg)
	if err != nil {
		// log.Fatal exits without running deferred closers.
		closeStore()
		log.Fatal(err)
	}
	defer closeMarket()

	scanner, loader := initializePipeline()
	detector := initializeDetector(cfg)

	if cfg.Metrics.Enabled {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		logger.Info(ctx, "Metrics endpoint started", "addr", cfg.Metrics.Addr)
	}

	orch := orchestrator.New(cfg, st, scanner, loader, detector, market)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info(ctx, "Shutdown signal received")
		cancel()
	}()

	if err := orch.Run(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Orchestrator exited with error", err)
	}

	if err := trace.Shutdown(context.Background()); err != nil {
		logger.Warn(context.Background(), "Tracer shutdown failed", "error", err)
	}
	logger.Info(context.Background(), "Validator stopped")
}
