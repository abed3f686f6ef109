package main

import (
	"context"
	"fmt"
	"os"

	"strategy-validator/internal/analyzer"
	"strategy-validator/internal/bias"
	"strategy-validator/internal/bias/biasobs"
	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/marketdata"
	"strategy-validator/internal/plugin"
	"strategy-validator/internal/repository"
	"strategy-validator/internal/store"
	"strategy-validator/internal/trace"
	"strategy-validator/internal/verdictlog"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("VALIDATOR_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn(ctx, "No config file found, using defaults", "path", path)
			return store.DefaultConfig(), nil
		}
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old verdict log files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("VALIDATOR_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := verdictlog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeStore selects the strategy store driver from config
func initializeStore(ctx context.Context, cfg *store.Config, processID string) (interfaces.StrategyStore, func(), error) {
	switch cfg.Store.Driver {
	case "POSTGRES":
		pg, err := repository.NewPostgres(ctx, cfg.Store.DatabaseURL, processID)
		if err != nil {
			return nil, nil, fmt.Errorf("connect strategy store: %w", err)
		}
		logger.Info(ctx, "Using Postgres strategy store")
		return pg, pg.Close, nil
	default:
		logger.Warn(ctx, "Using in-memory strategy store - backlog is not durable")
		return repository.NewMemory(processID), func() {}, nil
	}
}

// initializeMarketData selects the bar provider from config
func initializeMarketData(ctx context.Context, cfg *store.Config) (interfaces.MarketDataProvider, func(), error) {
	switch cfg.MarketData.Source {
	case "DATABASE":
		pg, err := marketdata.NewPostgres(ctx, cfg.MarketData.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect market data: %w", err)
		}
		logger.Info(ctx, "Using cached market candles from Postgres", "symbol", cfg.MarketData.Symbol)
		return pg, pg.Close, nil
	default:
		logger.Info(ctx, "Using synthetic market data",
			"bars", cfg.MarketData.Bars, "seed", cfg.MarketData.Seed)
		return marketdata.NewSynthetic(cfg.MarketData.Seed, cfg.MarketData.Bars), func() {}, nil
	}
}

// initializeDetector builds the bias engine with observability
func initializeDetector(cfg *store.Config) interfaces.BiasDetector {
	engine := bias.New(bias.Config{
		MinHistory:           cfg.BiasTests.MinHistory,
		Tolerance:            cfg.BiasTests.Tolerance,
		Seed:                 cfg.MarketData.Seed,
		ContaminationSamples: cfg.BiasTests.Contamination.SamplePoints,
		FutureWindow:         cfg.BiasTests.Contamination.FutureWindow,
		FakeFutures:          cfg.BiasTests.Contamination.FakeFutures,
		DifferentialSamples:  cfg.BiasTests.Differential.SamplePoints,
		Lookahead:            cfg.BiasTests.Differential.Lookahead,
		DeterminismRepeats:   cfg.BiasTests.DeterminismRepeats,
	})
	return biasobs.Wrap(engine)
}

// initializePipeline builds the scanner and plugin loader
func initializePipeline() (interfaces.StaticAnalyzer, interfaces.PluginLoader) {
	return analyzer.New(), plugin.NewLoader(plugin.DefaultRegistry())
}
