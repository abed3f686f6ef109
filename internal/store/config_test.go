package store

import (
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Workers != 8 {
		t.Errorf("unexpected Workers: %d", cfg.Workers)
	}
	if cfg.ValidatedLimit != 50 {
		t.Errorf("unexpected ValidatedLimit: %d", cfg.ValidatedLimit)
	}
	if cfg.Backpressure.BaseSeconds != 2 || cfg.Backpressure.IncrementSeconds != 3 || cfg.Backpressure.MaxSeconds != 30 {
		t.Errorf("unexpected backpressure config: %+v", cfg.Backpressure)
	}
	if cfg.MarketData.Symbol != "TEST" || cfg.MarketData.Bars != 400 {
		t.Errorf("unexpected market data config: %+v", cfg.MarketData)
	}
	if cfg.BiasTests.MinHistory != 120 {
		t.Errorf("unexpected MinHistory: %d", cfg.BiasTests.MinHistory)
	}
	if cfg.BiasTests.Contamination.SamplePoints != 25 || cfg.BiasTests.Contamination.FutureWindow != 15 {
		t.Errorf("unexpected contamination config: %+v", cfg.BiasTests.Contamination)
	}
	if !cfg.BiasTestsEnabled() {
		t.Error("expected bias tests enabled")
	}
	if cfg.DeterminismEnabled() {
		t.Error("expected determinism disabled by explicit false")
	}
	// Unset key takes its default.
	if cfg.BiasTests.DeterminismRepeats != 2 {
		t.Errorf("expected default determinism repeats 2, got %d", cfg.BiasTests.DeterminismRepeats)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Workers != 4 {
		t.Errorf("expected default 4 workers, got %d", cfg.Workers)
	}
	if cfg.BiasTests.Tolerance != 1e-9 {
		t.Errorf("expected default tolerance 1e-9, got %g", cfg.BiasTests.Tolerance)
	}
	if !cfg.BiasTestsEnabled() || !cfg.DeterminismEnabled() {
		t.Error("expected all bias tests enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"max below base", func(c *Config) { c.Backpressure.MaxSeconds = 1; c.Backpressure.BaseSeconds = 5 }},
		{"bad store driver", func(c *Config) { c.Store.Driver = "DISK" }},
		{"postgres without url", func(c *Config) { c.Store.Driver = "POSTGRES" }},
		{"bad market source", func(c *Config) { c.MarketData.Source = "CSV" }},
		{"zero tolerance", func(c *Config) { c.BiasTests.Tolerance = 0 }},
		{"negative contamination samples", func(c *Config) { c.BiasTests.Contamination.SamplePoints = -1 }},
		{"negative differential samples", func(c *Config) { c.BiasTests.Differential.SamplePoints = -1 }},
		{"negative fake futures", func(c *Config) { c.BiasTests.Contamination.FakeFutures = -1 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
