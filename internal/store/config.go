package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Workers        int `yaml:"workers"`
	ValidatedLimit int `yaml:"validated_limit"`
	Backpressure   struct {
		BaseSeconds      int `yaml:"base_seconds"`
		IncrementSeconds int `yaml:"increment_seconds"`
		MaxSeconds       int `yaml:"max_seconds"`
	} `yaml:"backpressure"`
	StatusLogSeconds int `yaml:"status_log_seconds"`
	Store            struct {
		Driver      string `yaml:"driver"` // MEMORY or POSTGRES
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"store"`
	MarketData struct {
		Source      string `yaml:"source"` // SYNTHETIC or DATABASE
		DatabaseURL string `yaml:"database_url"`
		Symbol      string `yaml:"symbol"`
		Bars        int    `yaml:"bars"`
		Seed        int64  `yaml:"seed"`
	} `yaml:"market_data"`
	BiasTests struct {
		Enabled       *bool   `yaml:"enabled"`
		Determinism   *bool   `yaml:"determinism"`
		MinHistory    int     `yaml:"min_history"`
		Tolerance     float64 `yaml:"tolerance"`
		Contamination struct {
			SamplePoints int `yaml:"sample_points"`
			FutureWindow int `yaml:"future_window"`
			FakeFutures  int `yaml:"fake_futures"`
		} `yaml:"contamination"`
		Differential struct {
			SamplePoints int `yaml:"sample_points"`
			Lookahead    int `yaml:"lookahead"`
		} `yaml:"differential"`
		DeterminismRepeats int `yaml:"determinism_repeats"`
	} `yaml:"bias_tests"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ValidatedLimit <= 0 {
		return fmt.Errorf("validated_limit must be positive, got %d", c.ValidatedLimit)
	}
	if c.Backpressure.MaxSeconds < c.Backpressure.BaseSeconds {
		return fmt.Errorf("backpressure.max_seconds %d below base_seconds %d",
			c.Backpressure.MaxSeconds, c.Backpressure.BaseSeconds)
	}
	if c.Store.Driver != "MEMORY" && c.Store.Driver != "POSTGRES" {
		return fmt.Errorf("invalid store.driver '%s': must be 'MEMORY' or 'POSTGRES'", c.Store.Driver)
	}
	if c.Store.Driver == "POSTGRES" && c.Store.DatabaseURL == "" {
		return errors.New("store.database_url required when store.driver is POSTGRES")
	}
	if c.MarketData.Source != "SYNTHETIC" && c.MarketData.Source != "DATABASE" {
		return fmt.Errorf("invalid market_data.source '%s': must be 'SYNTHETIC' or 'DATABASE'", c.MarketData.Source)
	}
	if c.MarketData.Source == "DATABASE" && c.MarketData.DatabaseURL == "" {
		return errors.New("market_data.database_url required when market_data.source is DATABASE")
	}
	if c.BiasTests.Tolerance <= 0 {
		return fmt.Errorf("bias_tests.tolerance must be positive, got %g", c.BiasTests.Tolerance)
	}
	if c.BiasTests.Contamination.FutureWindow <= 0 || c.BiasTests.Differential.Lookahead <= 0 {
		return errors.New("bias test windows must be positive")
	}
	if c.BiasTests.Contamination.SamplePoints <= 0 || c.BiasTests.Differential.SamplePoints <= 0 {
		return errors.New("bias test sample points must be positive")
	}
	if c.BiasTests.Contamination.FakeFutures <= 0 {
		return errors.New("bias_tests.contamination.fake_futures must be positive")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// DefaultConfig returns the configuration used when no file overrides exist.
func DefaultConfig() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.ValidatedLimit == 0 {
		c.ValidatedLimit = 100
	}
	if c.Backpressure.BaseSeconds == 0 {
		c.Backpressure.BaseSeconds = 5
	}
	if c.Backpressure.IncrementSeconds == 0 {
		c.Backpressure.IncrementSeconds = 5
	}
	if c.Backpressure.MaxSeconds == 0 {
		c.Backpressure.MaxSeconds = 60
	}
	if c.StatusLogSeconds == 0 {
		c.StatusLogSeconds = 30
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "MEMORY"
	}
	if c.MarketData.Source == "" {
		c.MarketData.Source = "SYNTHETIC"
	}
	if c.MarketData.Symbol == "" {
		c.MarketData.Symbol = "SYNTH"
	}
	if c.MarketData.Bars == 0 {
		c.MarketData.Bars = 500
	}
	if c.MarketData.Seed == 0 {
		c.MarketData.Seed = 42
	}
	if c.BiasTests.MinHistory == 0 {
		c.BiasTests.MinHistory = 100
	}
	if c.BiasTests.Tolerance == 0 {
		c.BiasTests.Tolerance = 1e-9
	}
	if c.BiasTests.Contamination.SamplePoints == 0 {
		c.BiasTests.Contamination.SamplePoints = 50
	}
	if c.BiasTests.Contamination.FutureWindow == 0 {
		c.BiasTests.Contamination.FutureWindow = 20
	}
	if c.BiasTests.Contamination.FakeFutures == 0 {
		c.BiasTests.Contamination.FakeFutures = 3
	}
	if c.BiasTests.Differential.SamplePoints == 0 {
		c.BiasTests.Differential.SamplePoints = 10
	}
	if c.BiasTests.Differential.Lookahead == 0 {
		c.BiasTests.Differential.Lookahead = 10
	}
	if c.BiasTests.DeterminismRepeats == 0 {
		c.BiasTests.DeterminismRepeats = 2
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	// Pointer fields so an absent key defaults on while an explicit
	// `false` stays off.
	if c.BiasTests.Enabled == nil {
		c.BiasTests.Enabled = boolPtr(true)
	}
	if c.BiasTests.Determinism == nil {
		c.BiasTests.Determinism = boolPtr(true)
	}
}

func boolPtr(b bool) *bool { return &b }

// BiasTestsEnabled reports whether the contamination and differential tests run.
func (c *Config) BiasTestsEnabled() bool { return c.BiasTests.Enabled != nil && *c.BiasTests.Enabled }

// DeterminismEnabled reports whether the determinism test runs.
func (c *Config) DeterminismEnabled() bool {
	return c.BiasTests.Determinism != nil && *c.BiasTests.Determinism
}
