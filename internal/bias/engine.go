package bias

import (
	"fmt"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/types"
)

// Config holds the tuning knobs for the three bias-detection tests.
type Config struct {
	// MinHistory is the floor of real bars a plugin must see before any
	// sampled decision point.
	MinHistory int
	// Tolerance is the absolute-difference tolerance for numeric comparisons.
	Tolerance float64
	// Seed makes fake-future synthesis reproducible across runs.
	Seed int64

	// Contamination test.
	ContaminationSamples int
	FutureWindow         int
	FakeFutures          int
	// EarlyExitFlags stops the contamination sweep once this many distinct
	// bars are flagged; one confirmed leak already fails the strategy.
	EarlyExitFlags int

	// Differential indicator test.
	DifferentialSamples int
	Lookahead           int

	// Determinism test.
	DeterminismRepeats int
}

// DefaultConfig returns the standard test parameters.
func DefaultConfig() Config {
	return Config{
		MinHistory:           100,
		Tolerance:            1e-9,
		Seed:                 1,
		ContaminationSamples: 50,
		FutureWindow:         20,
		FakeFutures:          3,
		EarlyExitFlags:       3,
		DifferentialSamples:  10,
		Lookahead:            10,
		DeterminismRepeats:   2,
	}
}

// Engine runs the bias-detection tests. It holds no per-strategy state; the
// same instance is safe to share across workers.
type Engine struct {
	cfg Config
}

var _ interfaces.BiasDetector = (*Engine)(nil)

func New(cfg Config) *Engine {
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = 100
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-9
	}
	if cfg.EarlyExitFlags <= 0 {
		cfg.EarlyExitFlags = 3
	}
	if cfg.FakeFutures <= 0 {
		cfg.FakeFutures = 3
	}
	if cfg.DeterminismRepeats < 2 {
		cfg.DeterminismRepeats = 2
	}
	return &Engine{cfg: cfg}
}

// warmup is the first decision point eligible for sampling: the engine's
// history floor or the plugin's declared lookback, whichever is larger.
func (e *Engine) warmup(plugin interfaces.StrategyPlugin) int {
	w := e.cfg.MinHistory
	if lb := plugin.MinLookback(); lb > w {
		w = lb
	}
	return w
}

// insufficientData builds the clean failing verdict for a too-short series.
func insufficientData(test string, have, need int) types.TestVerdict {
	return types.TestVerdict{
		Passed:     false,
		BarsTested: 0,
		Rate:       0,
		Detail: fmt.Sprintf("%s: insufficient data: have %d bars, need at least %d",
			test, have, need),
	}
}

// noSamples builds the failing verdict for a sweep that probed nothing. A
// verdict backed by zero tested bars must never promote a strategy.
func noSamples(test string) types.TestVerdict {
	return types.TestVerdict{
		Passed:     false,
		BarsTested: 0,
		Rate:       0,
		Detail:     fmt.Sprintf("%s: no decision points sampled, nothing was tested", test),
	}
}

// safeIndicators invokes the plugin's indicator step, converting a panic into
// an error so one misbehaving probe never aborts the remaining samples.
func safeIndicators(plugin interfaces.StrategyPlugin, bars []types.Bar) (frame *types.IndicatorFrame, err error) {
	defer func() {
		if r := recover(); r != nil {
			frame = nil
			err = fmt.Errorf("indicator step panicked: %v", r)
		}
	}()
	return plugin.CalculateIndicators(bars)
}

// safeSignal invokes the plugin's decision step with the same panic guard.
func safeSignal(plugin interfaces.StrategyPlugin, frame *types.IndicatorFrame) (dec types.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			dec = types.Decision{Direction: types.None}
			err = fmt.Errorf("decision step panicked: %v", r)
		}
	}()
	return plugin.GenerateSignal(frame)
}

// decideAt runs the full indicator-then-signal pipeline over a bar prefix.
func decideAt(plugin interfaces.StrategyPlugin, bars []types.Bar) (types.Decision, error) {
	frame, err := safeIndicators(plugin, bars)
	if err != nil {
		return types.Decision{Direction: types.None}, err
	}
	if frame == nil {
		return types.Decision{Direction: types.None}, fmt.Errorf("indicator step returned nil frame")
	}
	return safeSignal(plugin, frame)
}
