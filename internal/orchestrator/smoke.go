package orchestrator

import (
	"context"
	"fmt"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/types"
)

// smokeSizes are the edge-case series lengths every plugin must survive:
// empty, a single bar, and a handful of small sizes, before the realistic run.
var smokeSizes = []int{0, 1, 5, 10, 25}

// smokeTest sweeps the plugin over degenerate and realistic series sizes. A
// healthy plugin returns a decision (or a no-op) on every size; an error or
// panic on any size fails the phase. This catches index-out-of-range style
// bugs before the far more expensive bias tests run.
func (o *Orchestrator) smokeTest(ctx context.Context, plugin interfaces.StrategyPlugin, series []types.Bar) error {
	for _, size := range smokeSizes {
		bars := series
		if size < len(series) {
			bars = series[:size]
		}
		if err := runOnce(plugin, bars); err != nil {
			return fmt.Errorf("smoke test failed on %d bars: %w", size, err)
		}
	}

	if err := runOnce(plugin, series); err != nil {
		return fmt.Errorf("smoke test failed on realistic series of %d bars: %w", len(series), err)
	}

	logger.Debug(ctx, "Smoke test passed", "sizes", smokeSizes, "realistic", len(series))
	return nil
}

// runOnce executes the full indicator-then-signal pipeline, converting panics
// into errors.
func runOnce(plugin interfaces.StrategyPlugin, bars []types.Bar) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()

	frame, err := plugin.CalculateIndicators(bars)
	if err != nil {
		return fmt.Errorf("indicator step: %w", err)
	}
	if frame == nil {
		return fmt.Errorf("indicator step returned nil frame")
	}
	if _, err := plugin.GenerateSignal(frame); err != nil {
		return fmt.Errorf("decision step: %w", err)
	}
	return nil
}
