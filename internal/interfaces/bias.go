package interfaces

import (
	"context"

	"strategy-validator/internal/types"
)

// BiasDetector runs the lookahead-bias and determinism checks against a live
// plugin instance. Each test is self-contained and always returns a verdict;
// probe errors never propagate past the test boundary.
type BiasDetector interface {
	ContaminationTest(ctx context.Context, plugin StrategyPlugin, bars []types.Bar) types.TestVerdict
	DifferentialTest(ctx context.Context, plugin StrategyPlugin, bars []types.Bar) types.TestVerdict
	DeterminismTest(ctx context.Context, plugin StrategyPlugin, bars []types.Bar) types.TestVerdict
}
