package biasobs

import (
	"context"
	"time"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/trace"
	"strategy-validator/internal/types"
)

type observableDetector struct {
	detector interfaces.BiasDetector
}

var _ interfaces.BiasDetector = (*observableDetector)(nil)

func Wrap(d interfaces.BiasDetector) interfaces.BiasDetector {
	return &observableDetector{
		detector: d,
	}
}

func (od *observableDetector) ContaminationTest(ctx context.Context, plugin interfaces.StrategyPlugin, bars []types.Bar) types.TestVerdict {
	return od.run(ctx, "bias.ContaminationTest", bars, func(ctx context.Context) types.TestVerdict {
		return od.detector.ContaminationTest(ctx, plugin, bars)
	})
}

func (od *observableDetector) DifferentialTest(ctx context.Context, plugin interfaces.StrategyPlugin, bars []types.Bar) types.TestVerdict {
	return od.run(ctx, "bias.DifferentialTest", bars, func(ctx context.Context) types.TestVerdict {
		return od.detector.DifferentialTest(ctx, plugin, bars)
	})
}

func (od *observableDetector) DeterminismTest(ctx context.Context, plugin interfaces.StrategyPlugin, bars []types.Bar) types.TestVerdict {
	return od.run(ctx, "bias.DeterminismTest", bars, func(ctx context.Context) types.TestVerdict {
		return od.detector.DeterminismTest(ctx, plugin, bars)
	})
}

func (od *observableDetector) run(ctx context.Context, name string, bars []types.Bar, fn func(context.Context) types.TestVerdict) types.TestVerdict {
	ctx, span := trace.StartSpan(ctx, name)
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting bias test",
		"test", name,
		"bars", len(bars),
	)

	verdict := fn(ctx)

	logger.InfoSkip(ctx, 1, "Bias test completed",
		"test", name,
		"passed", verdict.Passed,
		"bars_tested", verdict.BarsTested,
		"flagged", len(verdict.FlaggedBars),
		"rate", verdict.Rate,
		"exec_errors", verdict.ExecErrors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return verdict
}
