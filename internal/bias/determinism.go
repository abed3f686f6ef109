package bias

import (
	"context"
	"fmt"
	"strings"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/types"
)

// DeterminismTest catches strategies whose decisions are not reproducible,
// typically hidden randomness or wall-clock reads. The indicator frame is
// computed once per sampled point and the decision step is invoked repeatedly
// on that identical frame; every invocation must agree.
func (e *Engine) DeterminismTest(ctx context.Context, plugin interfaces.StrategyPlugin, bars []types.Bar) types.TestVerdict {
	warmup := e.warmup(plugin)
	need := warmup + 1
	if len(bars) < need {
		return insufficientData("determinism test", len(bars), need)
	}

	points := samplePoints(warmup, len(bars)-1, e.cfg.DifferentialSamples)
	if len(points) == 0 {
		return noSamples("determinism test")
	}

	var (
		flagged    []int
		errDetails []string
		tested     int
	)

	for _, t := range points {
		tested++

		frame, err := safeIndicators(plugin, bars[:t+1])
		if err != nil {
			errDetails = append(errDetails, fmt.Sprintf("bar %d: %v", t, err))
			continue
		}
		if frame == nil {
			errDetails = append(errDetails, fmt.Sprintf("bar %d: indicator step returned nil frame", t))
			continue
		}

		first, err := safeSignal(plugin, frame)
		if err != nil {
			errDetails = append(errDetails, fmt.Sprintf("bar %d repeat 0: %v", t, err))
			continue
		}

		for r := 1; r < e.cfg.DeterminismRepeats; r++ {
			repeat, err := safeSignal(plugin, frame)
			if err != nil {
				errDetails = append(errDetails, fmt.Sprintf("bar %d repeat %d: %v", t, r, err))
				break
			}
			if !types.DecisionsEqual(first, repeat, true, e.cfg.Tolerance) {
				flagged = append(flagged, t)
				logger.Debug(ctx, "Non-deterministic decision",
					"bar", t, "repeat", r,
					"first", first.Direction, "got", repeat.Direction)
				break
			}
		}
	}

	rate := 0.0
	if tested > 0 {
		rate = float64(len(flagged)) / float64(tested)
	}

	v := types.TestVerdict{
		Passed:      len(flagged) == 0 && len(errDetails) == 0,
		FlaggedBars: flagged,
		Rate:        rate,
		BarsTested:  tested,
		ExecErrors:  len(errDetails),
	}
	switch {
	case len(flagged) > 0:
		v.Detail = fmt.Sprintf("determinism test: %d of %d sampled bars produced divergent decisions on repeated identical calls: bars %v",
			len(flagged), tested, flagged)
	case len(errDetails) > 0:
		v.Detail = fmt.Sprintf("determinism test: %d execution errors during probing: %s",
			len(errDetails), strings.Join(errDetails, "; "))
	default:
		v.Detail = fmt.Sprintf("determinism test: %d sampled bars stable across %d repeated calls",
			tested, e.cfg.DeterminismRepeats)
	}
	return v
}
