package bias

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/types"
)

// ContaminationTest probes for lookahead bias behaviorally: for each sampled
// decision point T it compares the decision made on the real prefix [0..T]
// against the decision at the same bar after synthetic future continuations
// were appended during indicator computation. The decision is anchored at T
// both times, so a strategy that derives its indicators strictly from prior
// bars cannot tell the difference; one whose indicator step peeks past the
// decision bar will change its answer under at least one fake future. Unlike
// the differential test this never inspects columns, so it works for opaque
// decision logic and undeclared indicators.
func (e *Engine) ContaminationTest(ctx context.Context, plugin interfaces.StrategyPlugin, bars []types.Bar) types.TestVerdict {
	warmup := e.warmup(plugin)
	need := warmup + e.cfg.FutureWindow + 1
	if len(bars) < need {
		return insufficientData("contamination test", len(bars), need)
	}

	points := samplePoints(warmup, len(bars)-e.cfg.FutureWindow-1, e.cfg.ContaminationSamples)
	if len(points) == 0 {
		return noSamples("contamination test")
	}

	var (
		flagged    []int
		errDetails []string
		tested     int
	)

	for _, t := range points {
		tested++

		real, err := decideAt(plugin, bars[:t+1])
		if err != nil {
			errDetails = append(errDetails, fmt.Sprintf("bar %d: %v", t, err))
			logger.Debug(ctx, "Contamination probe failed", "bar", t, "error", err)
			continue
		}

		for k := 0; k < e.cfg.FakeFutures; k++ {
			// Seed per (T, k) so reruns see identical fake futures.
			rng := rand.New(rand.NewSource(e.cfg.Seed + int64(t)*31 + int64(k)))
			fake := fakeFuture(bars[:t+1], e.cfg.FutureWindow, rng)

			extended := make([]types.Bar, 0, t+1+len(fake))
			extended = append(extended, bars[:t+1]...)
			extended = append(extended, fake...)

			recomputed, err := e.decideAnchored(plugin, extended, t)
			if err != nil {
				errDetails = append(errDetails, fmt.Sprintf("bar %d fake %d: %v", t, k, err))
				continue
			}

			if !types.DecisionsEqual(real, recomputed, true, e.cfg.Tolerance) {
				flagged = append(flagged, t)
				logger.Debug(ctx, "Contaminated decision point",
					"bar", t, "fake", k,
					"real", real.Direction, "recomputed", recomputed.Direction)
				// One contamination at this T is sufficient.
				break
			}
		}

		if len(flagged) >= e.cfg.EarlyExitFlags {
			break
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
		v.Detail = fmt.Sprintf("contamination test: %d of %d sampled bars changed decision under synthetic futures: bars %v",
			len(flagged), tested, flagged)
	case len(errDetails) > 0:
		v.Detail = fmt.Sprintf("contamination test: %d execution errors during probing: %s",
			len(errDetails), strings.Join(errDetails, "; "))
	default:
		v.Detail = fmt.Sprintf("contamination test: %d sampled bars stable under %d synthetic futures each",
			tested, e.cfg.FakeFutures)
	}
	return v
}

// decideAnchored computes indicators over the full extended series, then
// truncates the frame back to the decision bar before asking for the signal.
// Indicator values in [0..t] computed with future bars in view leak through;
// the decision step itself sees exactly what it saw in the real run.
func (e *Engine) decideAnchored(plugin interfaces.StrategyPlugin, extended []types.Bar, t int) (types.Decision, error) {
	frame, err := safeIndicators(plugin, extended)
	if err != nil {
		return types.Decision{Direction: types.None}, err
	}
	if frame == nil {
		return types.Decision{Direction: types.None}, fmt.Errorf("indicator step returned nil frame")
	}

	trunc := types.NewIndicatorFrame(frame.Bars[:t+1])
	for name, col := range frame.Columns {
		if len(col) < t+1 {
			return types.Decision{Direction: types.None},
				fmt.Errorf("column %q length %d shorter than decision bar %d", name, len(col), t)
		}
		trunc.Columns[name] = col[:t+1]
	}
	return safeSignal(plugin, trunc)
}
