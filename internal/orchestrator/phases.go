package orchestrator

import (
	"context"
	"strings"

	"strategy-validator/internal/logger"
	"strategy-validator/internal/types"
)

// Pipeline phases, in execution order.
const (
	PhaseStaticScan   = "static_scan"
	PhaseLoad         = "load"
	PhaseSmokeTest    = "smoke_test"
	PhaseDifferential = "differential"
	PhaseContaminate  = "contamination"
	PhaseDeterminism  = "determinism"
)

// Outcome is the terminal result of one strategy's pipeline run.
type Outcome struct {
	Promoted  bool
	FailPhase string
	Reason    string
	Verdicts  map[string]types.TestVerdict
}

func failed(phase, reason string) Outcome {
	return Outcome{FailPhase: phase, Reason: reason}
}

// validate runs the ordered phase sequence for one claimed strategy.
// Phases are fail-fast: each runs only if the previous passed. An error from
// a bias test's own machinery fails the strategy, it never skips the test.
func (o *Orchestrator) validate(ctx context.Context, rec *types.StrategyRecord) Outcome {
	verdicts := map[string]types.TestVerdict{}

	// Phase 1: cheap structural pre-filter.
	scan, err := o.analyzer.Scan(ctx, rec.Source)
	if err != nil {
		return failed(PhaseStaticScan, "scanner error: "+err.Error())
	}
	if !scan.Passed {
		return failed(PhaseStaticScan, strings.Join(scan.Violations, "; "))
	}

	// Phase 2: instantiate and sweep edge-case inputs.
	plugin, err := o.loader.Load(ctx, rec.Source, scan.TypeName)
	if err != nil {
		return failed(PhaseLoad, err.Error())
	}
	smokeSeries := o.fallbackSeries()
	if err := o.smokeTest(ctx, plugin, smokeSeries); err != nil {
		return failed(PhaseSmokeTest, err.Error())
	}

	// Phases 3+4: bias detection against real or fallback market data. The
	// bias and determinism toggles are independent; disabling one never
	// disables the other.
	runBias := o.cfg.BiasTestsEnabled()
	runDeterminism := o.cfg.DeterminismEnabled()
	if runBias || runDeterminism {
		bars := o.marketBars(ctx)

		if runBias {
			v := o.detector.DifferentialTest(ctx, plugin, bars)
			verdicts[PhaseDifferential] = v
			logger.Verdict(ctx, rec.ID, PhaseDifferential, v.Passed, v.Rate, v.Detail)
			if !v.Passed {
				return Outcome{FailPhase: PhaseDifferential, Reason: v.Detail, Verdicts: verdicts}
			}

			v = o.detector.ContaminationTest(ctx, plugin, bars)
			verdicts[PhaseContaminate] = v
			logger.Verdict(ctx, rec.ID, PhaseContaminate, v.Passed, v.Rate, v.Detail)
			if !v.Passed {
				return Outcome{FailPhase: PhaseContaminate, Reason: v.Detail, Verdicts: verdicts}
			}
		}

		if runDeterminism {
			v := o.detector.DeterminismTest(ctx, plugin, bars)
			verdicts[PhaseDeterminism] = v
			logger.Verdict(ctx, rec.ID, PhaseDeterminism, v.Passed, v.Rate, v.Detail)
			if !v.Passed {
				return Outcome{FailPhase: PhaseDeterminism, Reason: v.Detail, Verdicts: verdicts}
			}
		}
	}

	return Outcome{Promoted: true, Verdicts: verdicts}
}

// marketBars fetches the real cached series, falling back to the memoized
// synthetic series when the provider cannot serve. The fallback is built once
// and shared read-only across workers.
func (o *Orchestrator) marketBars(ctx context.Context) []types.Bar {
	if o.market != nil {
		bars, err := o.market.RecentBars(ctx, o.cfg.MarketData.Symbol, o.cfg.MarketData.Bars)
		if err == nil && len(bars) > 0 {
			return bars
		}
		if err != nil {
			logger.Warn(ctx, "Market data provider unavailable, using synthetic fallback",
				"symbol", o.cfg.MarketData.Symbol, "error", err)
		}
	}
	return o.fallbackSeries()
}

func (o *Orchestrator) fallbackSeries() []types.Bar {
	o.fallbackOnce.Do(func() {
		o.fallback = o.generateFallback()
	})
	return o.fallback
}
