package bias

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/types"
)

// DifferentialTest probes for lookahead bias at the indicator level: the
// value of a trailing-window indicator at bar T must be identical whether it
// was computed over [0..T] or [0..T+lookahead]. A mismatch isolates exactly
// which column consumed future bars, catching leaks that the decision step
// happens to mask.
func (e *Engine) DifferentialTest(ctx context.Context, plugin interfaces.StrategyPlugin, bars []types.Bar) types.TestVerdict {
	warmup := e.warmup(plugin)
	need := warmup + e.cfg.Lookahead + 1
	if len(bars) < need {
		return insufficientData("differential test", len(bars), need)
	}

	points := samplePoints(warmup, len(bars)-e.cfg.Lookahead-1, e.cfg.DifferentialSamples)
	if len(points) == 0 {
		return noSamples("differential test")
	}

	var (
		flagged     []int
		flaggedCols []string
		errDetails  []string
		tested      int
	)

	for _, t := range points {
		tested++

		baseline, err := safeIndicators(plugin, bars[:t+1])
		if err != nil {
			errDetails = append(errDetails, fmt.Sprintf("bar %d baseline: %v", t, err))
			continue
		}
		extended, err := safeIndicators(plugin, bars[:t+1+e.cfg.Lookahead])
		if err != nil {
			errDetails = append(errDetails, fmt.Sprintf("bar %d extended: %v", t, err))
			continue
		}
		if baseline == nil || extended == nil {
			errDetails = append(errDetails, fmt.Sprintf("bar %d: indicator step returned nil frame", t))
			continue
		}

		for _, col := range e.columnsToCompare(plugin, baseline) {
			base, okBase := baseline.Columns[col]
			ext, okExt := extended.Columns[col]
			if !okBase || !okExt || t >= len(base) || t >= len(ext) {
				flagged = append(flagged, t)
				flaggedCols = appendUnique(flaggedCols, col)
				logger.Debug(ctx, "Indicator column missing between runs", "bar", t, "column", col)
				break
			}
			if !valuesMatch(base[t], ext[t], e.cfg.Tolerance) {
				flagged = append(flagged, t)
				flaggedCols = appendUnique(flaggedCols, col)
				logger.Debug(ctx, "Indicator value shifted under lookahead",
					"bar", t, "column", col, "baseline", base[t], "extended", ext[t])
				// One mismatching column flags the bar.
				break
			}
		}
	}

	rate := 0.0
	if tested > 0 {
		rate = float64(len(flagged)) / float64(tested)
	}

	v := types.TestVerdict{
		Passed:         len(flagged) == 0 && len(errDetails) == 0,
		FlaggedBars:    flagged,
		FlaggedColumns: flaggedCols,
		Rate:           rate,
		BarsTested:     tested,
		ExecErrors:     len(errDetails),
	}
	switch {
	case len(flagged) > 0:
		v.Detail = fmt.Sprintf("differential test: indicator values at %d of %d sampled bars shifted when %d future bars were appended: bars %v columns %v",
			len(flagged), tested, e.cfg.Lookahead, flagged, flaggedCols)
	case len(errDetails) > 0:
		v.Detail = fmt.Sprintf("differential test: %d execution errors while computing indicators: %s",
			len(errDetails), strings.Join(errDetails, "; "))
	default:
		v.Detail = fmt.Sprintf("differential test: %d sampled bars unchanged under %d-bar lookahead",
			tested, e.cfg.Lookahead)
	}
	return v
}

// columnsToCompare prefers the plugin's declared indicator columns, which is
// precise. An undeclared plugin falls back to every column on the frame; bars
// live outside Columns so everything there is a derived indicator. The
// fallback may flag incidental scratch columns, which is the accepted cost of
// not trusting an incomplete declaration.
func (e *Engine) columnsToCompare(plugin interfaces.StrategyPlugin, frame *types.IndicatorFrame) []string {
	if declared := plugin.IndicatorColumns(); len(declared) > 0 {
		return declared
	}
	cols := frame.ColumnNames()
	sort.Strings(cols)
	return cols
}

// valuesMatch applies the numeric comparison rule: absolute tolerance, NaN
// equals NaN, one-sided NaN is a mismatch.
func valuesMatch(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= tol
}

func appendUnique(ss []string, s string) []string {
	for _, v := range ss {
		if v == s {
			return ss
		}
	}
	return append(ss, s)
}
