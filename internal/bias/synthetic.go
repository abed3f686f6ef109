package bias

import (
	"math"
	"math/rand"

	"strategy-validator/internal/ta"
	"strategy-validator/internal/types"
)

const (
	// volEstimateWindow bounds how many trailing returns feed the
	// volatility estimate for fake-future synthesis.
	volEstimateWindow = 50
	// maxStepSigmas clamps a single synthetic step to keep the walk bounded.
	maxStepSigmas = 3.0
)

// fakeFuture synthesizes a plausible continuation of the given prefix: a
// bounded random walk whose per-bar volatility matches the trailing real
// returns and whose volume is sampled around the trailing mean. OHLC ordering
// invariants are preserved on every synthetic bar.
func fakeFuture(prefix []types.Bar, window int, rng *rand.Rand) []types.Bar {
	n := len(prefix)
	closes := make([]float64, n)
	for i, b := range prefix {
		closes[i] = b.Close
	}

	vol := trailingVolatility(closes)
	meanVol := trailingMeanVolume(prefix)
	spacing := barSpacing(prefix)

	out := make([]types.Bar, 0, window)
	prevClose := prefix[n-1].Close
	ts := prefix[n-1].Ts

	for i := 0; i < window; i++ {
		step := rng.NormFloat64() * vol
		if step > maxStepSigmas*vol {
			step = maxStepSigmas * vol
		} else if step < -maxStepSigmas*vol {
			step = -maxStepSigmas * vol
		}

		open := prevClose
		close := open * (1 + step)
		if close <= 0 {
			close = open * 0.5
		}

		wick := math.Abs(rng.NormFloat64()) * vol * 0.5
		high := math.Max(open, close) * (1 + wick)
		low := math.Min(open, close) * (1 - wick)
		if low < 0 {
			low = 0
		}

		volume := meanVol * (0.6 + 0.8*rng.Float64())
		ts += spacing

		out = append(out, types.Bar{
			Ts:    ts,
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
			Vol:   volume,
		})
		prevClose = close
	}
	return out
}

// trailingVolatility estimates per-bar return volatility from the tail of the
// close series. Falls back to a small constant for flat or short series so
// the walk still moves.
func trailingVolatility(closes []float64) float64 {
	rets := ta.Returns(closes)
	lo := len(rets) - volEstimateWindow
	if lo < 1 {
		lo = 1
	}
	tail := rets[lo:]
	if len(tail) == 0 {
		return 0.005
	}
	mean := 0.0
	for _, r := range tail {
		mean += r
	}
	mean /= float64(len(tail))
	v := 0.0
	for _, r := range tail {
		d := r - mean
		v += d * d
	}
	sd := math.Sqrt(v / float64(len(tail)))
	if sd < 1e-6 || math.IsNaN(sd) {
		return 0.005
	}
	return sd
}

func trailingMeanVolume(bars []types.Bar) float64 {
	lo := len(bars) - volEstimateWindow
	if lo < 0 {
		lo = 0
	}
	tail := bars[lo:]
	sum := 0.0
	for _, b := range tail {
		sum += b.Vol
	}
	m := sum / float64(len(tail))
	if m <= 0 {
		return 1000
	}
	return m
}

func barSpacing(bars []types.Bar) int64 {
	if len(bars) < 2 {
		return 60
	}
	d := bars[len(bars)-1].Ts - bars[len(bars)-2].Ts
	if d <= 0 {
		return 60
	}
	return d
}
