package marketdata

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/types"
)

// GenerateSeries builds a deterministic synthetic OHLCV series: a geometric
// random walk with mild drift and lognormal-ish volume. OHLC ordering
// invariants hold on every bar.
func GenerateSeries(seed int64, n int) []types.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]types.Bar, 0, n)

	price := 100.0
	ts := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC).Unix()
	const spacing = int64(60)

	for i := 0; i < n; i++ {
		step := rng.NormFloat64()*0.01 + 0.0002
		open := price
		close := open * (1 + step)
		if close <= 0 {
			close = open * 0.5
		}
		wick := math.Abs(rng.NormFloat64()) * 0.004
		high := math.Max(open, close) * (1 + wick)
		low := math.Min(open, close) * (1 - wick)

		bars = append(bars, types.Bar{
			Ts:    ts,
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
			Vol:   1000 + 500*rng.Float64(),
		})
		price = close
		ts += spacing
	}
	return bars
}

// Synthetic serves one memoized synthetic series. The series is built on
// first use and read-only afterwards, so all workers share it without
// synchronization.
type Synthetic struct {
	seed int64
	n    int

	once sync.Once
	bars []types.Bar
}

var _ interfaces.MarketDataProvider = (*Synthetic)(nil)

func NewSynthetic(seed int64, n int) *Synthetic {
	if n <= 0 {
		n = 500
	}
	return &Synthetic{seed: seed, n: n}
}

// RecentBars returns the trailing n bars of the memoized series. The symbol
// is ignored; synthetic data carries no instrument identity.
func (s *Synthetic) RecentBars(_ context.Context, _ string, n int) ([]types.Bar, error) {
	s.once.Do(func() {
		s.bars = GenerateSeries(s.seed, s.n)
	})
	if n <= 0 || n >= len(s.bars) {
		return s.bars, nil
	}
	return s.bars[len(s.bars)-n:], nil
}
