package strategies

import (
	"errors"
	"math"

	"strategy-validator/internal/ta"
	"strategy-validator/internal/types"
)

// SMACross is a plain trailing-window trend strategy: long when the fast SMA
// crosses above the slow SMA with RSI confirmation, close on the opposite
// cross or an overbought RSI. Every column is computed strictly from prior
// bars, so it should sail through the bias tests; it doubles as the reference
// well-behaved plugin in this repo's own test suite.
type SMACross struct {
	fast, slow, rsiPeriod int
}

func NewSMACross() *SMACross {
	return &SMACross{fast: 10, slow: 20, rsiPeriod: 14}
}

func (s *SMACross) IndicatorColumns() []string {
	return []string{"sma_fast", "sma_slow", "rsi"}
}

func (s *SMACross) MinLookback() int { return 50 }

func (s *SMACross) CalculateIndicators(bars []types.Bar) (*types.IndicatorFrame, error) {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	frame := types.NewIndicatorFrame(bars)
	if err := frame.SetColumn("sma_fast", ta.SMASeries(closes, s.fast)); err != nil {
		return nil, err
	}
	if err := frame.SetColumn("sma_slow", ta.SMASeries(closes, s.slow)); err != nil {
		return nil, err
	}
	if err := frame.SetColumn("rsi", ta.RSISeries(closes, s.rsiPeriod)); err != nil {
		return nil, err
	}
	return frame, nil
}

func (s *SMACross) GenerateSignal(frame *types.IndicatorFrame) (types.Decision, error) {
	n := len(frame.Bars)
	if n < 2 {
		return types.Decision{Direction: types.None}, nil
	}
	fast := frame.Columns["sma_fast"]
	slow := frame.Columns["sma_slow"]
	rsi := frame.Columns["rsi"]
	if fast == nil || slow == nil || rsi == nil {
		return types.Decision{}, errors.New("indicator columns missing from frame")
	}

	cur, prev := n-1, n-2
	if math.IsNaN(fast[cur]) || math.IsNaN(slow[cur]) || math.IsNaN(fast[prev]) || math.IsNaN(slow[prev]) {
		return types.Decision{Direction: types.None}, nil
	}

	crossedUp := fast[prev] <= slow[prev] && fast[cur] > slow[cur]
	crossedDown := fast[prev] >= slow[prev] && fast[cur] < slow[cur]

	switch {
	case crossedUp && rsi[cur] < 70:
		return types.Decision{
			Direction: types.Long,
			StopMult:  1.5,
			TakeMult:  3.0,
			Reason:    "fast SMA crossed above slow SMA",
		}, nil
	case crossedDown || rsi[cur] > 80:
		return types.Decision{Direction: types.Close, Reason: "trend exhausted"}, nil
	default:
		return types.Decision{Direction: types.None}, nil
	}
}
