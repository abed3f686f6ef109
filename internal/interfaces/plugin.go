package interfaces

import (
	"strategy-validator/internal/types"
)

// StrategyPlugin is the capability set every candidate strategy exposes.
// Construction takes no arguments; the loader returns a ready instance.
type StrategyPlugin interface {
	// CalculateIndicators derives indicator columns from a bar series.
	CalculateIndicators(bars []types.Bar) (*types.IndicatorFrame, error)

	// GenerateSignal produces a trade decision from an indicator-augmented
	// series. The engine treats the returned frame as read-only.
	GenerateSignal(frame *types.IndicatorFrame) (types.Decision, error)

	// IndicatorColumns lists the columns the strategy declares it computes.
	// An empty list means undeclared; callers fall back to comparing every
	// non-OHLCV column.
	IndicatorColumns() []string

	// MinLookback is the minimum bar history the strategy needs before its
	// indicators are meaningful.
	MinLookback() int
}
