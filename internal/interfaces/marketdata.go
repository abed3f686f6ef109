package interfaces

import (
	"context"

	"strategy-validator/internal/types"
)

// MarketDataProvider supplies the bar series bias tests run against.
type MarketDataProvider interface {
	RecentBars(ctx context.Context, symbol string, n int) ([]types.Bar, error)
}
