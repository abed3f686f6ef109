package marketdata

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/types"
)

var ErrNoBars = errors.New("no cached bars found for symbol")

// Postgres reads cached market candles from a Postgres/TimescaleDB table.
// Prices and volume are stored as numeric and scanned through
// shopspring/decimal before conversion to the float bars the bias tests use.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ interfaces.MarketDataProvider = (*Postgres)(nil)

func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

const recentBarsQuery = `
SELECT extract(epoch FROM ts)::bigint, open, high, low, close, volume
FROM candles
WHERE symbol = $1
ORDER BY ts DESC
LIMIT $2`

// RecentBars returns the newest n bars for symbol in ascending time order.
func (p *Postgres) RecentBars(ctx context.Context, symbol string, n int) ([]types.Bar, error) {
	rows, err := p.pool.Query(ctx, recentBarsQuery, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var (
			ts                            int64
			open, high, low, close_, vol_ decimal.Decimal
		)
		if err := rows.Scan(&ts, &open, &high, &low, &close_, &vol_); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		bars = append(bars, types.Bar{
			Ts:    ts,
			Open:  open.InexactFloat64(),
			High:  high.InexactFloat64(),
			Low:   low.InexactFloat64(),
			Close: close_.InexactFloat64(),
			Vol:   vol_.InexactFloat64(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoBars
	}

	// Query returns newest-first; the engine wants oldest-first.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	if err := types.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("cached candles violate OHLC invariants: %w", err)
	}
	return bars, nil
}
