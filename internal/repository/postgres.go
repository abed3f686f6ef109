package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/types"
)

// Postgres is the shared-backlog StrategyStore. Claim relies on
// FOR UPDATE SKIP LOCKED so two validator processes can never own the same
// strategy; that row lock is the only cross-process invariant the
// orchestrator depends on.
type Postgres struct {
	pool      *pgxpool.Pool
	processID string
}

var _ interfaces.StrategyStore = (*Postgres)(nil)

func NewPostgres(ctx context.Context, dbURL, processID string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, processID: processID}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

const claimQuery = `
UPDATE strategies
SET state = $1, claimed_by = $2, updated_at = now()
WHERE id = (
	SELECT id FROM strategies
	WHERE state = $3
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, name, source, state, claimed_by, coalesce(fail_reason, ''), created_at, updated_at`

func (p *Postgres) Claim(ctx context.Context, state types.State) (*types.StrategyRecord, error) {
	var rec types.StrategyRecord
	err := p.pool.QueryRow(ctx, claimQuery, types.StateClaimed, p.processID, state).Scan(
		&rec.ID, &rec.Name, &rec.Source, &rec.State, &rec.ClaimedBy,
		&rec.FailReason, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim strategy: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) Release(ctx context.Context, id string, newState types.State) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE strategies SET state = $1, claimed_by = NULL, updated_at = now()
		 WHERE id = $2 AND claimed_by = $3`,
		newState, id, p.processID)
	if err != nil {
		return fmt.Errorf("release strategy %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("release strategy %s: %w", id, ErrNotClaimOwner)
	}
	return nil
}

func (p *Postgres) MarkFailed(ctx context.Context, id string, reason string, del bool) error {
	if del {
		// Ownership guard: a worker finishing after shutdown released its
		// claim must not delete a strategy another process may now own.
		tag, err := p.pool.Exec(ctx,
			`DELETE FROM strategies WHERE id = $1 AND claimed_by = $2`,
			id, p.processID)
		if err != nil {
			return fmt.Errorf("delete strategy %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete strategy %s: %w", id, ErrNotClaimOwner)
		}
		return nil
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE strategies SET state = $1, fail_reason = $2, claimed_by = NULL, updated_at = now()
		 WHERE id = $3 AND claimed_by = $4`,
		types.StateFailed, reason, id, p.processID)
	if err != nil {
		return fmt.Errorf("mark strategy %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark strategy %s failed: %w", id, ErrNotClaimOwner)
	}
	return nil
}

func (p *Postgres) CountAvailable(ctx context.Context, state types.State) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT count(*) FROM strategies WHERE state = $1`, state).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count strategies: %w", err)
	}
	return n, nil
}

func (p *Postgres) QueueDepths(ctx context.Context) (map[types.State]int, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT state, count(*) FROM strategies GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}
	defer rows.Close()

	depths := map[types.State]int{}
	for rows.Next() {
		var state types.State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		depths[state] = n
	}
	return depths, rows.Err()
}

func (p *Postgres) ReleaseAllClaimed(ctx context.Context) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE strategies SET state = $1, claimed_by = NULL, updated_at = now()
		 WHERE state = $2 AND claimed_by = $3`,
		types.StateCandidate, types.StateClaimed, p.processID)
	if err != nil {
		return fmt.Errorf("release claimed strategies: %w", err)
	}
	return nil
}
