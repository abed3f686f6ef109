package interfaces

import (
	"context"

	"strategy-validator/internal/types"
)

// StrategyStore is the persistent backlog of candidate strategies. Claim and
// release are atomic store operations; two processes must never hold the same
// strategy concurrently.
type StrategyStore interface {
	// Claim atomically moves one strategy in the given state to
	// claimed-by-this-process. Returns nil when the backlog is empty.
	Claim(ctx context.Context, state types.State) (*types.StrategyRecord, error)

	// Release moves a strategy this process holds into newState.
	Release(ctx context.Context, id string, newState types.State) error

	// MarkFailed records a failure reason and, when del is set, removes the
	// strategy from the backlog.
	MarkFailed(ctx context.Context, id string, reason string, del bool) error

	// CountAvailable reports how many strategies sit in the given state.
	CountAvailable(ctx context.Context, state types.State) (int, error)

	// QueueDepths reports the number of strategies per lifecycle state.
	QueueDepths(ctx context.Context) (map[types.State]int, error)

	// ReleaseAllClaimed returns every strategy claimed by this process to
	// the candidate state.
	ReleaseAllClaimed(ctx context.Context) error
}
