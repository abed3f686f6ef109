package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/types"
)

var (
	ErrStrategyNotFound = errors.New("strategy not found")
	ErrNotClaimOwner    = errors.New("strategy not claimed by this process")
)

// Memory is a mutex-guarded in-process StrategyStore. It is the default
// driver and the store the tests run against; claim/release semantics match
// the Postgres driver.
type Memory struct {
	processID string

	mu         sync.Mutex
	strategies map[string]*types.StrategyRecord
}

var _ interfaces.StrategyStore = (*Memory)(nil)

func NewMemory(processID string) *Memory {
	return &Memory{
		processID:  processID,
		strategies: map[string]*types.StrategyRecord{},
	}
}

// Add inserts a new candidate strategy and returns its id.
func (m *Memory) Add(_ context.Context, name, source string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	now := time.Now()
	m.strategies[id] = &types.StrategyRecord{
		ID:        id,
		Name:      name,
		Source:    source,
		State:     types.StateCandidate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (m *Memory) Claim(_ context.Context, state types.State) (*types.StrategyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.strategies {
		if rec.State == state {
			rec.State = types.StateClaimed
			rec.ClaimedBy = m.processID
			rec.UpdatedAt = time.Now()
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) Release(_ context.Context, id string, newState types.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.strategies[id]
	if !ok {
		return fmt.Errorf("release %s: %w", id, ErrStrategyNotFound)
	}
	if rec.State != types.StateClaimed || rec.ClaimedBy != m.processID {
		return fmt.Errorf("release %s: %w", id, ErrNotClaimOwner)
	}
	rec.State = newState
	rec.ClaimedBy = ""
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) MarkFailed(_ context.Context, id string, reason string, del bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.strategies[id]
	if !ok {
		return fmt.Errorf("mark failed %s: %w", id, ErrStrategyNotFound)
	}
	if rec.State != types.StateClaimed || rec.ClaimedBy != m.processID {
		return fmt.Errorf("mark failed %s: %w", id, ErrNotClaimOwner)
	}
	if del {
		delete(m.strategies, id)
		return nil
	}
	rec.State = types.StateFailed
	rec.FailReason = reason
	rec.ClaimedBy = ""
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) CountAvailable(_ context.Context, state types.State) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.strategies {
		if rec.State == state {
			n++
		}
	}
	return n, nil
}

func (m *Memory) QueueDepths(_ context.Context) (map[types.State]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	depths := map[types.State]int{}
	for _, rec := range m.strategies {
		depths[rec.State]++
	}
	return depths, nil
}

func (m *Memory) ReleaseAllClaimed(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.strategies {
		if rec.State == types.StateClaimed && rec.ClaimedBy == m.processID {
			rec.State = types.StateCandidate
			rec.ClaimedBy = ""
			rec.UpdatedAt = time.Now()
		}
	}
	return nil
}
