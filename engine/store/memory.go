// Package store provides engine.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu             sync.RWMutex
	movements      []engine.Movement
	pending        []engine.PendingEntry
	initialBalance decimal.Decimal

	// Fault injection for tests: non-nil errors are returned verbatim.
	LoadErr error
	SaveErr error
}

func NewMemory() *Memory {
	return &Memory{initialBalance: decimal.Zero}
}

// Seed replaces the stored state without error injection, for test setup.
func (m *Memory) Seed(movements []engine.Movement, pending []engine.PendingEntry, initialBalance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements = cloneMovements(movements)
	m.pending = clonePending(pending)
	m.initialBalance = initialBalance
}

func (m *Memory) LoadLedger(_ context.Context) ([]engine.Movement, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LoadErr != nil {
		return nil, decimal.Zero, m.LoadErr
	}
	return cloneMovements(m.movements), m.initialBalance, nil
}

func (m *Memory) SaveLedger(_ context.Context, movements []engine.Movement, initialBalance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.movements = cloneMovements(movements)
	m.initialBalance = initialBalance
	return nil
}

func (m *Memory) LoadStaging(_ context.Context) ([]engine.PendingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return clonePending(m.pending), nil
}

func (m *Memory) SaveStaging(_ context.Context, entries []engine.PendingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.pending = clonePending(entries)
	return nil
}

func cloneMovements(in []engine.Movement) []engine.Movement {
	out := make([]engine.Movement, len(in))
	copy(out, in)
	return out
}

func clonePending(in []engine.PendingEntry) []engine.PendingEntry {
	out := make([]engine.PendingEntry, len(in))
	copy(out, in)
	return out
}
