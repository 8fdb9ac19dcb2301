/*
store.go - Persistence contracts for the ledger and the staging area

PURPOSE:
  Defines the interface between the engine and whatever holds its records.
  The contract is deliberately dumb: load everything, save everything. No
  validation lives here - that is the integrity guard's job, which the
  engine runs immediately after every load.

FAILURE MODE:
  On read error the ENGINE falls back to an empty collection and a zero
  balance; implementations just return the error. On write error the engine
  reports the failure and rolls its in-memory state back, so a store must
  make Save as atomic as it can (the SQLite store wraps it in one
  transaction; the memory store swaps a slice).

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store (WAL, auto-migrated schema)
  - engine/store: In-memory store for tests and dev

SEE ALSO:
  - engine.go: The only caller; serializes all access
  - guard.go: Normalization applied to whatever Load returns
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerStore owns the durable list of confirmed movements plus the
// initial-balance scalar. Pure load/save; no business logic.
type LedgerStore interface {
	// LoadLedger returns all movements and the initial balance.
	LoadLedger(ctx context.Context) ([]Movement, decimal.Decimal, error)

	// SaveLedger replaces the stored movement list and initial balance.
	// Must be atomic: either the new snapshot is fully visible or the old
	// one survives.
	SaveLedger(ctx context.Context, movements []Movement, initialBalance decimal.Decimal) error
}

// StagingStore owns the list of pending entries awaiting confirmation.
type StagingStore interface {
	// LoadStaging returns all pending entries, processed ones included.
	LoadStaging(ctx context.Context) ([]PendingEntry, error)

	// SaveStaging replaces the stored pending entry list. Same atomicity
	// requirement as SaveLedger.
	SaveStaging(ctx context.Context, entries []PendingEntry) error
}

// Store is the combined persistence surface the engine is built on.
type Store interface {
	LedgerStore
	StagingStore
}
