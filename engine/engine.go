/*
engine.go - Serialized facade over the ledger and the staging area

PURPOSE:
  The Engine owns the in-memory working state (movement list, pending
  entries, initial balance) and is the single gate through which every
  operation runs. One mutex serializes all of them, so the read-check-write
  sequence behind the (source, sourceId) dedup invariant can never
  interleave, even with concurrent HTTP handlers on top.

STATE DISCIPLINE:
  Mutations build a candidate state, persist it, and only then commit it to
  memory. A failed save therefore leaves the engine on the last
  successfully persisted snapshot, and the caller is told the write did not
  take effect (ErrSaveFailed).

LOAD PATH:
  Construction loads both stores. A read failure falls back to an empty
  collection and a zero balance - the engine must always come up with a
  usable state. The integrity guard runs on whatever was loaded and the
  repaired snapshot is written back when it differs.

SEE ALSO:
  - collector.go / poster.go / promote.go: The mutating operations
  - aggregate.go: The pure math the read accessors delegate to
*/
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SystemActor is the audit label for writes the engine performs on its own
// (auto-posting, promotion, guard write-backs).
const SystemActor = "system"

type Engine struct {
	mu    sync.Mutex
	store Store
	clock func() time.Time

	movements      []Movement
	pending        []PendingEntry
	initialBalance decimal.Decimal
}

// New loads the engine state from the store. Read failures degrade to an
// empty state rather than propagating.
func New(ctx context.Context, store Store) (*Engine, error) {
	return NewWithClock(ctx, store, time.Now)
}

// NewWithClock is New with an injectable clock, used by tests to pin
// "today" for period and overdue calculations.
func NewWithClock(ctx context.Context, store Store, clock func() time.Time) (*Engine, error) {
	e := &Engine{store: store, clock: clock}

	today := e.today()

	movements, initial, err := store.LoadLedger(ctx)
	if err != nil {
		movements, initial = nil, decimal.Zero
	}
	movements, ledgerReport := NormalizeLedger(movements, today)

	pending, err := store.LoadStaging(ctx)
	if err != nil {
		pending = nil
	}
	pending, stagingReport := NormalizeStaging(pending, today)

	e.movements = movements
	e.pending = pending
	e.initialBalance = initial

	// Persist repairs so the next load starts canonical. Best effort: a
	// failed write-back still leaves a usable in-memory state.
	if ledgerReport.Changed() {
		_ = store.SaveLedger(ctx, movements, initial)
	}
	if stagingReport.Changed() {
		_ = store.SaveStaging(ctx, pending)
	}
	return e, nil
}

func (e *Engine) today() Date {
	return DateOf(e.clock())
}

// Today returns the engine's notion of the current date, the anchor for
// named periods and overdue display.
func (e *Engine) Today() Date {
	return e.today()
}

// =============================================================================
// PERSISTENCE HELPERS - Candidate state in, committed state out
// =============================================================================

func (e *Engine) commitLedger(ctx context.Context, movements []Movement, initial decimal.Decimal) error {
	if err := e.store.SaveLedger(ctx, movements, initial); err != nil {
		return &SaveError{Store: "ledger", Err: err}
	}
	e.movements = movements
	e.initialBalance = initial
	return nil
}

func (e *Engine) commitStaging(ctx context.Context, entries []PendingEntry) error {
	if err := e.store.SaveStaging(ctx, entries); err != nil {
		return &SaveError{Store: "staging", Err: err}
	}
	e.pending = entries
	return nil
}

// dedupIndex returns every dedup key currently represented in the ledger
// and the staging area, processed entries included.
func (e *Engine) dedupIndex() map[DedupKey]bool {
	index := make(map[DedupKey]bool, len(e.movements)+len(e.pending))
	for _, m := range e.movements {
		if key, ok := m.Key(); ok {
			index[key] = true
		}
	}
	for _, p := range e.pending {
		if key, ok := p.Key(); ok {
			index[key] = true
		}
	}
	return index
}

func cloneMovements(in []Movement) []Movement {
	out := make([]Movement, len(in))
	copy(out, in)
	return out
}

func clonePending(in []PendingEntry) []PendingEntry {
	out := make([]PendingEntry, len(in))
	copy(out, in)
	return out
}

// insertSorted places a movement at its canonical (date, time) descending
// position without resorting the whole slice.
func insertSorted(movements []Movement, m Movement) []Movement {
	i := 0
	for i < len(movements) && movementLess(movements[i], m) {
		i++
	}
	movements = append(movements, Movement{})
	copy(movements[i+1:], movements[i:])
	movements[i] = m
	return movements
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

// CurrentBalance returns initial balance plus the net of paid movements.
func (e *Engine) CurrentBalance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeBalance(e.initialBalance, e.movements)
}

// Projection returns the current balance with future-dated pending
// movements folded in.
func (e *Engine) Projection() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeProjection(e.initialBalance, e.movements, e.today())
}

// InitialBalance returns the persisted opening balance scalar.
func (e *Engine) InitialBalance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialBalance
}

// SetInitialBalance persists a new opening balance.
func (e *Engine) SetInitialBalance(ctx context.Context, balance decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLedger(ctx, e.movements, balance)
}

// PeriodAggregateFor resolves the named period against today and
// aggregates the movements inside it.
func (e *Engine) PeriodAggregateFor(p Period, custom Interval) PeriodAggregate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return AggregatePeriod(e.movements, p.Resolve(e.today(), custom))
}

// CategoryDistributionFor groups one direction's movements in the period
// by category.
func (e *Engine) CategoryDistributionFor(p Period, custom Interval, dir Direction) []CategoryTotal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return DistributeByCategory(e.movements, p.Resolve(e.today(), custom), dir)
}

// MonthlySeriesFor aggregates the period month by month.
func (e *Engine) MonthlySeriesFor(p Period, custom Interval) []MonthTotal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return MonthlySeries(e.movements, p.Resolve(e.today(), custom))
}

// ListMovements returns the movements passing the filter in canonical
// (date, time) descending order.
func (e *Engine) ListMovements(f MovementFilter) []Movement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return FilterMovements(e.movements, f, e.today())
}

// GetMovement returns one movement by id.
func (e *Engine) GetMovement(id MovementID) (Movement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.movements {
		if m.ID == id {
			return m, nil
		}
	}
	return Movement{}, ErrMovementNotFound
}

// ListPending returns the live (not yet processed) staging entries.
// Processed entries are logically dead and never shown.
func (e *Engine) ListPending() []PendingEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]PendingEntry, 0, len(e.pending))
	for _, p := range e.pending {
		if !p.Processed {
			out = append(out, p)
		}
	}
	return out
}
