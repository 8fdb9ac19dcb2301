/*
poster.go - Auto-poster (direct path) and manual movement entry

PURPOSE:
  The direct path for facts a collaborator already knows are final (a
  payroll closing whose salaries are being paid out now): the fact becomes
  a paid movement immediately, bypassing staging, subject to the same
  (source, sourceId) dedup rule as the collector. A duplicate is a no-op,
  not an error.

  Manual entry lives here too - it is the same "new confirmed movement"
  path with Source = Manual, which exempts the record from dedup.

SEE ALSO:
  - collector.go: The staging path for provisional facts
  - types.go: CanTransition, the status state machine behind the
    Mark and Revert operations
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// PostDirect converts a final collaborator fact straight into a paid
// movement. Returns (nil, nil) when the (source, sourceId) pair already
// exists in the ledger or the staging area.
func (e *Engine) PostDirect(ctx context.Context, source Source, fact RawFact) (*Movement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := e.today()
	now := e.clock()

	m := Movement{
		ID:          NewMovementID(),
		Direction:   ParseDirection(string(fact.Direction)),
		Date:        fact.Date,
		Time:        ClockTimeOf(now),
		Description: fact.Description,
		Amount:      fact.Amount,
		Category:    fact.Category,
		Status:      StatusPaid,
		Source:      ParseSource(string(source)),
		SourceID:    fact.SourceID,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   SystemActor,
		UpdatedBy:   SystemActor,
	}
	m.Category = CoerceCategory(m.Direction, m.Category)
	if m.Description == "" {
		m.Description = DefaultDescription
	}
	if m.Amount.IsNegative() {
		m.Amount = m.Amount.Abs()
	}
	if m.Date.IsZero() {
		m.Date = today
	}

	if key, ok := m.Key(); ok && e.dedupIndex()[key] {
		return nil, nil
	}

	candidate := insertSorted(cloneMovements(e.movements), m)
	if err := e.commitLedger(ctx, candidate, e.initialBalance); err != nil {
		return nil, err
	}
	return &m, nil
}

// =============================================================================
// MANUAL ENTRY
// =============================================================================

// ManualMovementInput carries the operator-supplied fields for a manual
// movement. Anything out of domain is coerced, not rejected.
type ManualMovementInput struct {
	Direction   Direction
	Date        Date
	Time        ClockTime
	Description string
	Amount      decimal.Decimal
	Category    string
	Status      Status // Only paid or pending are meaningful on entry
	Tags        []string
	Attachments []string
	Actor       string
}

// AddManual appends an operator-entered movement. Manual movements carry
// no sourceId and are exempt from the dedup invariant.
func (e *Engine) AddManual(ctx context.Context, input ManualMovementInput) (*Movement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	actor := input.Actor
	if actor == "" {
		actor = SystemActor
	}

	m := Movement{
		ID:          NewMovementID(),
		Direction:   ParseDirection(string(input.Direction)),
		Date:        input.Date,
		Time:        input.Time,
		Description: input.Description,
		Amount:      input.Amount,
		Category:    input.Category,
		Status:      ParseStatus(string(input.Status)),
		Source:      SourceManual,
		Tags:        input.Tags,
		Attachments: input.Attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}
	repairMovement(&m, e.today(), &GuardReport{})

	candidate := insertSorted(cloneMovements(e.movements), m)
	if err := e.commitLedger(ctx, candidate, e.initialBalance); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMovement replaces the operator-editable fields of a movement.
// Status is not touched here; use the transition operations.
func (e *Engine) UpdateMovement(ctx context.Context, id MovementID, input ManualMovementInput) (*Movement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOfMovement(id)
	if idx < 0 {
		return nil, ErrMovementNotFound
	}

	candidate := cloneMovements(e.movements)
	m := candidate[idx]

	m.Direction = ParseDirection(string(input.Direction))
	m.Date = input.Date
	m.Time = input.Time
	m.Description = input.Description
	m.Amount = input.Amount
	m.Category = input.Category
	m.Tags = input.Tags
	m.Attachments = input.Attachments
	m.UpdatedAt = e.clock()
	if input.Actor != "" {
		m.UpdatedBy = input.Actor
	}
	repairMovement(&m, e.today(), &GuardReport{})

	candidate[idx] = m
	sortMovements(candidate)

	if err := e.commitLedger(ctx, candidate, e.initialBalance); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMovement hard-deletes one movement. The only deletion path besides
// bulk cleanup of processed staging entries.
func (e *Engine) DeleteMovement(ctx context.Context, id MovementID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOfMovement(id)
	if idx < 0 {
		return ErrMovementNotFound
	}

	candidate := cloneMovements(e.movements)
	candidate = append(candidate[:idx], candidate[idx+1:]...)
	return e.commitLedger(ctx, candidate, e.initialBalance)
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// MarkPaid moves a pending movement to paid.
func (e *Engine) MarkPaid(ctx context.Context, id MovementID, actor string) error {
	return e.transition(ctx, id, StatusPaid, actor)
}

// MarkCanceled moves a pending movement to canceled, a terminal state.
func (e *Engine) MarkCanceled(ctx context.Context, id MovementID, actor string) error {
	return e.transition(ctx, id, StatusCanceled, actor)
}

// RevertToPending moves a paid movement back to pending.
func (e *Engine) RevertToPending(ctx context.Context, id MovementID, actor string) error {
	return e.transition(ctx, id, StatusPending, actor)
}

func (e *Engine) transition(ctx context.Context, id MovementID, to Status, actor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOfMovement(id)
	if idx < 0 {
		return ErrMovementNotFound
	}

	candidate := cloneMovements(e.movements)
	m := candidate[idx]

	if !CanTransition(m.Status, to) {
		return &TransitionError{ID: id, From: m.Status, To: to}
	}
	m.Status = to
	m.UpdatedAt = e.clock()
	if actor != "" {
		m.UpdatedBy = actor
	}
	candidate[idx] = m

	return e.commitLedger(ctx, candidate, e.initialBalance)
}

func (e *Engine) indexOfMovement(id MovementID) int {
	for i := range e.movements {
		if e.movements[i].ID == id {
			return i
		}
	}
	return -1
}
