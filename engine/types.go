/*
Package engine provides the cash-flow reconciliation and aggregation engine.

PURPOSE:
  This package owns the confirmed movement ledger, the pending-entry staging
  area, and every operation that moves records between them. Upstream
  collaborator modules (management ledger, payroll, budgets, projects) emit
  candidate facts; the engine deduplicates them, stages or posts them, and
  computes balances, period aggregates, and projections on demand.

KEY CONCEPTS IN THIS FILE (types.go):
  - Movement: A confirmed financial fact in the permanent ledger
  - PendingEntry: A staged candidate fact awaiting operator confirmation
  - RawFact: The shape collaborators hand to the engine
  - Direction/Status/Source: Closed enums with coercion helpers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all monetary amounts
  2. Dedup: The (Source, SourceID) pair is the identity of upstream facts
  3. Coercion over rejection: Out-of-domain values fall back to safe defaults
  4. Sign discipline: Amount is a magnitude; Direction carries the sign

SEE ALSO:
  - guard.go: Load-time normalization of persisted records
  - aggregate.go: Balance, period aggregate, and projection math
  - engine.go: The serialized facade tying the components together
*/
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTION - Inflow or outflow
// =============================================================================

type Direction string

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// ParseDirection coerces an arbitrary string into a valid Direction.
// Unknown values default to Outflow, the conservative reading for a
// cash-flow book: an unrecognized record should never inflate the balance.
func ParseDirection(s string) Direction {
	if Direction(s) == Inflow {
		return Inflow
	}
	return Outflow
}

// =============================================================================
// STATUS - 4-state machine, terminal states have no outbound edges
// =============================================================================

// Status is the stored payment state of a Movement.
//
// Transitions:
//   pending -> paid      (operator marks received/paid)
//   pending -> canceled
//   paid    -> pending   (operator reverts)
//
// StatusOverdue is a read-time projection of (pending, date < today).
// Automated paths never persist it; see Movement.EffectiveStatus.
type Status string

const (
	StatusPaid     Status = "paid"
	StatusPending  Status = "pending"
	StatusOverdue  Status = "overdue"
	StatusCanceled Status = "canceled"
)

// ParseStatus coerces an arbitrary string into a valid stored Status.
// Unknown values fall back to pending. A literal "overdue" read from the
// store is folded back to pending: overdue is derived, never stored.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPaid, StatusCanceled:
		return Status(s)
	case StatusPending, StatusOverdue:
		return StatusPending
	default:
		return StatusPending
	}
}

// CanTransition reports whether the stored status may move from one state
// to another. Canceled is terminal; paid may only revert to pending.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusPaid || to == StatusCanceled
	case StatusPaid:
		return to == StatusPending
	default:
		return false
	}
}

// =============================================================================
// SOURCE - Which collaborator produced a record
// =============================================================================

type Source string

const (
	SourceManual      Source = "Manual"
	SourceManagement  Source = "Management"
	SourcePayroll     Source = "Payroll"
	SourceBudget      Source = "Budget"
	SourceProject     Source = "Project"
	SourceCSVImport   Source = "CSV-Import"
	SourceExcelImport Source = "Excel-Import"
	SourceSystem      Source = "System"
)

var knownSources = map[Source]bool{
	SourceManual:      true,
	SourceManagement:  true,
	SourcePayroll:     true,
	SourceBudget:      true,
	SourceProject:     true,
	SourceCSVImport:   true,
	SourceExcelImport: true,
	SourceSystem:      true,
}

// ParseSource coerces an arbitrary string into a valid Source.
// Unknown values fall back to Manual, which exempts the record from the
// dedup invariant rather than colliding it with a real collaborator.
func ParseSource(s string) Source {
	if knownSources[Source(s)] {
		return Source(s)
	}
	return SourceManual
}

// DedupKey is the identity of an upstream fact across the ledger and the
// staging area. Manual movements are exempt and never produce a key.
type DedupKey struct {
	Source   Source
	SourceID string
}

// HasDedupKey reports whether the (source, sourceID) pair participates in
// the uniqueness invariant.
func HasDedupKey(source Source, sourceID string) bool {
	return source != SourceManual && sourceID != ""
}

// =============================================================================
// MOVEMENT - Confirmed financial fact
// =============================================================================

type MovementID string

// NewMovementID generates an opaque unique identifier.
func NewMovementID() MovementID {
	return MovementID(uuid.NewString())
}

type Movement struct {
	ID          MovementID
	Direction   Direction
	Date        Date
	Time        ClockTime
	Description string
	Amount      decimal.Decimal // Non-negative magnitude; Direction carries the sign
	Category    string
	Status      Status
	Reconciled  bool
	Source      Source
	SourceID    string // Empty for manual entries
	Tags        []string
	Attachments []string

	// Audit fields
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
}

// EffectiveStatus returns the status as list views must display it:
// a pending movement dated strictly before today reads as overdue.
// The stored Status field is untouched.
func (m Movement) EffectiveStatus(today Date) Status {
	if m.Status == StatusPending && m.Date.Before(today) {
		return StatusOverdue
	}
	return m.Status
}

// Key returns the dedup key and whether the movement participates in the
// uniqueness invariant.
func (m Movement) Key() (DedupKey, bool) {
	if !HasDedupKey(m.Source, m.SourceID) {
		return DedupKey{}, false
	}
	return DedupKey{Source: m.Source, SourceID: m.SourceID}, true
}

// SignedAmount returns the amount with the direction's sign applied.
func (m Movement) SignedAmount() decimal.Decimal {
	if m.Direction == Outflow {
		return m.Amount.Neg()
	}
	return m.Amount
}

// =============================================================================
// PENDING ENTRY - Staged candidate fact
// =============================================================================

type PendingEntry struct {
	ID          MovementID
	Direction   Direction
	Source      Source
	SourceID    string
	Date        Date
	Description string
	Amount      decimal.Decimal
	Category    string
	Selected    bool // Operator intent
	Processed   bool // Promotion outcome; a processed entry is logically dead
	StagedAt    time.Time
}

// Key returns the dedup key and whether the entry participates in the
// uniqueness invariant, scoped to the staging area.
func (p PendingEntry) Key() (DedupKey, bool) {
	if !HasDedupKey(p.Source, p.SourceID) {
		return DedupKey{}, false
	}
	return DedupKey{Source: p.Source, SourceID: p.SourceID}, true
}

// =============================================================================
// RAW FACT - What collaborators hand to the engine
// =============================================================================

// RawFact is the boundary shape consumed from the four upstream modules.
// The collaborator is responsible for a SourceID that is stable and unique
// within its own domain (e.g. "<closing-id>-<employee-id>" for payroll).
type RawFact struct {
	Direction   Direction
	SourceID    string
	Date        Date
	Description string
	Amount      decimal.Decimal
	Category    string
}

// =============================================================================
// PERIOD AGGREGATE - Derived, never persisted
// =============================================================================

// PeriodAggregate summarizes movements inside a half-open interval [start, end).
type PeriodAggregate struct {
	InflowTotal      decimal.Decimal
	OutflowTotal     decimal.Decimal
	NetTotal         decimal.Decimal
	PaidInflowTotal  decimal.Decimal
	PaidOutflowTotal decimal.Decimal
	MovementCount    int
}

// CategoryTotal is one bucket of a category distribution.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// MonthTotal is one bucket of a monthly series summary.
type MonthTotal struct {
	Year      int
	Month     time.Month
	Aggregate PeriodAggregate
}
