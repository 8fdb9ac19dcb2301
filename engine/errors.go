/*
errors.go - Centralized error types for the cash-flow engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP handlers, the poller) branch on these with errors.Is.

ERROR CATEGORIES:
  1. Persistence errors - Store read/write failures
  2. Operation errors - Invalid targets and transitions
  3. Duplicate facts - Expected no-ops, surfaced as sentinels only
     where a caller needs to distinguish "already there" from "inserted"

SEE ALSO:
  - engine.go: Wraps store failures with these sentinels
  - api/handlers.go: Maps these to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSaveFailed is returned when a mutating operation could not persist.
	// The in-memory state has been rolled back to the last saved snapshot.
	ErrSaveFailed = errors.New("save failed")

	// ErrMovementNotFound is returned when an operation references an
	// unknown movement id.
	ErrMovementNotFound = errors.New("movement not found")

	// ErrPendingNotFound is returned when an operation references an
	// unknown pending entry id.
	ErrPendingNotFound = errors.New("pending entry not found")

	// ErrInvalidTransition is returned when a status change violates the
	// state machine (e.g. reviving a canceled movement).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateFact is the sentinel behind duplicate (source, sourceId)
	// pairs. Collect and PostDirect treat duplicates as no-ops and do NOT
	// return this; it exists for callers of lower-level helpers.
	ErrDuplicateFact = errors.New("duplicate fact")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SaveError reports which store rejected a write.
type SaveError struct {
	Store string // "ledger" or "staging"
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s store save failed: %v", e.Store, e.Err)
}

func (e *SaveError) Unwrap() error { return ErrSaveFailed }

// TransitionError reports a rejected status change.
type TransitionError struct {
	ID   MovementID
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("movement %s: cannot transition %s -> %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMovementNotFound) || errors.Is(err, ErrPendingNotFound)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than an engine or store failure.
func IsClientError(err error) bool {
	return IsNotFound(err) || errors.Is(err, ErrInvalidTransition)
}
