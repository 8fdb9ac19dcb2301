/*
guard.go - Load-time integrity guard for the movement ledger

PURPOSE:
  Persisted data is never trusted. Every load runs the guard, which repairs
  records instead of rejecting them: a back-office book must always come up
  with a usable state, even after a partial write or a hand-edited store.

PASSES, IN ORDER:
  1. Shape repair - every field coerced into its domain (enum fallbacks,
     blank descriptions defaulted, negative amounts folded to magnitude,
     missing ids regenerated)
  2. Dedup by identity - two movements with the same id keep the first
  3. Date repair - unparseable/zero dates rewritten to today
  4. Canonical ordering - sorted by (date, time) descending, the order all
     list views reproduce

FIXED POINT:
  Running the guard twice on the same data produces no further changes.
  Tests rely on this; keep repairs deterministic.

SEE ALSO:
  - engine.go: Invokes the guard immediately after every store load
  - types.go: Parse* coercion helpers used by shape repair
*/
package engine

import (
	"sort"
)

// DefaultDescription is applied when a movement or pending entry arrives
// with a blank description.
const DefaultDescription = "(no description)"

// GuardReport counts what the integrity guard changed. All zeros means the
// input was already canonical.
type GuardReport struct {
	Repaired   int // Records with at least one coerced field
	Duplicates int // Records dropped by identity dedup
	BadDates   int // Dates rewritten to today
	Reordered  bool
}

// Changed reports whether the guard modified anything.
func (r GuardReport) Changed() bool {
	return r.Repaired > 0 || r.Duplicates > 0 || r.BadDates > 0 || r.Reordered
}

// NormalizeLedger runs all guard passes over a loaded movement list and
// returns the canonical slice. The input slice is not modified.
func NormalizeLedger(movements []Movement, today Date) ([]Movement, GuardReport) {
	var report GuardReport

	out := make([]Movement, 0, len(movements))
	seen := make(map[MovementID]bool, len(movements))

	for _, m := range movements {
		repaired := repairMovement(&m, today, &report)

		if m.ID != "" && seen[m.ID] {
			report.Duplicates++
			continue
		}
		seen[m.ID] = true

		if repaired {
			report.Repaired++
		}
		out = append(out, m)
	}

	if !movementsOrdered(out) {
		sortMovements(out)
		report.Reordered = true
	}
	return out, report
}

// repairMovement coerces every field into its domain. Returns true if any
// field changed.
func repairMovement(m *Movement, today Date, report *GuardReport) bool {
	repaired := false

	if m.ID == "" {
		m.ID = NewMovementID()
		repaired = true
	}
	if d := ParseDirection(string(m.Direction)); d != m.Direction {
		m.Direction = d
		repaired = true
	}
	if s := ParseStatus(string(m.Status)); s != m.Status {
		m.Status = s
		repaired = true
	}
	if src := ParseSource(string(m.Source)); src != m.Source {
		m.Source = src
		repaired = true
	}
	if c := CoerceCategory(m.Direction, m.Category); c != m.Category {
		m.Category = c
		repaired = true
	}
	if m.Description == "" {
		m.Description = DefaultDescription
		repaired = true
	}
	if m.Amount.IsNegative() {
		m.Amount = m.Amount.Abs()
		repaired = true
	}
	if m.Date.IsZero() {
		m.Date = today
		report.BadDates++
		repaired = true
	}
	if ct, ok := ParseClockTime(string(m.Time)); !ok {
		m.Time = MidnightClockTime
		repaired = true
	} else if ct != m.Time {
		// "9:05" parses but is not canonical and would sort wrong
		m.Time = ct
		repaired = true
	}
	return repaired
}

// NormalizeStaging applies the same coercion rules to pending entries.
// Identity dedup applies here too; processed flags are left untouched.
func NormalizeStaging(entries []PendingEntry, today Date) ([]PendingEntry, GuardReport) {
	var report GuardReport

	out := make([]PendingEntry, 0, len(entries))
	seen := make(map[MovementID]bool, len(entries))

	for _, e := range entries {
		repaired := false

		if e.ID == "" {
			e.ID = NewMovementID()
			repaired = true
		}
		if d := ParseDirection(string(e.Direction)); d != e.Direction {
			e.Direction = d
			repaired = true
		}
		if src := ParseSource(string(e.Source)); src != e.Source {
			e.Source = src
			repaired = true
		}
		if c := CoerceCategory(e.Direction, e.Category); c != e.Category {
			e.Category = c
			repaired = true
		}
		if e.Description == "" {
			e.Description = DefaultDescription
			repaired = true
		}
		if e.Amount.IsNegative() {
			e.Amount = e.Amount.Abs()
			repaired = true
		}
		if e.Date.IsZero() {
			e.Date = today
			report.BadDates++
			repaired = true
		}

		if seen[e.ID] {
			report.Duplicates++
			continue
		}
		seen[e.ID] = true

		if repaired {
			report.Repaired++
		}
		out = append(out, e)
	}
	return out, report
}

// =============================================================================
// CANONICAL ORDER - (date, time) strictly descending
// =============================================================================

func movementLess(a, b Movement) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.Time > b.Time
}

func sortMovements(movements []Movement) {
	sort.SliceStable(movements, func(i, j int) bool {
		return movementLess(movements[i], movements[j])
	})
}

func movementsOrdered(movements []Movement) bool {
	for i := 1; i < len(movements); i++ {
		if movementLess(movements[i], movements[i-1]) {
			return false
		}
	}
	return true
}
