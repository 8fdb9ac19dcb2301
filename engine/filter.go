package engine

import "strings"

// =============================================================================
// MOVEMENT FILTER - All criteria compose by logical AND
// =============================================================================

// MovementFilter narrows the canonical movement list. Zero values mean
// "no constraint"; Interval is resolved by the caller (engine facade) from
// a named period before filtering.
type MovementFilter struct {
	Interval  Interval
	Direction Direction // "" = both
	Category  string    // "" = all
	Status    Status    // "" = all; matched against the EFFECTIVE status
	Search    string    // Free text over description, category and source
}

// Matches reports whether the movement passes every set criterion.
// Status matching uses the read-time effective status, so filtering on
// "overdue" finds pending movements dated before today even though the
// stored field still says pending.
func (f MovementFilter) Matches(m Movement, today Date) bool {
	if !f.Interval.Contains(m.Date) {
		return false
	}
	if f.Direction != "" && m.Direction != f.Direction {
		return false
	}
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.Status != "" && m.EffectiveStatus(today) != f.Status {
		return false
	}
	if f.Search != "" && !f.matchesSearch(m) {
		return false
	}
	return true
}

func (f MovementFilter) matchesSearch(m Movement) bool {
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(m.Description), needle) ||
		strings.Contains(strings.ToLower(m.Category), needle) ||
		strings.Contains(strings.ToLower(string(m.Source)), needle)
}

// FilterMovements returns the movements passing the filter, preserving the
// canonical (date, time) descending order of the input.
func FilterMovements(movements []Movement, f MovementFilter, today Date) []Movement {
	out := make([]Movement, 0, len(movements))
	for _, m := range movements {
		if f.Matches(m, today) {
			out = append(out, m)
		}
	}
	return out
}
