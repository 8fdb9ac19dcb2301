package engine

// =============================================================================
// INTERVAL - Half-open date range [Start, End)
// =============================================================================

// Interval is the time boundary every aggregate is scoped to. A zero Start
// or End leaves that side unbounded ("all" resolves to the fully open
// interval).
type Interval struct {
	Start Date
	End   Date
}

// Contains reports whether the date falls inside [Start, End).
func (iv Interval) Contains(d Date) bool {
	if !iv.Start.IsZero() && d.Before(iv.Start) {
		return false
	}
	if !iv.End.IsZero() && !d.Before(iv.End) {
		return false
	}
	return true
}

func (iv Interval) String() string {
	start, end := "-inf", "+inf"
	if !iv.Start.IsZero() {
		start = iv.Start.String()
	}
	if !iv.End.IsZero() {
		end = iv.End.String()
	}
	return "[" + start + ", " + end + ")"
}

// =============================================================================
// NAMED PERIODS - Deterministic resolution anchored on "today"
// =============================================================================

type Period string

const (
	PeriodCurrentMonth  Period = "current-month"
	PeriodPreviousMonth Period = "previous-month"
	PeriodQuarter       Period = "quarter"  // Current month + 2 preceding
	PeriodSemester      Period = "semester" // Current month + 5 preceding
	PeriodYear          Period = "year"     // Calendar year
	PeriodAll           Period = "all"
	PeriodCustom        Period = "custom" // Caller-supplied interval
)

// ParsePeriod coerces an arbitrary string into a known Period.
// Unknown values default to the current month.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodCurrentMonth, PeriodPreviousMonth, PeriodQuarter,
		PeriodSemester, PeriodYear, PeriodAll, PeriodCustom:
		return Period(s)
	default:
		return PeriodCurrentMonth
	}
}

// Resolve maps a named period to a concrete [start, end) interval anchored
// on today. For PeriodCustom the caller-supplied interval is returned as-is.
func (p Period) Resolve(today Date, custom Interval) Interval {
	switch p {
	case PeriodCurrentMonth:
		return Interval{Start: today.StartOfMonth(), End: today.StartOfNextMonth()}

	case PeriodPreviousMonth:
		start := today.StartOfMonth().AddMonths(-1)
		return Interval{Start: start, End: today.StartOfMonth()}

	case PeriodQuarter:
		start := today.StartOfMonth().AddMonths(-2)
		return Interval{Start: start, End: today.StartOfNextMonth()}

	case PeriodSemester:
		start := today.StartOfMonth().AddMonths(-5)
		return Interval{Start: start, End: today.StartOfNextMonth()}

	case PeriodYear:
		return Interval{Start: today.StartOfYear(), End: today.StartOfYear().AddYears(1)}

	case PeriodCustom:
		return custom

	case PeriodAll:
		return Interval{}

	default:
		return Interval{Start: today.StartOfMonth(), End: today.StartOfNextMonth()}
	}
}
