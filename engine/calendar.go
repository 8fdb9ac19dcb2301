package engine

import (
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (movement dates carry no zone)
// =============================================================================

type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO date (YYYY-MM-DD). The boolean reports success;
// callers that must never fail repair the date instead (see guard.go).
func ParseDate(s string) (Date, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, false
	}
	return DateOf(t), true
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// StartOfMonth returns the first day of the date's month.
func (d Date) StartOfMonth() Date { return NewDate(d.Year(), d.Month(), 1) }

// StartOfNextMonth returns the first day of the following month.
func (d Date) StartOfNextMonth() Date { return d.StartOfMonth().AddMonths(1) }

// StartOfYear returns January 1 of the date's year.
func (d Date) StartOfYear() Date { return NewDate(d.Year(), time.January, 1) }

// =============================================================================
// CLOCK TIME - Time-of-day, validated independently from the date
// =============================================================================

// ClockTime is a minute-granularity time of day ("15:04"). Movements are
// sorted by (Date, Time) descending, so the string form must order
// lexicographically, which the fixed HH:MM encoding guarantees.
type ClockTime string

const MidnightClockTime ClockTime = "00:00"

// ParseClockTime validates an HH:MM string. The boolean reports success.
func ParseClockTime(s string) (ClockTime, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", false
	}
	return ClockTime(t.Format("15:04")), true
}

// ClockTimeOf extracts the time of day from a wall-clock timestamp.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Format("15:04"))
}

func (c ClockTime) String() string { return string(c) }
