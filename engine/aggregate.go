/*
aggregate.go - Pure read-only math over the ledger

PURPOSE:
  Everything the UI charts and headline numbers need: current balance,
  period-bucketed totals, category distributions, monthly series, and the
  forward projection that folds in future-dated pending entries.

RULES:
  - Only paid movements move the balance. Pending, overdue (a display
    alias of pending) and canceled never contribute.
  - Every aggregate is scoped to a half-open interval [start, end).
  - These functions never mutate their inputs and hold no state; the
    engine facade calls them under its mutex with the current snapshot.

SEE ALSO:
  - period.go: Named period -> interval resolution
  - engine.go: Facade methods exposing these per the public surface
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENT BALANCE
// =============================================================================

// ComputeBalance returns initialBalance + paid inflows - paid outflows.
func ComputeBalance(initialBalance decimal.Decimal, movements []Movement) decimal.Decimal {
	balance := initialBalance
	for _, m := range movements {
		if m.Status != StatusPaid {
			continue
		}
		balance = balance.Add(m.SignedAmount())
	}
	return balance
}

// =============================================================================
// PROJECTION - Forward-looking balance estimate
// =============================================================================

// ComputeProjection returns the current balance plus every future-dated,
// still-pending movement folded in with its direction's sign. "Future"
// means date strictly after today.
func ComputeProjection(initialBalance decimal.Decimal, movements []Movement, today Date) decimal.Decimal {
	projected := ComputeBalance(initialBalance, movements)
	for _, m := range movements {
		if m.Status != StatusPending || !m.Date.After(today) {
			continue
		}
		projected = projected.Add(m.SignedAmount())
	}
	return projected
}

// =============================================================================
// PERIOD AGGREGATE
// =============================================================================

// AggregatePeriod filters movements to the interval and sums by direction
// and by (direction, paid). Canceled movements are excluded entirely.
func AggregatePeriod(movements []Movement, interval Interval) PeriodAggregate {
	agg := PeriodAggregate{
		InflowTotal:      decimal.Zero,
		OutflowTotal:     decimal.Zero,
		NetTotal:         decimal.Zero,
		PaidInflowTotal:  decimal.Zero,
		PaidOutflowTotal: decimal.Zero,
	}

	for _, m := range movements {
		if m.Status == StatusCanceled || !interval.Contains(m.Date) {
			continue
		}
		agg.MovementCount++

		if m.Direction == Inflow {
			agg.InflowTotal = agg.InflowTotal.Add(m.Amount)
			if m.Status == StatusPaid {
				agg.PaidInflowTotal = agg.PaidInflowTotal.Add(m.Amount)
			}
		} else {
			agg.OutflowTotal = agg.OutflowTotal.Add(m.Amount)
			if m.Status == StatusPaid {
				agg.PaidOutflowTotal = agg.PaidOutflowTotal.Add(m.Amount)
			}
		}
	}

	agg.NetTotal = agg.InflowTotal.Sub(agg.OutflowTotal)
	return agg
}

// =============================================================================
// CATEGORY DISTRIBUTION
// =============================================================================

// DistributeByCategory groups interval-filtered movements of one direction
// by category, summing amounts. Buckets are returned largest first, ties
// broken by category name for determinism. Reporting only; never drives
// control flow.
func DistributeByCategory(movements []Movement, interval Interval, dir Direction) []CategoryTotal {
	totals := make(map[string]*CategoryTotal)

	for _, m := range movements {
		if m.Status == StatusCanceled || m.Direction != dir || !interval.Contains(m.Date) {
			continue
		}
		bucket, ok := totals[m.Category]
		if !ok {
			bucket = &CategoryTotal{Category: m.Category, Total: decimal.Zero}
			totals[m.Category] = bucket
		}
		bucket.Total = bucket.Total.Add(m.Amount)
		bucket.Count++
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, bucket := range totals {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// =============================================================================
// MONTHLY SERIES - Chart data
// =============================================================================

// MonthlySeries slices the interval into calendar months and aggregates
// each one. An unbounded interval is clamped to the months that actually
// contain movements.
func MonthlySeries(movements []Movement, interval Interval) []MonthTotal {
	start, end := interval.Start, interval.End
	if start.IsZero() || end.IsZero() {
		first, last, ok := dateSpan(movements, interval)
		if !ok {
			return nil
		}
		if start.IsZero() {
			start = first
		}
		if end.IsZero() {
			end = last.AddDays(1)
		}
	}

	var out []MonthTotal
	for cursor := start.StartOfMonth(); cursor.Before(end); cursor = cursor.AddMonths(1) {
		month := Interval{Start: cursor, End: cursor.AddMonths(1)}

		// Respect the outer bounds at the edges
		if month.Start.Before(start) {
			month.Start = start
		}
		if end.Before(month.End) {
			month.End = end
		}

		out = append(out, MonthTotal{
			Year:      cursor.Year(),
			Month:     cursor.Month(),
			Aggregate: AggregatePeriod(movements, month),
		})
	}
	return out
}

// dateSpan returns the earliest and latest movement dates inside the
// interval. ok is false when nothing matches.
func dateSpan(movements []Movement, interval Interval) (first, last Date, ok bool) {
	for _, m := range movements {
		if m.Status == StatusCanceled || !interval.Contains(m.Date) {
			continue
		}
		if !ok || m.Date.Before(first) {
			first = m.Date
		}
		if !ok || m.Date.After(last) {
			last = m.Date
		}
		ok = true
	}
	return first, last, ok
}
