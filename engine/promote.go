/*
promote.go - Promotion engine and staging maintenance

PURPOSE:
  Converts selected pending entries into confirmed paid movements,
  preserving the (source, sourceId) identity, and marks the source entries
  processed. Promotion is idempotent: a processed entry is a no-op on
  retry, never an error, so duplicate invocations cannot double-post.

SEE ALSO:
  - collector.go: How entries got staged in the first place
  - engine.go: Snapshot/commit discipline the two-store write follows
*/
package engine

import (
	"context"
)

// Promote confirms the referenced staging entries. Only entries that are
// selected and not yet processed are promoted; unknown ids and
// already-processed entries are skipped, and the rest of the batch still
// goes through. Returns the number of movements created.
func (e *Engine) Promote(ctx context.Context, ids []MovementID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	wanted := make(map[MovementID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	// Keys already confirmed in the ledger. A retry after a partial write
	// must not post the same upstream fact twice.
	ledgerKeys := make(map[DedupKey]bool, len(e.movements))
	for _, m := range e.movements {
		if key, ok := m.Key(); ok {
			ledgerKeys[key] = true
		}
	}

	ledger := cloneMovements(e.movements)
	staging := clonePending(e.pending)
	promoted := 0

	for i := range staging {
		entry := staging[i]
		if !wanted[entry.ID] || !entry.Selected || entry.Processed {
			continue
		}
		if key, ok := entry.Key(); ok && ledgerKeys[key] {
			// Already in the ledger; just retire the entry.
			staging[i].Processed = true
			continue
		}

		m := Movement{
			ID:          NewMovementID(),
			Direction:   entry.Direction,
			Date:        entry.Date,
			Time:        ClockTimeOf(now),
			Description: entry.Description,
			Amount:      entry.Amount,
			Category:    entry.Category,
			Status:      StatusPaid,
			Source:      entry.Source,
			SourceID:    entry.SourceID,
			CreatedAt:   now,
			UpdatedAt:   now,
			CreatedBy:   SystemActor,
			UpdatedBy:   SystemActor,
		}
		if key, ok := m.Key(); ok {
			ledgerKeys[key] = true
		}

		ledger = insertSorted(ledger, m)
		staging[i].Processed = true
		promoted++
	}

	if promoted == 0 && !stagingDiffers(e.pending, staging) {
		return 0, nil
	}

	// Ledger first: if staging persistence fails afterwards the processed
	// marks roll back, and the ledger-key check above keeps a retry from
	// posting duplicates.
	if err := e.commitLedger(ctx, ledger, e.initialBalance); err != nil {
		return 0, err
	}
	if err := e.commitStaging(ctx, staging); err != nil {
		return promoted, err
	}
	return promoted, nil
}

// SetSelected toggles operator intent on a live staging entry. Processed
// entries are logically dead and cannot be re-selected.
func (e *Engine) SetSelected(ctx context.Context, id MovementID, selected bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	staging := clonePending(e.pending)
	for i := range staging {
		if staging[i].ID != id {
			continue
		}
		if staging[i].Processed {
			return ErrPendingNotFound
		}
		if staging[i].Selected == selected {
			return nil
		}
		staging[i].Selected = selected
		return e.commitStaging(ctx, staging)
	}
	return ErrPendingNotFound
}

// PurgeProcessed permanently removes all processed entries from the
// staging area. The ledger is not touched. Returns the number removed.
func (e *Engine) PurgeProcessed(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := make([]PendingEntry, 0, len(e.pending))
	removed := 0
	for _, p := range e.pending {
		if p.Processed {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := e.commitStaging(ctx, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func stagingDiffers(a, b []PendingEntry) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i].Processed != b[i].Processed || a[i].Selected != b[i].Selected {
			return true
		}
	}
	return false
}
