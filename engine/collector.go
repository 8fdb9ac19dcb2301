/*
collector.go - Fact collector (staging path)

PURPOSE:
  Normalizes candidate facts from collaborator modules into pending
  entries and inserts only those not already represented - by
  (source, sourceId) - in the ledger or the staging area. This is the
  path for provisional facts (a budget approved but payment terms not yet
  triggered); the operator confirms them later via promotion.

SEE ALSO:
  - poster.go: The direct path for facts that are already final
  - promote.go: Confirmation of staged entries
*/
package engine

import (
	"context"
	"time"
)

// CollectFromCollaborator stages every fact whose (source, sourceId) pair
// is not yet represented in the ledger or the staging area. Duplicates are
// silently skipped; the same batch can be re-delivered any number of
// times. Returns the number of entries actually inserted.
func (e *Engine) CollectFromCollaborator(ctx context.Context, source Source, facts []RawFact) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := e.today()
	now := e.clock()
	index := e.dedupIndex()

	candidate := clonePending(e.pending)
	inserted := 0

	for _, fact := range facts {
		entry := e.normalizeFact(source, fact, today, now)

		if key, ok := entry.Key(); ok {
			if index[key] {
				continue
			}
			index[key] = true
		}
		candidate = append(candidate, entry)
		inserted++
	}

	if inserted == 0 {
		return 0, nil
	}
	if err := e.commitStaging(ctx, candidate); err != nil {
		return 0, err
	}
	return inserted, nil
}

// CollectFromSource pulls a collaborator's current candidate set and runs
// the dedup/insert cycle. Used by the bus subscription and the periodic
// poller; a pull failure leaves this cycle empty and is retried next time.
func (e *Engine) CollectFromSource(ctx context.Context, src CollaboratorSource) (int, error) {
	facts, err := src.PendingFacts(ctx)
	if err != nil {
		return 0, err
	}
	return e.CollectFromCollaborator(ctx, SourceForTopic(src.Topic()), facts)
}

// normalizeFact applies the same coercion rules as the integrity guard to
// a raw collaborator fact. Caller holds the mutex.
func (e *Engine) normalizeFact(source Source, fact RawFact, today Date, now time.Time) PendingEntry {
	entry := PendingEntry{
		ID:          NewMovementID(),
		Direction:   ParseDirection(string(fact.Direction)),
		Source:      ParseSource(string(source)),
		SourceID:    fact.SourceID,
		Date:        fact.Date,
		Description: fact.Description,
		Amount:      fact.Amount,
		Category:    fact.Category,
		StagedAt:    now,
	}
	entry.Category = CoerceCategory(entry.Direction, entry.Category)
	if entry.Description == "" {
		entry.Description = DefaultDescription
	}
	if entry.Amount.IsNegative() {
		entry.Amount = entry.Amount.Abs()
	}
	if entry.Date.IsZero() {
		entry.Date = today
	}
	return entry
}
