/*
replicator.go - Recurring series materialization

PURPOSE:
  Turns due recurring transactions into concrete ledger entries. A series
  is a seed transaction carrying a Recurrence; each run appends a copy
  stamped at the due date and advances NextRun by the interval.

CATCH-UP:
  If the process was down across several due dates, a single run
  materializes every missed occurrence, one interval at a time, so the
  ledger converges to what continuous operation would have produced.

IDEMPOTENCY:
  AdvanceRecurrence appends the spawned transaction and moves NextRun in
  one atomic store operation, so a due date is materialized at most once
  even under concurrent runs.
*/
package ledger

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Replicator materializes due recurring transactions.
type Replicator struct {
	store TransactionStore
}

func NewReplicator(store TransactionStore) *Replicator {
	return &Replicator{store: store}
}

// Run materializes every due occurrence of every active series as of now.
// Returns the number of transactions appended. Per-series failures are
// logged and skipped; the scheduler retries naturally on the next tick.
func (r *Replicator) Run(ctx context.Context, now time.Time) (int, error) {
	due, err := r.store.ListDueRecurring(ctx, now)
	if err != nil {
		return 0, err
	}

	materialized := 0
	for _, seed := range due {
		n, err := r.catchUp(ctx, seed, now)
		materialized += n
		if err != nil {
			log.Printf("[Replicator] Error materializing series %s: %v", seed.ID, err)
		}
	}
	return materialized, nil
}

func (r *Replicator) catchUp(ctx context.Context, seed Transaction, now time.Time) (int, error) {
	rec := seed.Recurrence
	count := 0

	for !rec.NextRun.After(now) {
		runAt := rec.NextRun
		spawn := Transaction{
			ID:          TransactionID(uuid.NewString()),
			UserID:      seed.UserID,
			Description: seed.Description,
			Amount:      seed.Amount,
			Type:        seed.Type,
			Category:    seed.Category,
			OccurredAt:  runAt,
		}

		next := rec.Interval.Advance(runAt)
		if err := r.store.AdvanceRecurrence(ctx, seed.ID, next, spawn); err != nil {
			return count, err
		}
		rec.NextRun = next
		count++
	}
	return count, nil
}
