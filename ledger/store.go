/*
store.go - Persistence interfaces for the ledger

PURPOSE:
  Defines the interface between the ledger logic and the database.
  Different implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  Transactions are append-only. The two narrow exceptions, both scoped to
  recurring series, are:
  - StopRecurring: deactivates a series (Active=false, NextRun cleared)
  - AdvanceRecurrence: moves NextRun forward while appending the spawned
    transaction in the same atomic unit, so a due run is never
    materialized twice

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - store/memory: in-memory store for testing/dev

SEE ALSO:
  - aggregator.go: Reads ListByUser
  - replicator.go: Reads ListDueRecurring, writes AdvanceRecurrence
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TransactionStore handles persistence of ledger transactions.
type TransactionStore interface {
	// Append persists a new transaction.
	Append(ctx context.Context, tx Transaction) error

	// ListByUser returns all transactions for a user, ordered by OccurredAt.
	// The aggregate is a lifetime aggregate; there is no date filtering.
	ListByUser(ctx context.Context, userID UserID) ([]Transaction, error)

	// ListDueRecurring returns active recurring transactions whose NextRun
	// is at or before now.
	ListDueRecurring(ctx context.Context, now time.Time) ([]Transaction, error)

	// StopRecurring deactivates a recurring series owned by userID.
	// Returns false if no such transaction exists for that user.
	StopRecurring(ctx context.Context, userID UserID, id TransactionID) (bool, error)

	// AdvanceRecurrence appends spawn and moves the series' NextRun to next
	// as one atomic unit. A concurrent replicator run must not be able to
	// materialize the same due date twice.
	AdvanceRecurrence(ctx context.Context, id TransactionID, next time.Time, spawn Transaction) error
}

// =============================================================================
// USER STORE
// =============================================================================

// UserStore handles persistence of ledger owners.
type UserStore interface {
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}
