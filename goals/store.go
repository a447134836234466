/*
store.go - Persistence interface for savings goals

PURPOSE:
  Defines the query contract between the lifecycle engine and the
  database. The concurrency-sensitive operations are specified here
  because the engine's idempotency guarantees depend on them:

  - Create: priority shift + insert as one logical unit per user, so two
    simultaneous creations cannot produce duplicate priorities
  - ClaimFlag: conditional "set flag only if currently false", the sole
    gate guaranteeing at-most-one notification per goal per flag
  - UpdateStatus: conditional on status=pending, making every terminal
    transition happen at most once

SOFT DELETE ONLY:
  Goals are never hard-deleted. Retirement and user deletion are both
  status updates, preserving audit history.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - store/memory: in-memory store for testing/dev

SEE ALSO:
  - engine.go: Consumer of this contract
*/
package goals

import (
	"context"
	"time"

	"github.com/finova/savings-engine/ledger"
)

// Store handles persistence of savings goals.
type Store interface {
	// Create inserts a goal after shifting the user's existing goals with
	// priority >= goal.Priority up by one. Shift and insert are applied
	// atomically; a concurrent reader never observes duplicate priorities.
	// Returns ErrPriorityOutOfRange if the priority would leave a gap in
	// the user's pending 1..k ordering.
	Create(ctx context.Context, g Goal) error

	// Get returns a goal by ID, or ErrGoalNotFound.
	Get(ctx context.Context, id GoalID) (*Goal, error)

	// ListPending returns a user's pending goals ordered by priority.
	ListPending(ctx context.Context, userID ledger.UserID) ([]Goal, error)

	// ListAll returns every goal of a user regardless of status, newest
	// first. Soft-deleted and retired goals stay visible here.
	ListAll(ctx context.Context, userID ledger.UserID) ([]Goal, error)

	// AllPending returns every pending goal across all users. Input to the
	// full sweep; terminal goals are excluded by construction.
	AllPending(ctx context.Context) ([]Goal, error)

	// NextPending returns the single next pending goal under the given
	// order, or nil if none. An empty userID scans globally; a non-empty
	// one scopes the scan to that user (the interactive check-oldest path).
	NextPending(ctx context.Context, order Order, userID ledger.UserID) (*Goal, error)

	// UpdateStatus transitions a goal out of pending. The update is
	// conditional on the current status being pending; returns false if
	// the goal was already terminal (lost race), true if this call won
	// the transition.
	UpdateStatus(ctx context.Context, id GoalID, status Status, completedAt time.Time) (bool, error)

	// ClaimFlag atomically sets a notification flag that is currently
	// false on a pending goal. Returns true only for the caller that
	// flipped it; every concurrent claimant observes false.
	ClaimFlag(ctx context.Context, id GoalID, flag Flag) (bool, error)

	// SoftDelete marks a user's pending goal deleted. Returns false if the
	// goal doesn't exist, belongs to another user, or is already terminal.
	SoftDelete(ctx context.Context, userID ledger.UserID, id GoalID) (bool, error)
}
