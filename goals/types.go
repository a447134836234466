/*
Package goals provides the savings-goal lifecycle engine.

PURPOSE:
  A priority-ordered set of user savings goals, evaluated by a periodic
  sweep that recomputes progress, fires threshold/deadline notifications
  exactly once, and retires goals (achieved/expired) in a deterministic
  order. Each goal's "current amount" is derived from the user's
  transaction ledger, never stored.

KEY CONCEPTS IN THIS FILE (types.go):
  - Goal: A user savings target with amount, deadline and priority
  - Status: pending -> {completed|expired|deleted}, terminal once left
  - Flag: The two one-shot notification gates
  - Order: The two retirement orderings (by age, by priority)

PRIORITY CONVENTION:
  Lower number = higher priority. Creation shifts existing goals with
  priority >= the new goal's priority up by one, keeping each user's
  pending priorities a dense 1..k ordering.

SEE ALSO:
  - engine.go: State machine (full sweep + single-goal retirement)
  - store.go: Persistence interface the engine relies on
*/
package goals

import (
	"errors"
	"time"

	"github.com/finova/savings-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GoalID string

// =============================================================================
// STATUS - Lifecycle states
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusDeleted   Status = "deleted"
)

// Terminal reports whether s is a terminal state. Terminal goals are never
// re-evaluated and their notification flags are never touched again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusDeleted
}

// =============================================================================
// NOTIFICATION FLAGS - One-shot gates, one per notification kind
// =============================================================================

// Flag identifies one of the per-goal notification gates. The flag records
// "have we attempted", not "did the send succeed": a permanently failing
// mailbox must not cause repeated attempts every cycle.
type Flag string

const (
	// FlagReminder gates the 30-days-remaining reminder.
	FlagReminder Flag = "notified_30_days"

	// FlagClosed gates the completion/expiration notification.
	FlagClosed Flag = "closed_notified"
)

// =============================================================================
// RETIREMENT ORDER - Which pending goal is advanced first
// =============================================================================

type Order string

const (
	// ByAge processes the single oldest pending goal (createdAt asc).
	ByAge Order = "age"

	// ByPriority processes by (priority asc, createdAt asc). This is the
	// canonical ordering: priority is a first-class, user-set field.
	ByPriority Order = "priority"
)

// =============================================================================
// GOAL
// =============================================================================

type Goal struct {
	ID           GoalID
	UserID       ledger.UserID
	Name         string
	TargetAmount decimal.Decimal
	TargetDate   time.Time
	Priority     int
	Status       Status

	Notified30Days bool
	ClosedNotified bool

	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Validation errors, rejected synchronously at the API boundary.
var (
	ErrMissingName        = errors.New("goal name is required")
	ErrTargetNotPositive  = errors.New("goal target amount must be positive")
	ErrMissingTargetDate  = errors.New("goal target date is required")
	ErrInvalidPriority    = errors.New("priority must be a positive integer")
	ErrPriorityOutOfRange = errors.New("priority exceeds pending goal count")
)

// Validate checks creation-time invariants. Priority density against the
// user's existing goals is enforced by the store, inside the same atomic
// unit as the insert.
func (g Goal) Validate() error {
	if g.Name == "" {
		return ErrMissingName
	}
	if !g.TargetAmount.IsPositive() {
		return ErrTargetNotPositive
	}
	if g.TargetDate.IsZero() {
		return ErrMissingTargetDate
	}
	if g.Priority < 1 {
		return ErrInvalidPriority
	}
	return nil
}

// DaysRemaining returns ceil((targetDate - now) / 1 day). Past deadlines
// yield zero or negative values.
func (g Goal) DaysRemaining(now time.Time) int {
	remaining := g.TargetDate.Sub(now)
	days := remaining / (24 * time.Hour)
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}

// Progress returns currentAmount/targetAmount as a percentage, rounded to
// two decimal places for display.
func (g Goal) Progress(currentAmount decimal.Decimal) decimal.Decimal {
	return currentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2)
}
