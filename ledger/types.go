/*
Package ledger provides the transaction ledger and derived-balance logic.

PURPOSE:
  This package contains the types and algorithms for a user's money ledger:
  immutable transactions (income, expense, savings), recurring-series
  scheduling, and the aggregation rule that derives the current savings
  balance consumed by the goal engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: An immutable ledger entry with a decimal amount
  - Recurrence: Schedule attached to a recurring transaction series
  - User: Owner of a ledger, target of goal notifications
  - Typed IDs: UserID/TransactionID prevent mixing identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never edited after creation; the only
     permitted mutation is stopping a recurring series
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Derivation: The savings balance is computed, never stored

SEE ALSO:
  - aggregator.go: Balance derivation from transactions
  - replicator.go: Materialization of recurring series
  - store.go: Persistence interfaces
*/
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string

// =============================================================================
// USER - Ledger owner and notification target
// =============================================================================

// User is the owner of a ledger. Authentication and credentials live in the
// web tier; this package only needs an identity and a mailbox.
type User struct {
	ID        UserID
	Name      string
	Email     string
	CreatedAt time.Time
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
	TypeSavings TransactionType = "savings"
)

// ValidTransactionType reports whether t is one of the three ledger types.
func ValidTransactionType(t TransactionType) bool {
	return t == TypeIncome || t == TypeExpense || t == TypeSavings
}

type Transaction struct {
	ID          TransactionID
	UserID      UserID
	Description string
	Amount      decimal.Decimal
	Type        TransactionType
	Category    string
	OccurredAt  time.Time

	// Recurrence is nil for one-off transactions.
	Recurrence *Recurrence
}

// IsRecurring reports whether this transaction heads an active recurring series.
func (t Transaction) IsRecurring() bool {
	return t.Recurrence != nil && t.Recurrence.Active
}

// Validation errors for transaction creation. Amount validation happens here,
// at the boundary: the Aggregator assumes positive amounts and only sums.
var (
	ErrAmountNotPositive      = errors.New("transaction amount must be positive")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidInterval        = errors.New("invalid recurrence interval")
	ErrMissingDescription     = errors.New("transaction description is required")
	ErrMissingCategory        = errors.New("transaction category is required")
)

// ErrSeriesNotFound is returned when a recurrence operation references a
// transaction that doesn't exist or isn't a recurring series.
var ErrSeriesNotFound = errors.New("recurring series not found")

// Validate checks the invariants enforced at creation time.
func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if !ValidTransactionType(t.Type) {
		return ErrInvalidTransactionType
	}
	if t.Description == "" {
		return ErrMissingDescription
	}
	if t.Category == "" {
		return ErrMissingCategory
	}
	if t.Recurrence != nil && !ValidInterval(t.Recurrence.Interval) {
		return ErrInvalidInterval
	}
	return nil
}

// =============================================================================
// RECURRENCE - Schedule for a recurring transaction series
// =============================================================================

type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

func ValidInterval(i Interval) bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	}
	return false
}

// Advance returns the next occurrence after t for this interval.
func (i Interval) Advance(t time.Time) time.Time {
	switch i {
	case IntervalDaily:
		return t.AddDate(0, 0, 1)
	case IntervalWeekly:
		return t.AddDate(0, 0, 7)
	case IntervalMonthly:
		return t.AddDate(0, 1, 0)
	case IntervalYearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}

type Recurrence struct {
	Interval Interval
	NextRun  time.Time
	Active   bool
}

// NewRecurrence builds the schedule for a series starting at occurredAt.
// The first materialized run is one interval after the seed transaction.
func NewRecurrence(interval Interval, occurredAt time.Time) *Recurrence {
	return &Recurrence{
		Interval: interval,
		NextRun:  interval.Advance(occurredAt),
		Active:   true,
	}
}
