/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and domain types, not in DTOs. DTOs are
  pure data carriers. Amounts cross the wire as decimal strings so no
  float rounding sneaks in at the boundary.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to register a user.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// GoalDTO represents a savings goal in API responses. CurrentAmount is the
// ledger-derived projection, filled in at read time.
type GoalDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	TargetAmount   string `json:"target_amount"`
	CurrentAmount  string `json:"current_amount"`
	TargetDate     string `json:"target_date"`
	Priority       int    `json:"priority"`
	Status         string `json:"status"`
	Notified30Days bool   `json:"notified_30_days"`
	ClosedNotified bool   `json:"closed_notified"`
	CompletedAt    string `json:"completed_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// CreateGoalRequest is the request to create a savings goal.
type CreateGoalRequest struct {
	Name         string `json:"name"`
	TargetAmount string `json:"target_amount"`
	TargetDate   string `json:"target_date"` // YYYY-MM-DD
	Priority     int    `json:"priority"`
}

// CheckOldestResponse reports what the on-demand retirement step did.
type CheckOldestResponse struct {
	Processed bool     `json:"processed"`
	Status    string   `json:"status,omitempty"`
	Goal      *GoalDTO `json:"goal,omitempty"`
}

// CurrentSavingsDTO carries the derived balance.
type CurrentSavingsDTO struct {
	CurrentSavings string `json:"current_savings"`
}

// SummaryDTO carries the per-type ledger totals.
type SummaryDTO struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Savings string `json:"savings"`
	Balance string `json:"balance"`
}

// SweepReportDTO reports one full-sweep run.
type SweepReportDTO struct {
	Reminded  int `json:"reminded"`
	Completed int `json:"completed"`
	Expired   int `json:"expired"`
}

// TransactionDTO represents a ledger transaction.
type TransactionDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	OccurredAt  string `json:"occurred_at"`
	IsRecurring bool   `json:"is_recurring"`
	Interval    string `json:"interval,omitempty"`
	NextRun     string `json:"next_run,omitempty"`
}

// CreateTransactionRequest is the request to add a transaction.
type CreateTransactionRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	OccurredAt  string `json:"occurred_at"` // RFC3339; empty = now
	IsRecurring bool   `json:"is_recurring"`
	Interval    string `json:"interval,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toGoalDTO(g goals.Goal, currentAmount decimal.Decimal) GoalDTO {
	dto := GoalDTO{
		ID:             string(g.ID),
		UserID:         string(g.UserID),
		Name:           g.Name,
		TargetAmount:   g.TargetAmount.StringFixed(2),
		CurrentAmount:  currentAmount.StringFixed(2),
		TargetDate:     g.TargetDate.Format("2006-01-02"),
		Priority:       g.Priority,
		Status:         string(g.Status),
		Notified30Days: g.Notified30Days,
		ClosedNotified: g.ClosedNotified,
		CreatedAt:      g.CreatedAt.Format(time.RFC3339),
	}
	if g.CompletedAt != nil {
		dto.CompletedAt = g.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          string(tx.ID),
		UserID:      string(tx.UserID),
		Description: tx.Description,
		Amount:      tx.Amount.StringFixed(2),
		Type:        string(tx.Type),
		Category:    tx.Category,
		OccurredAt:  tx.OccurredAt.Format(time.RFC3339),
	}
	if tx.Recurrence != nil {
		dto.IsRecurring = tx.Recurrence.Active
		dto.Interval = string(tx.Recurrence.Interval)
		if !tx.Recurrence.NextRun.IsZero() {
			dto.NextRun = tx.Recurrence.NextRun.Format(time.RFC3339)
		}
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}
