/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates a user, ledger
	transactions, and goals that demonstrate specific engine behavior.

AVAILABLE SCENARIOS:

	steady-saver:     Goals funded by savings transactions, one achieved
	deadline-pressure: Goal due within 30 days (reminder path)
	expired-goal:     Goal past its deadline, unmet (expiration path)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "steady-saver"}

NOTE:

	Scenarios add data; they do not wipe the store. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario handlers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-saver",
		Name:        "Steady Saver",
		Description: "Savings transactions outpacing one goal; next sweep retires it as completed",
	},
	{
		ID:          "deadline-pressure",
		Name:        "Deadline Pressure",
		Description: "Goal due in 10 days at 40% progress; next sweep fires the reminder",
	},
	{
		ID:          "expired-goal",
		Name:        "Expired Goal",
		Description: "Goal past its deadline and unmet; next sweep expires it",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario populates the store with one scenario's data.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var userID ledger.UserID
	var err error

	switch req.ScenarioID {
	case "steady-saver":
		userID, err = h.loadSteadySaver(ctx)
	case "deadline-pressure":
		userID, err = h.loadDeadlinePressure(ctx)
	case "expired-goal":
		userID, err = h.loadExpiredGoal(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.balances.Delete(string(userID))
	writeJSON(w, http.StatusOK, map[string]string{
		"scenario": req.ScenarioID,
		"user_id":  string(userID),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedUser(ctx context.Context, name, email string) (ledger.UserID, error) {
	u := ledger.User{
		ID:        ledger.UserID(uuid.NewString()),
		Name:      name,
		Email:     email,
		CreatedAt: h.Clock.Now(),
	}
	return u.ID, h.Users.SaveUser(ctx, u)
}

func (h *Handler) seedTransaction(ctx context.Context, userID ledger.UserID, desc string, amount int64, txType ledger.TransactionType, daysAgo int) error {
	return h.Transactions.Append(ctx, ledger.Transaction{
		ID:          ledger.TransactionID(uuid.NewString()),
		UserID:      userID,
		Description: desc,
		Amount:      decimal.NewFromInt(amount),
		Type:        txType,
		Category:    "demo",
		OccurredAt:  h.Clock.Now().AddDate(0, 0, -daysAgo),
	})
}

func (h *Handler) seedGoal(ctx context.Context, userID ledger.UserID, name string, target int64, dueInDays, priority int) error {
	return h.Goals.Create(ctx, goals.Goal{
		ID:           goals.GoalID(uuid.NewString()),
		UserID:       userID,
		Name:         name,
		TargetAmount: decimal.NewFromInt(target),
		TargetDate:   h.Clock.Now().AddDate(0, 0, dueInDays),
		Priority:     priority,
		Status:       goals.StatusPending,
		CreatedAt:    h.Clock.Now(),
	})
}

// loadSteadySaver: monthly savings already past the first goal's target.
func (h *Handler) loadSteadySaver(ctx context.Context) (ledger.UserID, error) {
	userID, err := h.seedUser(ctx, "Alice Martin", "alice@example.com")
	if err != nil {
		return "", err
	}

	for i, months := 0, 6; i < months; i++ {
		if err := h.seedTransaction(ctx, userID, "Monthly savings", 250, ledger.TypeSavings, 30*i); err != nil {
			return "", err
		}
	}

	if err := h.seedGoal(ctx, userID, "Emergency fund", 1000, 120, 1); err != nil {
		return "", err
	}
	if err := h.seedGoal(ctx, userID, "New laptop", 2500, 240, 2); err != nil {
		return "", err
	}
	return userID, nil
}

// loadDeadlinePressure: goal inside the 30-day reminder window, unmet.
func (h *Handler) loadDeadlinePressure(ctx context.Context) (ledger.UserID, error) {
	userID, err := h.seedUser(ctx, "Bruno Keller", "bruno@example.com")
	if err != nil {
		return "", err
	}

	if err := h.seedTransaction(ctx, userID, "Paycheck", 2000, ledger.TypeIncome, 20); err != nil {
		return "", err
	}
	if err := h.seedTransaction(ctx, userID, "Rent", 1200, ledger.TypeExpense, 15); err != nil {
		return "", err
	}

	// Balance 800 against a 2000 target due in 10 days.
	if err := h.seedGoal(ctx, userID, "Summer trip", 2000, 10, 1); err != nil {
		return "", err
	}
	return userID, nil
}

// loadExpiredGoal: deadline a week in the past, balance short of target.
func (h *Handler) loadExpiredGoal(ctx context.Context) (ledger.UserID, error) {
	userID, err := h.seedUser(ctx, "Chloe Dubois", "chloe@example.com")
	if err != nil {
		return "", err
	}

	if err := h.seedTransaction(ctx, userID, "Side gig", 400, ledger.TypeSavings, 60); err != nil {
		return "", err
	}

	g := goals.Goal{
		ID:           goals.GoalID(uuid.NewString()),
		UserID:       userID,
		Name:         "Concert tickets",
		TargetAmount: decimal.NewFromInt(1000),
		TargetDate:   h.Clock.Now().AddDate(0, 0, -7),
		Priority:     1,
		Status:       goals.StatusPending,
		CreatedAt:    h.Clock.Now().AddDate(0, 0, -90),
	}
	if err := h.Goals.Create(ctx, g); err != nil {
		return "", err
	}
	return userID, nil
}
