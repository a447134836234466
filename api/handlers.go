/*
handlers.go - HTTP API handlers for the savings-goal engine

PURPOSE:
  Exposes the goal engine and ledger via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Goals:
    POST   /api/goals                   Create goal (priority-shift insert)
    GET    /api/goals                   Pending goals + projected amount
    GET    /api/goals/current-savings   Derived balance
    GET    /api/goals/check-oldest      On-demand retirement (same engine path)
    DELETE /api/goals/{id}              Soft delete

  Transactions:
    POST   /api/transactions            Add transaction (optional recurrence)
    GET    /api/transactions            List user transactions
    PUT    /api/transactions/{id}/stop  Stop a recurring series

  Stats:
    GET    /api/stats/summary           Per-type ledger totals

  Users:
    POST   /api/users                   Register user
    GET    /api/users/{id}              Get user

  Admin:
    POST   /api/admin/sweep             Trigger full sweep, return report

IDENTITY:
  The caller's user ID comes from the X-User-ID header. Authentication
  is out of scope here; the web tier in front of this service owns it.

BALANCE CACHE:
  Derived-balance reads go through a short-TTL keyed cache (go-cache),
  invalidated on every transaction write. The projection stays the
  ground truth; the cache only bounds recomputation under bursts of
  goal listings.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing user identity
  - 404: Resource not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Periodic trigger of the same engine paths
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Goals        goals.Store
	Transactions ledger.TransactionStore
	Users        ledger.UserStore
	Engine       *goals.Engine
	Aggregator   *ledger.Aggregator
	Clock        goals.Clock

	// balances caches the derived balance per user for a few seconds.
	balances *cache.Cache
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(gs goals.Store, txs ledger.TransactionStore, users ledger.UserStore,
	engine *goals.Engine, aggregator *ledger.Aggregator, clock goals.Clock) *Handler {
	if clock == nil {
		clock = goals.SystemClock()
	}
	return &Handler{
		Goals:        gs,
		Transactions: txs,
		Users:        users,
		Engine:       engine,
		Aggregator:   aggregator,
		Clock:        clock,
		balances:     cache.New(30*time.Second, time.Minute),
	}
}

// userFrom extracts the caller's identity. Empty means unauthenticated.
func userFrom(r *http.Request) ledger.UserID {
	return ledger.UserID(r.Header.Get("X-User-ID"))
}

// currentBalance reads the derived balance through the TTL cache.
func (h *Handler) currentBalance(r *http.Request, userID ledger.UserID) (decimal.Decimal, error) {
	if cached, ok := h.balances.Get(string(userID)); ok {
		return cached.(decimal.Decimal), nil
	}
	balance, err := h.Aggregator.CurrentBalance(r.Context(), userID)
	if err != nil {
		return decimal.Zero, err
	}
	h.balances.SetDefault(string(userID), balance)
	return balance, nil
}

// =============================================================================
// GOAL HANDLERS
// =============================================================================

// CreateGoal creates a new savings goal, shifting existing priorities.
// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}

	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	target, err := decimal.NewFromString(req.TargetAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_amount", err)
		return
	}
	targetDate, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date format (use YYYY-MM-DD)", err)
		return
	}

	g := goals.Goal{
		ID:           goals.GoalID(uuid.NewString()),
		UserID:       userID,
		Name:         req.Name,
		TargetAmount: target,
		TargetDate:   targetDate,
		Priority:     req.Priority,
		Status:       goals.StatusPending,
		CreatedAt:    h.Clock.Now(),
	}
	if err := g.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid goal", err)
		return
	}

	if err := h.Goals.Create(r.Context(), g); err != nil {
		if goals.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid goal", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create goal", err)
		return
	}

	balance, err := h.currentBalance(r, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive balance", err)
		return
	}

	writeJSON(w, http.StatusCreated, toGoalDTO(g, balance))
}

// ListGoals returns the caller's pending goals with the projected amount.
// ?status=all includes retired and deleted goals (history view).
// GET /api/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}

	var (
		listed []goals.Goal
		err    error
	)
	if r.URL.Query().Get("status") == "all" {
		listed, err = h.Goals.ListAll(r.Context(), userID)
	} else {
		listed, err = h.Goals.ListPending(r.Context(), userID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list goals", err)
		return
	}

	balance, err := h.currentBalance(r, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive balance", err)
		return
	}

	dtos := make([]GoalDTO, len(listed))
	for i, g := range listed {
		dtos[i] = toGoalDTO(g, balance)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CurrentSavings returns the derived balance for the caller.
// GET /api/goals/current-savings
func (h *Handler) CurrentSavings(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}

	balance, err := h.currentBalance(r, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive balance", err)
		return
	}
	writeJSON(w, http.StatusOK, CurrentSavingsDTO{CurrentSavings: balance.StringFixed(2)})
}

// CheckOldest runs the single-goal retirement step scoped to the caller.
// Shares the engine code path with the scheduler so notification
// idempotency can't diverge between the two.
// GET /api/goals/check-oldest
func (h *Handler) CheckOldest(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}

	outcome, err := h.Engine.RetireNext(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process goal", err)
		return
	}

	resp := CheckOldestResponse{Processed: outcome.Processed}
	if outcome.Processed {
		resp.Status = string(outcome.Status)
		balance, err := h.currentBalance(r, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to derive balance", err)
			return
		}
		dto := toGoalDTO(*outcome.Goal, balance)
		resp.Goal = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteGoal soft-deletes a pending goal owned by the caller.
// DELETE /api/goals/{id}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}
	id := goals.GoalID(chi.URLParam(r, "id"))

	ok, err := h.Goals.SoftDelete(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete goal", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Goal not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Goal marked as deleted"})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction adds a ledger transaction, optionally heading a
// recurring series.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	occurredAt := h.Clock.Now()
	if req.OccurredAt != "" {
		occurredAt, err = time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid occurred_at format (use RFC3339)", err)
			return
		}
	}

	tx := ledger.Transaction{
		ID:          ledger.TransactionID(uuid.NewString()),
		UserID:      userID,
		Description: req.Description,
		Amount:      amount,
		Type:        ledger.TransactionType(req.Type),
		Category:    req.Category,
		OccurredAt:  occurredAt,
	}
	if req.IsRecurring {
		tx.Recurrence = ledger.NewRecurrence(ledger.Interval(req.Interval), occurredAt)
	}
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	if err := h.Transactions.Append(r.Context(), tx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add transaction", err)
		return
	}

	// The derived balance just changed.
	h.balances.Delete(string(userID))

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ListTransactions returns the caller's transactions.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}

	txs, err := h.Transactions.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// StopRecurring deactivates a recurring series owned by the caller.
// PUT /api/transactions/{id}/stop
func (h *Handler) StopRecurring(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	ok, err := h.Transactions.StopRecurring(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to stop recurring transaction", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Recurring transaction not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Recurring transaction stopped"})
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

// Summary returns the caller's per-type ledger totals.
// GET /api/stats/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return
	}

	totals, err := h.Aggregator.Totals(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to aggregate ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		Income:  totals.Income.StringFixed(2),
		Expense: totals.Expense.StringFixed(2),
		Savings: totals.Savings.StringFixed(2),
		Balance: totals.Balance().StringFixed(2),
	})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser registers a user.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required", nil)
		return
	}

	u := ledger.User{
		ID:        ledger.UserID(uuid.NewString()),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: h.Clock.Now(),
	}
	if err := h.Users.SaveUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	})
}

// ListUsers returns all registered users.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = UserDTO{
			ID:        string(u.ID),
			Name:      u.Name,
			Email:     u.Email,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns a single user.
// GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := ledger.UserID(chi.URLParam(r, "id"))

	u, err := h.Users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs one full sweep and returns its report.
// POST /api/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.RunFullSweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepReportDTO{
		Reminded:  report.Reminded,
		Completed: report.Completed,
		Expired:   report.Expired,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		switch {
		case errors.Is(err, goals.ErrPriorityOutOfRange):
			resp.Code = "priority_out_of_range"
		case errors.Is(err, goals.ErrInvalidPriority):
			resp.Code = "invalid_priority"
		case goals.IsNotFound(err):
			resp.Code = "not_found"
		}
	}
	writeJSON(w, status, resp)
}
