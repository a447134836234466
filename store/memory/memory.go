// Package memory provides in-memory store implementations (for testing/dev).
//
// The same atomicity guarantees the SQLite store gets from transactions and
// conditional UPDATEs are provided here by a per-store mutex: priority
// shift + insert happen under one lock, and flag claims / status updates
// are read-modify-write under the same lock.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
)

// =============================================================================
// GOAL STORE
// =============================================================================

type Goals struct {
	mu    sync.RWMutex
	goals map[goals.GoalID]*goals.Goal
}

func NewGoals() *Goals {
	return &Goals{goals: make(map[goals.GoalID]*goals.Goal)}
}

// Create shifts the user's goals with priority >= g.Priority up by one and
// inserts, all under one lock.
func (s *Goals) Create(_ context.Context, g goals.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pendingCount := 0
	for _, existing := range s.goals {
		if existing.UserID == g.UserID && existing.Status == goals.StatusPending {
			pendingCount++
		}
	}
	if g.Priority > pendingCount+1 {
		return goals.ErrPriorityOutOfRange
	}

	for _, existing := range s.goals {
		if existing.UserID == g.UserID && existing.Status == goals.StatusPending && existing.Priority >= g.Priority {
			existing.Priority++
		}
	}

	stored := g
	s.goals[g.ID] = &stored
	return nil
}

func (s *Goals) Get(_ context.Context, id goals.GoalID) (*goals.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok {
		return nil, goals.ErrGoalNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *Goals) ListPending(_ context.Context, userID ledger.UserID) ([]goals.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []goals.Goal
	for _, g := range s.goals {
		if g.UserID == userID && g.Status == goals.StatusPending {
			out = append(out, *g)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (s *Goals) ListAll(_ context.Context, userID ledger.UserID) ([]goals.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []goals.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Goals) AllPending(_ context.Context) ([]goals.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []goals.Goal
	for _, g := range s.goals {
		if g.Status == goals.StatusPending {
			out = append(out, *g)
		}
	}
	// Stable iteration order keeps sweeps deterministic in tests.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Goals) NextPending(_ context.Context, order goals.Order, userID ledger.UserID) (*goals.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []goals.Goal
	for _, g := range s.goals {
		if g.Status != goals.StatusPending {
			continue
		}
		if userID != "" && g.UserID != userID {
			continue
		}
		candidates = append(candidates, *g)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	switch order {
	case goals.ByPriority:
		sortByPriority(candidates)
	default:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		})
	}
	next := candidates[0]
	return &next, nil
}

func (s *Goals) UpdateStatus(_ context.Context, id goals.GoalID, status goals.Status, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[id]
	if !ok {
		return false, goals.ErrGoalNotFound
	}
	if g.Status != goals.StatusPending {
		return false, nil
	}
	g.Status = status
	at := completedAt
	g.CompletedAt = &at
	return true, nil
}

func (s *Goals) ClaimFlag(_ context.Context, id goals.GoalID, flag goals.Flag) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[id]
	if !ok {
		return false, goals.ErrGoalNotFound
	}
	if g.Status != goals.StatusPending {
		return false, nil
	}

	switch flag {
	case goals.FlagReminder:
		if g.Notified30Days {
			return false, nil
		}
		g.Notified30Days = true
	case goals.FlagClosed:
		if g.ClosedNotified {
			return false, nil
		}
		g.ClosedNotified = true
	default:
		return false, goals.ErrInvalidFlag
	}
	return true, nil
}

func (s *Goals) SoftDelete(_ context.Context, userID ledger.UserID, id goals.GoalID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return false, nil
	}
	if g.Status != goals.StatusPending {
		return false, nil
	}
	g.Status = goals.StatusDeleted
	return true, nil
}

func sortByPriority(gs []goals.Goal) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].Priority != gs[j].Priority {
			return gs[i].Priority < gs[j].Priority
		}
		return gs[i].CreatedAt.Before(gs[j].CreatedAt)
	})
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type Transactions struct {
	mu  sync.RWMutex
	txs map[ledger.TransactionID]*ledger.Transaction
}

func NewTransactions() *Transactions {
	return &Transactions{txs: make(map[ledger.TransactionID]*ledger.Transaction)}
}

func (s *Transactions) Append(_ context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := tx
	if tx.Recurrence != nil {
		rec := *tx.Recurrence
		stored.Recurrence = &rec
	}
	s.txs[tx.ID] = &stored
	return nil
}

func (s *Transactions) ListByUser(_ context.Context, userID ledger.UserID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *Transactions) ListDueRecurring(_ context.Context, now time.Time) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Transaction
	for _, tx := range s.txs {
		if tx.IsRecurring() && !tx.Recurrence.NextRun.After(now) {
			copied := *tx
			rec := *tx.Recurrence
			copied.Recurrence = &rec
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *Transactions) StopRecurring(_ context.Context, userID ledger.UserID, id ledger.TransactionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok || tx.UserID != userID || tx.Recurrence == nil {
		return false, nil
	}
	tx.Recurrence.Active = false
	tx.Recurrence.NextRun = time.Time{}
	return true, nil
}

func (s *Transactions) AdvanceRecurrence(_ context.Context, id ledger.TransactionID, next time.Time, spawn ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seed, ok := s.txs[id]
	if !ok || seed.Recurrence == nil {
		return ledger.ErrSeriesNotFound
	}
	seed.Recurrence.NextRun = next
	stored := spawn
	s.txs[spawn.ID] = &stored
	return nil
}

// =============================================================================
// USER STORE
// =============================================================================

type Users struct {
	mu    sync.RWMutex
	users map[ledger.UserID]*ledger.User
}

func NewUsers() *Users {
	return &Users{users: make(map[ledger.UserID]*ledger.User)}
}

func (s *Users) SaveUser(_ context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := u
	s.users[u.ID] = &stored
	return nil
}

func (s *Users) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (s *Users) ListUsers(_ context.Context) ([]ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
