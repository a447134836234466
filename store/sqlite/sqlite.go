/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements goals.Store, ledger.TransactionStore and ledger.UserStore
  using SQLite. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

ATOMICITY GUARANTEES (the ones the engine's invariants rest on):
  - Goal creation runs the priority shift and the insert inside one SQL
    transaction; a concurrent reader never observes duplicate priorities
    for a user.
  - ClaimFlag is a single conditional UPDATE ("set flag where flag is
    still false and status is pending"); RowsAffected tells the caller
    whether it won the claim. At-most-one notification per goal per flag
    follows from this alone.
  - UpdateStatus is conditional on status='pending', so every terminal
    transition happens at most once.
  - AdvanceRecurrence appends the spawned transaction and moves NextRun
    in one SQL transaction, conditional on the old NextRun, so a due
    date is never materialized twice.

KEY TABLES:
  users          Ledger owners / notification targets
  transactions   Immutable ledger entries (+ recurrence columns)
  savings_goals  Goal records; currentAmount is never stored

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/finova.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - goals/store.go, ledger/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The engine issues overlapping reads and conditional writes; a single
	// connection sidesteps SQLITE_BUSY on the write path.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger owners / notification targets
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Immutable ledger entries. Amounts stored as decimal strings.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		category TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		recur_interval TEXT,
		recur_next_run TEXT,
		recur_active BOOLEAN
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_due
		ON transactions(recur_next_run) WHERE recur_active = 1;

	-- Goals. current_amount is intentionally absent: it is a read-time
	-- projection of the owner's ledger.
	CREATE TABLE IF NOT EXISTS savings_goals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		target_date TEXT NOT NULL,
		priority INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		notified_30_days BOOLEAN NOT NULL DEFAULT 0,
		closed_notified BOOLEAN NOT NULL DEFAULT 0,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_user_status
		ON savings_goals(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_goals_pending_priority
		ON savings_goals(priority, created_at) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_goals_pending_age
		ON savings_goals(created_at) WHERE status = 'pending';
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GOAL STORE (goals.Store interface)
// =============================================================================

// Create shifts priorities and inserts inside one SQL transaction.
func (s *Store) Create(ctx context.Context, g goals.Goal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin goal create: %w", err)
	}
	defer tx.Rollback()

	var pendingCount int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM savings_goals WHERE user_id = ? AND status = 'pending'`,
		g.UserID,
	).Scan(&pendingCount)
	if err != nil {
		return fmt.Errorf("failed to count pending goals: %w", err)
	}
	if g.Priority > pendingCount+1 {
		return goals.ErrPriorityOutOfRange
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE savings_goals SET priority = priority + 1
		 WHERE user_id = ? AND status = 'pending' AND priority >= ?`,
		g.UserID, g.Priority,
	)
	if err != nil {
		return fmt.Errorf("failed to shift priorities: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO savings_goals
		 (id, user_id, name, target_amount, target_date, priority, status,
		  notified_30_days, closed_notified, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		g.ID, g.UserID, g.Name,
		g.TargetAmount.String(),
		g.TargetDate.UTC().Format(time.RFC3339),
		g.Priority, string(g.Status),
		g.Notified30Days, g.ClosedNotified,
		g.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}

	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, id goals.GoalID) (*goals.Goal, error) {
	row := s.db.QueryRowContext(ctx, selectGoal+` WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, goals.ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return g, nil
}

func (s *Store) ListPending(ctx context.Context, userID ledger.UserID) ([]goals.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		selectGoal+` WHERE user_id = ? AND status = 'pending' ORDER BY priority ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

func (s *Store) ListAll(ctx context.Context, userID ledger.UserID) ([]goals.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		selectGoal+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

func (s *Store) AllPending(ctx context.Context) ([]goals.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		selectGoal+` WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list all pending goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

func (s *Store) NextPending(ctx context.Context, order goals.Order, userID ledger.UserID) (*goals.Goal, error) {
	orderBy := `created_at ASC`
	if order == goals.ByPriority {
		orderBy = `priority ASC, created_at ASC`
	}

	query := selectGoal + ` WHERE status = 'pending'`
	args := []any{}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY ` + orderBy + ` LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next pending goal: %w", err)
	}
	return g, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id goals.GoalID, status goals.Status, completedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE savings_goals SET status = ?, completed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(status), completedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update goal status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ClaimFlag(ctx context.Context, id goals.GoalID, flag goals.Flag) (bool, error) {
	var column string
	switch flag {
	case goals.FlagReminder:
		column = "notified_30_days"
	case goals.FlagClosed:
		column = "closed_notified"
	default:
		return false, goals.ErrInvalidFlag
	}

	// Single conditional UPDATE: the sole gate for at-most-once delivery.
	res, err := s.db.ExecContext(ctx,
		`UPDATE savings_goals SET `+column+` = 1
		 WHERE id = ? AND `+column+` = 0 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim %s flag: %w", flag, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) SoftDelete(ctx context.Context, userID ledger.UserID, id goals.GoalID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE savings_goals SET status = 'deleted'
		 WHERE id = ? AND user_id = ? AND status = 'pending'`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to soft delete goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const selectGoal = `
	SELECT id, user_id, name, target_amount, target_date, priority, status,
	       notified_30_days, closed_notified, completed_at, created_at
	FROM savings_goals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*goals.Goal, error) {
	var (
		g           goals.Goal
		target      string
		targetDate  string
		createdAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &target, &targetDate, &g.Priority,
		&g.Status, &g.Notified30Days, &g.ClosedNotified, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return nil, fmt.Errorf("corrupt target_amount %q: %w", target, err)
	}
	if g.TargetDate, err = time.Parse(time.RFC3339, targetDate); err != nil {
		return nil, fmt.Errorf("corrupt target_date %q: %w", targetDate, err)
	}
	if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", createdAt, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt completed_at %q: %w", completedAt.String, err)
		}
		g.CompletedAt = &t
	}
	return &g, nil
}

func scanGoals(rows *sql.Rows) ([]goals.Goal, error) {
	var out []goals.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTION STORE (ledger.TransactionStore interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, tx ledger.Transaction) error {
	return s.appendTx(ctx, s.db, tx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) appendTx(ctx context.Context, db execer, tx ledger.Transaction) error {
	var interval, nextRun sql.NullString
	var active sql.NullBool
	if tx.Recurrence != nil {
		interval = sql.NullString{String: string(tx.Recurrence.Interval), Valid: true}
		active = sql.NullBool{Bool: tx.Recurrence.Active, Valid: true}
		if !tx.Recurrence.NextRun.IsZero() {
			nextRun = sql.NullString{String: tx.Recurrence.NextRun.UTC().Format(time.RFC3339), Valid: true}
		}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, user_id, description, amount, tx_type, category, occurred_at,
		  recur_interval, recur_next_run, recur_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Description,
		tx.Amount.String(), string(tx.Type), tx.Category,
		tx.OccurredAt.UTC().Format(time.RFC3339),
		interval, nextRun, active,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID ledger.UserID) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE user_id = ? ORDER BY occurred_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) ListDueRecurring(ctx context.Context, now time.Time) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE recur_active = 1 AND recur_next_run <= ? ORDER BY occurred_at ASC`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due recurring transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) StopRecurring(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET recur_active = 0, recur_next_run = NULL
		 WHERE id = ? AND user_id = ? AND recur_interval IS NOT NULL`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to stop recurring transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AdvanceRecurrence appends spawn and moves NextRun in one SQL transaction.
// The UPDATE is conditional on the series still being due, so a concurrent
// run cannot materialize the same occurrence twice.
func (s *Store) AdvanceRecurrence(ctx context.Context, id ledger.TransactionID, next time.Time, spawn ledger.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin recurrence advance: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET recur_next_run = ?
		 WHERE id = ? AND recur_active = 1 AND recur_next_run < ?`,
		next.UTC().Format(time.RFC3339), id, next.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to advance recurrence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrSeriesNotFound
	}

	if err := s.appendTx(ctx, tx, spawn); err != nil {
		return err
	}
	return tx.Commit()
}

const selectTransaction = `
	SELECT id, user_id, description, amount, tx_type, category, occurred_at,
	       recur_interval, recur_next_run, recur_active
	FROM transactions`

func scanTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for rows.Next() {
		var (
			tx         ledger.Transaction
			amount     string
			occurredAt string
			interval   sql.NullString
			nextRun    sql.NullString
			active     sql.NullBool
		)
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Description, &amount, &tx.Type,
			&tx.Category, &occurredAt, &interval, &nextRun, &active)
		if err != nil {
			return nil, err
		}

		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		if tx.OccurredAt, err = time.Parse(time.RFC3339, occurredAt); err != nil {
			return nil, fmt.Errorf("corrupt occurred_at %q: %w", occurredAt, err)
		}

		if interval.Valid {
			rec := &ledger.Recurrence{
				Interval: ledger.Interval(interval.String),
				Active:   active.Valid && active.Bool,
			}
			if nextRun.Valid {
				if rec.NextRun, err = time.Parse(time.RFC3339, nextRun.String); err != nil {
					return nil, fmt.Errorf("corrupt recur_next_run %q: %w", nextRun.String, err)
				}
			}
			tx.Recurrence = rec
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// =============================================================================
// USER STORE (ledger.UserStore interface)
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u ledger.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		u.ID, u.Name, u.Email, u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	var (
		u         ledger.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", createdAt, err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []ledger.User
	for rows.Next() {
		var (
			u         ledger.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &createdAt); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt created_at %q: %w", createdAt, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
