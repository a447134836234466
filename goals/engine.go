/*
engine.go - Goal lifecycle state machine

PURPOSE:
  Evaluates goals against achievement/expiration conditions and drives
  the two independent sub-processes:

  1. Single-goal retirement (RetireNext): advances at most ONE pending
     goal per call into completed/expired. The one-per-tick throttle is
     deliberate - it bounds notification volume and database writes per
     scheduler cycle. The interactive check-oldest endpoint runs the
     exact same code path scoped to one user.

  2. Full sweep (RunFullSweep): evaluates every pending goal, fires the
     30-day reminder and the completion/expiration notification at most
     once each, gated solely by the per-goal flags.

IDEMPOTENCY:
  Both paths claim a flag (conditional set-if-false) BEFORE sending.
  Running them out of order or concurrently cannot double-notify: only
  the claimant that flipped the flag sends. A failed send does not
  release the flag - the flag records "attempted", which keeps a
  permanently failing mailbox from triggering a retry storm. The cost is
  a possibly missed notification on transient failure; accepted given
  the stakes (reminder emails).

EVALUATION:
  achieved: currentAmount >= targetAmount
  expired:  now after targetDate and not achieved
  Achievement takes precedence when both hold simultaneously.
  currentAmount is the ledger-derived balance, identical for all of a
  user's goals at any instant.

SEE ALSO:
  - ledger/aggregator.go: Balance derivation
  - notify/dispatcher.go: Fire-and-forget notification transport
  - api/scheduler.go: Periodic trigger
*/
package goals

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/finova/savings-engine/ledger"
	"github.com/finova/savings-engine/notify"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives goal state transitions.
type Engine struct {
	store      Store
	users      ledger.UserStore
	aggregator *ledger.Aggregator
	dispatcher notify.Dispatcher
	clock      Clock

	// order decides which pending goal RetireNext advances first.
	// ByPriority is canonical; ByAge is the legacy strict-FIFO mode.
	order Order
}

func NewEngine(store Store, users ledger.UserStore, aggregator *ledger.Aggregator, dispatcher notify.Dispatcher, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{
		store:      store,
		users:      users,
		aggregator: aggregator,
		dispatcher: dispatcher,
		clock:      clock,
		order:      ByPriority,
	}
}

// WithOrder overrides the retirement ordering. Intended for configuration
// at startup, not for switching at runtime.
func (e *Engine) WithOrder(order Order) *Engine {
	e.order = order
	return e
}

// =============================================================================
// EVALUATION - Shared by both sub-processes
// =============================================================================

type verdict int

const (
	verdictNone verdict = iota
	verdictAchieved
	verdictExpired
)

// evaluate decides a pending goal's fate. Achievement wins when both
// conditions hold.
func evaluate(g Goal, currentAmount decimal.Decimal, now time.Time) verdict {
	if currentAmount.GreaterThanOrEqual(g.TargetAmount) {
		return verdictAchieved
	}
	if now.After(g.TargetDate) {
		return verdictExpired
	}
	return verdictNone
}

// =============================================================================
// SINGLE-GOAL RETIREMENT
// =============================================================================

// Outcome reports what RetireNext did.
type Outcome struct {
	Processed bool
	Status    Status
	Goal      *Goal
}

// RetireNext advances at most one pending goal into a terminal state.
// An empty userID scans globally (the scheduler path); a non-empty one
// scopes to that user (the interactive check-oldest path). Both share
// this implementation so the notification guarantees cannot diverge.
func (e *Engine) RetireNext(ctx context.Context, userID ledger.UserID) (Outcome, error) {
	g, err := e.store.NextPending(ctx, e.order, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to find next pending goal: %w", err)
	}
	if g == nil {
		return Outcome{Processed: false}, nil
	}

	now := e.clock.Now()
	balance, err := e.aggregator.CurrentBalance(ctx, g.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to derive balance for %s: %w", g.UserID, err)
	}

	v := evaluate(*g, balance, now)
	if v == verdictNone {
		return Outcome{Processed: false}, nil
	}

	status := StatusCompleted
	if v == verdictExpired {
		status = StatusExpired
	}

	// Claim the closed flag while the goal is still pending, then take the
	// terminal transition. The flag is the sole notification gate: if a
	// concurrent sweep already claimed it, we transition silently.
	claimed, err := e.store.ClaimFlag(ctx, g.ID, FlagClosed)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to claim closed flag for %s: %w", g.ID, err)
	}

	won, err := e.store.UpdateStatus(ctx, g.ID, status, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to update status for %s: %w", g.ID, err)
	}
	if !won {
		// Another invocation retired it between our read and write.
		log.Printf("[Engine] %v", &DoubleTransitionError{GoalID: g.ID, From: g.Status, To: status, At: now})
		return Outcome{Processed: false}, nil
	}

	if claimed {
		e.sendClosed(ctx, *g, v)
	}

	retired := *g
	retired.Status = status
	retired.ClosedNotified = true
	retired.CompletedAt = &now

	log.Printf("[Engine] Retired goal %q (%s): %s", g.Name, g.ID, status)
	return Outcome{Processed: true, Status: status, Goal: &retired}, nil
}

// =============================================================================
// FULL SWEEP
// =============================================================================

// SweepReport counts notifications dispatched by one full sweep.
type SweepReport struct {
	Reminded  int
	Completed int
	Expired   int
}

// RunFullSweep evaluates every pending goal for reminder and closed
// notifications. Flag changes persist regardless of send success. The
// sweep never changes goal status; retirement is RetireNext's job.
func (e *Engine) RunFullSweep(ctx context.Context) (SweepReport, error) {
	pending, err := e.store.AllPending(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list pending goals: %w", err)
	}

	now := e.clock.Now()
	report := SweepReport{}

	// The derived balance is identical across a user's goals; compute it
	// once per user per sweep.
	balances := make(map[ledger.UserID]decimal.Decimal)

	for _, g := range pending {
		balance, ok := balances[g.UserID]
		if !ok {
			balance, err = e.aggregator.CurrentBalance(ctx, g.UserID)
			if err != nil {
				log.Printf("[Engine] Error deriving balance for %s: %v", g.UserID, err)
				continue
			}
			balances[g.UserID] = balance
		}

		user, err := e.users.GetUser(ctx, g.UserID)
		if err != nil || user == nil {
			log.Printf("[Engine] Orphan goal %s: owner %s not found", g.ID, g.UserID)
			continue
		}

		// 30-day reminder.
		daysRemaining := g.DaysRemaining(now)
		if daysRemaining <= 30 && !g.Notified30Days {
			claimed, err := e.store.ClaimFlag(ctx, g.ID, FlagReminder)
			if err != nil {
				log.Printf("[Engine] Error claiming reminder flag for %s: %v", g.ID, err)
			} else if claimed {
				report.Reminded++
				e.send(ctx, *user, notify.Reminder{
					GoalName:      g.Name,
					TargetAmount:  g.TargetAmount,
					TargetDate:    g.TargetDate,
					DaysRemaining: daysRemaining,
					Progress:      g.Progress(balance),
				})
			}
		}

		// Completion/expiration notification. Achievement wins when both
		// conditions hold at once.
		v := evaluate(g, balance, now)
		if v != verdictNone && !g.ClosedNotified {
			claimed, err := e.store.ClaimFlag(ctx, g.ID, FlagClosed)
			if err != nil {
				log.Printf("[Engine] Error claiming closed flag for %s: %v", g.ID, err)
				continue
			}
			if !claimed {
				continue
			}
			if v == verdictAchieved {
				report.Completed++
			} else {
				report.Expired++
			}
			e.sendClosed(ctx, g, v)
		}
	}

	return report, nil
}

// =============================================================================
// NOTIFICATION HELPERS
// =============================================================================

// sendClosed dispatches the completion/expiration notification for a goal
// whose closed flag this caller claimed.
func (e *Engine) sendClosed(ctx context.Context, g Goal, v verdict) {
	user, err := e.users.GetUser(ctx, g.UserID)
	if err != nil || user == nil {
		log.Printf("[Engine] Orphan goal %s: owner %s not found", g.ID, g.UserID)
		return
	}

	var msg notify.Message
	if v == verdictAchieved {
		msg = notify.Achieved{GoalName: g.Name, TargetAmount: g.TargetAmount}
	} else {
		msg = notify.Expired{GoalName: g.Name, TargetAmount: g.TargetAmount, TargetDate: g.TargetDate}
	}
	e.send(ctx, *user, msg)
}

// send hands a message to the dispatcher. Failure is logged, never
// retried; the claimed flag already recorded the attempt.
func (e *Engine) send(ctx context.Context, user ledger.User, msg notify.Message) {
	to := notify.Recipient{Name: user.Name, Email: user.Email}
	if err := e.dispatcher.Notify(ctx, to, msg); err != nil {
		log.Printf("[Engine] Error sending %s notification to %s: %v", msg.Kind(), user.Email, err)
	}
}
