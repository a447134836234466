/*
scheduler.go - Periodic goal processing

PURPOSE:
  Drives the goal engine on a fixed wall-clock cadence. Each cycle:
  1. Retires at most one pending goal (deliberate throttle)
  2. Runs the full sweep (reminders + closed notifications)
  3. Materializes due recurring transactions

DESIGN:
  - Runs a background goroutine with a configurable interval
  - A cycle's failure is logged and waited out; the scheduler never
    crashes on a store or mail error
  - RunNow() triggers an immediate cycle for tests/admin
  - The engine's clock is injectable, so tests drive cadence without
    real wall-clock waits

CONFIGURATION:
  - Interval: How often to run (default: 6 hours)
  - Enabled:  Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewGoalScheduler(engine, replicator, clock)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - goals/engine.go: The transition logic this triggers
  - ledger/replicator.go: Recurring-series materialization
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
)

// GoalScheduler handles periodic goal processing.
type GoalScheduler struct {
	Engine     *goals.Engine
	Replicator *ledger.Replicator
	Clock      goals.Clock
	Interval   time.Duration
	Enabled    bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewGoalScheduler creates a new scheduler.
func NewGoalScheduler(engine *goals.Engine, replicator *ledger.Replicator, clock goals.Clock) *GoalScheduler {
	if clock == nil {
		clock = goals.SystemClock()
	}
	return &GoalScheduler{
		Engine:     engine,
		Replicator: replicator,
		Clock:      clock,
		Interval:   6 * time.Hour,
		Enabled:    true,
		stop:       make(chan bool),
	}
}

// Start begins the scheduler.
func (gs *GoalScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	gs.ticker = time.NewTicker(gs.Interval)
	gs.wg.Add(1)

	go gs.run()

	log.Printf("[Scheduler] Started with interval: %v", gs.Interval)
}

// Stop stops the scheduler.
func (gs *GoalScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker != nil {
		gs.ticker.Stop()
		close(gs.stop)
		gs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (gs *GoalScheduler) run() {
	defer gs.wg.Done()

	// Run immediately on start
	gs.cycle()

	for {
		select {
		case <-gs.ticker.C:
			gs.cycle()
		case <-gs.stop:
			return
		}
	}
}

// cycle executes one scheduler pass. Failures are logged; the next tick
// retries naturally.
func (gs *GoalScheduler) cycle() {
	ctx := context.Background()
	now := gs.Clock.Now()

	log.Printf("[Scheduler] Cycle starting at %v", now.Format(time.RFC3339))

	outcome, err := gs.Engine.RetireNext(ctx, "")
	if err != nil {
		log.Printf("[Scheduler] Error retiring goal: %v", err)
	} else if outcome.Processed {
		log.Printf("[Scheduler] Retired goal %s: %s", outcome.Goal.ID, outcome.Status)
	}

	report, err := gs.Engine.RunFullSweep(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error running full sweep: %v", err)
	} else if report.Reminded > 0 || report.Completed > 0 || report.Expired > 0 {
		log.Printf("[Scheduler] Sweep completed: %d reminded, %d completed, %d expired",
			report.Reminded, report.Completed, report.Expired)
	}

	if gs.Replicator != nil {
		n, err := gs.Replicator.Run(ctx, now)
		if err != nil {
			log.Printf("[Scheduler] Error materializing recurring transactions: %v", err)
		} else if n > 0 {
			log.Printf("[Scheduler] Materialized %d recurring transactions", n)
		}
	}
}

// RunNow triggers an immediate cycle (for testing/admin).
func (gs *GoalScheduler) RunNow() {
	gs.cycle()
}
