package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova/savings-engine/goals"
	"github.com/finova/savings-engine/ledger"
	"github.com/finova/savings-engine/notify"
)

func newTestScheduler(t *testing.T) (*GoalScheduler, *testEnv) {
	t.Helper()
	env := newTestEnv(t)

	// Rebuild the engine pieces the scheduler needs from the same stores.
	aggregator := ledger.NewAggregator(env.txs)
	engine := goals.NewEngine(env.goals, env.users, aggregator, env.recorder, env.clock)
	replicator := ledger.NewReplicator(env.txs)
	return NewGoalScheduler(engine, replicator, env.clock), env
}

func TestSchedulerCycle_RetiresSweepsAndReplicates(t *testing.T) {
	// GIVEN: A funded goal, a goal inside the reminder window, and a due
	//        recurring series
	// WHEN: Running one scheduler cycle
	// THEN: One goal retires, the reminder fires, and the series
	//       materializes, all in the same pass

	scheduler, env := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, env.txs.Append(ctx, ledger.Transaction{
		ID: "tx-savings", UserID: "user-1", Description: "savings",
		Amount: decimal.NewFromInt(500), Type: ledger.TypeSavings,
		Category: "test", OccurredAt: env.clock.At,
	}))

	seriesStart := env.clock.At.AddDate(0, -1, -3)
	require.NoError(t, env.txs.Append(ctx, ledger.Transaction{
		ID: "tx-series", UserID: "user-1", Description: "Rent",
		Amount: decimal.NewFromInt(100), Type: ledger.TypeExpense,
		Category: "housing", OccurredAt: seriesStart,
		Recurrence: ledger.NewRecurrence(ledger.IntervalMonthly, seriesStart),
	}))

	require.NoError(t, env.goals.Create(ctx, goals.Goal{
		ID: "goal-funded", UserID: "user-1", Name: "funded",
		TargetAmount: decimal.NewFromInt(400),
		TargetDate:   env.clock.At.AddDate(0, 0, 90),
		Priority:     1, Status: goals.StatusPending, CreatedAt: env.clock.At,
	}))
	require.NoError(t, env.goals.Create(ctx, goals.Goal{
		ID: "goal-soon", UserID: "user-1", Name: "soon",
		TargetAmount: decimal.NewFromInt(5000),
		TargetDate:   env.clock.At.AddDate(0, 0, 10),
		Priority:     2, Status: goals.StatusPending, CreatedAt: env.clock.At,
	}))

	scheduler.RunNow()

	funded, err := env.goals.Get(ctx, "goal-funded")
	require.NoError(t, err)
	assert.Equal(t, goals.StatusCompleted, funded.Status)

	soon, err := env.goals.Get(ctx, "goal-soon")
	require.NoError(t, err)
	assert.Equal(t, goals.StatusPending, soon.Status, "only one retirement per cycle")
	assert.True(t, soon.Notified30Days)

	assert.Len(t, env.recorder.OfKind(notify.KindAchieved), 1)
	assert.Len(t, env.recorder.OfKind(notify.KindReminder), 1)

	txs, err := env.txs.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, txs, 3, "one materialized occurrence appended")
}

func TestSchedulerCycle_Idempotent(t *testing.T) {
	// GIVEN: A cycle that already fired every notification
	// WHEN: Running another cycle at the same instant
	// THEN: Nothing new happens

	scheduler, env := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, env.txs.Append(ctx, ledger.Transaction{
		ID: "tx-1", UserID: "user-1", Description: "savings",
		Amount: decimal.NewFromInt(100), Type: ledger.TypeSavings,
		Category: "test", OccurredAt: env.clock.At,
	}))
	require.NoError(t, env.goals.Create(ctx, goals.Goal{
		ID: "goal-1", UserID: "user-1", Name: "soon",
		TargetAmount: decimal.NewFromInt(5000),
		TargetDate:   env.clock.At.AddDate(0, 0, 10),
		Priority:     1, Status: goals.StatusPending, CreatedAt: env.clock.At,
	}))

	scheduler.RunNow()
	sent := len(env.recorder.Messages())

	scheduler.RunNow()
	assert.Equal(t, sent, len(env.recorder.Messages()))
}

func TestScheduler_StartStop(t *testing.T) {
	// GIVEN: A started scheduler with a long interval
	// WHEN: Stopping it
	// THEN: Stop returns cleanly after the initial cycle

	scheduler, _ := newTestScheduler(t)
	scheduler.Interval = time.Hour

	scheduler.Start()
	scheduler.Stop()
}

func TestScheduler_Disabled_DoesNotStart(t *testing.T) {
	scheduler, env := newTestScheduler(t)
	scheduler.Enabled = false
	ctx := context.Background()

	require.NoError(t, env.goals.Create(ctx, goals.Goal{
		ID: "goal-1", UserID: "user-1", Name: "soon",
		TargetAmount: decimal.NewFromInt(5000),
		TargetDate:   env.clock.At.AddDate(0, 0, 5),
		Priority:     1, Status: goals.StatusPending, CreatedAt: env.clock.At,
	}))

	scheduler.Start()
	scheduler.Stop()
	assert.Empty(t, env.recorder.Messages())
}
