/*
engine_test.go - Goal lifecycle state machine tests

Covers:
- Single-goal retirement (achieved, expired, precedence, one-per-call)
- Full sweep (reminders, closed notifications, idempotency)
- Notification flags as the sole gate (attempted-once on send failure)
- Terminal-state immutability
*/
package goals_test

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
	"github.com/finova/savings-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	engine   *goals.Engine
	goals    *memory.Goals
	txs      *memory.Transactions
	users    *memory.Users
	recorder *notify.Recorder
	clock    *goals.FixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gs := memory.NewGoals()
	txs := memory.NewTransactions()
	users := memory.NewUsers()
	recorder := notify.NewRecorder()
	clock := &goals.FixedClock{At: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)}

	require.NoError(t, users.SaveUser(context.Background(), ledger.User{
		ID:        "user-1",
		Name:      "Alice",
		Email:     "alice@example.com",
		CreatedAt: clock.At,
	}))

	engine := goals.NewEngine(gs, users, ledger.NewAggregator(txs), recorder, clock)
	return &fixture{engine: engine, goals: gs, txs: txs, users: users, recorder: recorder, clock: clock}
}

func (f *fixture) addSavings(t *testing.T, userID ledger.UserID, amount int64) {
	t.Helper()
	require.NoError(t, f.txs.Append(context.Background(), ledger.Transaction{
		ID:          ledger.TransactionID("tx-" + time.Now().Format("150405.000000000")),
		UserID:      userID,
		Description: "savings",
		Amount:      decimal.NewFromInt(amount),
		Type:        ledger.TypeSavings,
		Category:    "test",
		OccurredAt:  f.clock.At,
	}))
}

func (f *fixture) addGoal(t *testing.T, id string, target int64, dueInDays, priority int) {
	t.Helper()
	require.NoError(t, f.goals.Create(context.Background(), goals.Goal{
		ID:           goals.GoalID(id),
		UserID:       "user-1",
		Name:         id,
		TargetAmount: decimal.NewFromInt(target),
		TargetDate:   f.clock.At.AddDate(0, 0, dueInDays),
		Priority:     priority,
		Status:       goals.StatusPending,
		CreatedAt:    f.clock.At,
	}))
}

// =============================================================================
// SINGLE-GOAL RETIREMENT
// =============================================================================

func TestRetireNext_AchievedGoal_CompletedAndNotified(t *testing.T) {
	// GIVEN: A goal whose target is covered by the derived balance
	// WHEN: Running the retirement step
	// THEN: The goal is completed and one achievement notification is sent

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 500)
	f.addGoal(t, "goal-1", 400, 90, 1)

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)

	assert.True(t, outcome.Processed)
	assert.Equal(t, goals.StatusCompleted, outcome.Status)
	require.NotNil(t, outcome.Goal)
	assert.True(t, outcome.Goal.ClosedNotified)
	require.NotNil(t, outcome.Goal.CompletedAt)

	stored, err := f.goals.Get(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, goals.StatusCompleted, stored.Status)

	achieved := f.recorder.OfKind(notify.KindAchieved)
	require.Len(t, achieved, 1)
	assert.Equal(t, "alice@example.com", achieved[0].To.Email)
}

func TestRetireNext_ExpiredGoal_ExpiredAndNotified(t *testing.T) {
	// GIVEN: A goal past its deadline with insufficient balance
	// WHEN: Running the retirement step
	// THEN: The goal is expired and an expiration notification is sent

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 100)
	f.addGoal(t, "goal-1", 1000, -7, 1)

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)

	assert.True(t, outcome.Processed)
	assert.Equal(t, goals.StatusExpired, outcome.Status)
	assert.Len(t, f.recorder.OfKind(notify.KindExpired), 1)
	assert.Empty(t, f.recorder.OfKind(notify.KindAchieved))
}

func TestRetireNext_AchievedAndPastDeadline_AchievementWins(t *testing.T) {
	// GIVEN: A goal that is both past its deadline and fully funded
	// WHEN: Running the retirement step
	// THEN: The goal is completed, not expired

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 2000)
	f.addGoal(t, "goal-1", 1000, -7, 1)

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, goals.StatusCompleted, outcome.Status)
	assert.Len(t, f.recorder.OfKind(notify.KindAchieved), 1)
	assert.Empty(t, f.recorder.OfKind(notify.KindExpired))
}

func TestRetireNext_NoRipeGoal_NotProcessed(t *testing.T) {
	// GIVEN: A pending goal that is neither achieved nor expired
	// WHEN: Running the retirement step
	// THEN: Nothing is processed and no notification is sent

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 100)
	f.addGoal(t, "goal-1", 1000, 90, 1)

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)

	assert.False(t, outcome.Processed)
	assert.Empty(t, f.recorder.Messages())

	stored, err := f.goals.Get(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, goals.StatusPending, stored.Status)
}

func TestRetireNext_OneGoalPerCall(t *testing.T) {
	// GIVEN: Two goals both covered by the derived balance
	// WHEN: Running the retirement step once
	// THEN: Only the highest-priority goal is retired; a second call
	//       retires the next one

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 5000)
	f.addGoal(t, "goal-low", 1000, 90, 1)
	f.addGoal(t, "goal-high", 2000, 90, 1) // shifts goal-low to priority 2

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)
	require.True(t, outcome.Processed)
	assert.Equal(t, goals.GoalID("goal-high"), outcome.Goal.ID)

	remaining, err := f.goals.Get(ctx, "goal-low")
	require.NoError(t, err)
	assert.Equal(t, goals.StatusPending, remaining.Status)

	outcome, err = f.engine.RetireNext(ctx, "")
	require.NoError(t, err)
	require.True(t, outcome.Processed)
	assert.Equal(t, goals.GoalID("goal-low"), outcome.Goal.ID)
}

func TestRetireNext_ByAgeOrder_OldestFirst(t *testing.T) {
	// GIVEN: An engine in age order with two funded goals of different ages
	// WHEN: Running the retirement step
	// THEN: The older goal goes first regardless of priority

	f := newFixture(t)
	ctx := context.Background()
	f.engine.WithOrder(goals.ByAge)

	f.addSavings(t, "user-1", 5000)

	older := goals.Goal{
		ID: "goal-old", UserID: "user-1", Name: "old",
		TargetAmount: decimal.NewFromInt(1000),
		TargetDate:   f.clock.At.AddDate(0, 0, 90),
		Priority:     1, Status: goals.StatusPending,
		CreatedAt: f.clock.At.AddDate(0, -2, 0),
	}
	require.NoError(t, f.goals.Create(ctx, older))
	f.addGoal(t, "goal-new", 500, 90, 1) // priority 1, shifts goal-old to 2

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)
	require.True(t, outcome.Processed)
	assert.Equal(t, goals.GoalID("goal-old"), outcome.Goal.ID)
}

func TestRetireNext_ScopedToUser(t *testing.T) {
	// GIVEN: Funded goals for two users
	// WHEN: Running the retirement step scoped to user-2
	// THEN: Only user-2's goal is considered

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.SaveUser(ctx, ledger.User{
		ID: "user-2", Name: "Bob", Email: "bob@example.com", CreatedAt: f.clock.At,
	}))

	f.addSavings(t, "user-1", 5000)
	f.addGoal(t, "goal-u1", 1000, 90, 1)

	require.NoError(t, f.txs.Append(ctx, ledger.Transaction{
		ID: "tx-u2", UserID: "user-2", Description: "savings",
		Amount: decimal.NewFromInt(300), Type: ledger.TypeSavings,
		Category: "test", OccurredAt: f.clock.At,
	}))
	require.NoError(t, f.goals.Create(ctx, goals.Goal{
		ID: "goal-u2", UserID: "user-2", Name: "u2",
		TargetAmount: decimal.NewFromInt(200),
		TargetDate:   f.clock.At.AddDate(0, 0, 90),
		Priority:     1, Status: goals.StatusPending, CreatedAt: f.clock.At,
	}))

	outcome, err := f.engine.RetireNext(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, outcome.Processed)
	assert.Equal(t, goals.GoalID("goal-u2"), outcome.Goal.ID)

	u1Goal, err := f.goals.Get(ctx, "goal-u1")
	require.NoError(t, err)
	assert.Equal(t, goals.StatusPending, u1Goal.Status)
}

func TestRetireNext_TerminalGoalNeverReprocessed(t *testing.T) {
	// GIVEN: A goal already retired
	// WHEN: Running the retirement step again
	// THEN: The terminal goal is untouched and no second notification fires

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 500)
	f.addGoal(t, "goal-1", 400, 90, 1)

	_, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)
	assert.False(t, outcome.Processed)
	assert.Len(t, f.recorder.Messages(), 1)
}

// =============================================================================
// FULL SWEEP
// =============================================================================

func TestRunFullSweep_ReminderWithin30Days(t *testing.T) {
	// GIVEN: A pending goal due in 10 days
	// WHEN: Running the full sweep
	// THEN: One reminder fires; a second sweep is silent

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 100)
	f.addGoal(t, "goal-1", 1000, 10, 1)

	report, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reminded)

	reminders := f.recorder.OfKind(notify.KindReminder)
	require.Len(t, reminders, 1)
	reminder := reminders[0].Msg.(notify.Reminder)
	assert.Equal(t, 10, reminder.DaysRemaining)
	assert.Equal(t, "10.00", reminder.Progress.StringFixed(2))

	report, err = f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reminded)
	assert.Len(t, f.recorder.OfKind(notify.KindReminder), 1)
}

func TestRunFullSweep_FarDeadline_NoReminder(t *testing.T) {
	// GIVEN: A pending goal due in 90 days
	// WHEN: Running the full sweep
	// THEN: No reminder fires

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 100)
	f.addGoal(t, "goal-1", 1000, 90, 1)

	report, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reminded)
	assert.Empty(t, f.recorder.Messages())
}

func TestRunFullSweep_ReminderFiresOnceAsDeadlineApproaches(t *testing.T) {
	// GIVEN: A goal whose deadline drifts into the 30-day window over time
	// WHEN: Sweeping before and repeatedly after the window opens
	// THEN: Exactly one reminder fires in total

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 100)
	f.addGoal(t, "goal-1", 1000, 45, 1)

	report, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reminded)

	f.clock.Advance(20 * 24 * time.Hour) // 25 days remaining

	for i := 0; i < 3; i++ {
		_, err := f.engine.RunFullSweep(ctx)
		require.NoError(t, err)
	}
	assert.Len(t, f.recorder.OfKind(notify.KindReminder), 1)
}

func TestRunFullSweep_ClosedNotification_NoStatusChange(t *testing.T) {
	// GIVEN: A fully funded pending goal
	// WHEN: Running the full sweep
	// THEN: The achievement notification fires but the goal stays pending;
	//       the later retirement step transitions it without re-sending

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 500)
	f.addGoal(t, "goal-1", 400, 90, 1)

	report, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	stored, err := f.goals.Get(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, goals.StatusPending, stored.Status, "sweep must not change status")
	assert.True(t, stored.ClosedNotified)

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)
	assert.True(t, outcome.Processed)
	assert.Equal(t, goals.StatusCompleted, outcome.Status)

	// Still exactly one achievement notification across both paths.
	assert.Len(t, f.recorder.OfKind(notify.KindAchieved), 1)
}

func TestRunFullSweep_ExpiredGoal_Counted(t *testing.T) {
	// GIVEN: An underfunded goal past its deadline
	// WHEN: Running the full sweep
	// THEN: One expiration notification fires, once

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 100)
	f.addGoal(t, "goal-1", 1000, -3, 1)

	report, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	report, err = f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Expired)
	assert.Len(t, f.recorder.OfKind(notify.KindExpired), 1)
}

func TestRunFullSweep_OrphanGoal_Skipped(t *testing.T) {
	// GIVEN: A pending goal whose owner has no user record
	// WHEN: Running the full sweep
	// THEN: The goal is skipped without error and nothing is sent

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.goals.Create(ctx, goals.Goal{
		ID: "goal-orphan", UserID: "ghost", Name: "orphan",
		TargetAmount: decimal.NewFromInt(100),
		TargetDate:   f.clock.At.AddDate(0, 0, 5),
		Priority:     1, Status: goals.StatusPending, CreatedAt: f.clock.At,
	}))

	report, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reminded)
	assert.Empty(t, f.recorder.Messages())
}

// =============================================================================
// ATTEMPTED-ONCE SEMANTICS
// =============================================================================

func TestNotificationFlag_RecordsAttempt_NotSuccess(t *testing.T) {
	// GIVEN: A dispatcher that fails every send
	// WHEN: Sweeping twice over a goal inside the reminder window
	// THEN: Exactly one send is attempted; the failure does not release
	//       the flag

	f := newFixture(t)
	ctx := context.Background()
	f.recorder.Fail = true

	f.addSavings(t, "user-1", 100)
	f.addGoal(t, "goal-1", 1000, 10, 1)

	_, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	_, err = f.engine.RunFullSweep(ctx)
	require.NoError(t, err)

	assert.Len(t, f.recorder.OfKind(notify.KindReminder), 1)

	stored, err := f.goals.Get(ctx, "goal-1")
	require.NoError(t, err)
	assert.True(t, stored.Notified30Days)
}

func TestRetireNext_SendFailure_StillRetires(t *testing.T) {
	// GIVEN: A funded goal and a failing dispatcher
	// WHEN: Running the retirement step
	// THEN: The transition still happens; the send is attempted once

	f := newFixture(t)
	ctx := context.Background()
	f.recorder.Fail = true

	f.addSavings(t, "user-1", 500)
	f.addGoal(t, "goal-1", 400, 90, 1)

	outcome, err := f.engine.RetireNext(ctx, "")
	require.NoError(t, err)
	assert.True(t, outcome.Processed)
	assert.Equal(t, goals.StatusCompleted, outcome.Status)
	assert.Len(t, f.recorder.Messages(), 1)
}

// =============================================================================
// DERIVED BALANCE INTERACTION
// =============================================================================

func TestEngine_BalanceSharedAcrossGoals(t *testing.T) {
	// GIVEN: One user with two funded goals and a single savings pool
	// WHEN: Sweeping
	// THEN: Both goals see the same derived balance (funds are not
	//       partitioned between goals)

	f := newFixture(t)
	ctx := context.Background()

	f.addSavings(t, "user-1", 1000)
	f.addGoal(t, "goal-a", 800, 90, 1)
	f.addGoal(t, "goal-b", 900, 90, 2)

	report, err := f.engine.RunFullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Completed)
}
