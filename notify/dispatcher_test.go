package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// RENDERING
// =============================================================================

func TestRender_Reminder(t *testing.T) {
	r, err := render(Reminder{
		GoalName:      "Summer trip",
		TargetAmount:  decimal.NewFromInt(2000),
		TargetDate:    time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC),
		DaysRemaining: 12,
		Progress:      decimal.RequireFromString("40.5"),
	})
	require.NoError(t, err)

	assert.Contains(t, r.Subject, "Summer trip")
	assert.Contains(t, r.Title, "12 days")
	assert.Contains(t, r.Body, "40.50")
	assert.Contains(t, r.Body, "July 15, 2025")
}

func TestRender_Achieved(t *testing.T) {
	r, err := render(Achieved{GoalName: "Emergency fund", TargetAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	assert.Contains(t, r.Subject, "Emergency fund")
	assert.Contains(t, r.Subject, "achieved")
	assert.Contains(t, r.Body, "1000.00")
}

func TestRender_Expired(t *testing.T) {
	r, err := render(Expired{
		GoalName:     "Concert tickets",
		TargetAmount: decimal.NewFromInt(500),
		TargetDate:   time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Contains(t, r.Subject, "expired")
	assert.Contains(t, r.Body, "May 1, 2025")
	assert.Contains(t, r.Body, "500.00")
}

func TestRenderHTML_WrapsBodyInShell(t *testing.T) {
	body, err := renderHTML(rendered{Title: "Hello", Body: "World & co"})
	require.NoError(t, err)

	assert.Contains(t, body, "Hello")
	assert.Contains(t, body, "World &amp; co", "body must be HTML-escaped")
	assert.Contains(t, body, "sent automatically")
}

// =============================================================================
// EMAIL DISPATCHER
// =============================================================================

type fakeMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (m *fakeMailer) Send(to, subject, htmlBody string) error {
	m.to, m.subject, m.body = to, subject, htmlBody
	return m.err
}

func TestEmailDispatcher_SendsRenderedMessage(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewEmailDispatcher(mailer)

	err := d.Notify(context.Background(),
		Recipient{Name: "Alice", Email: "alice@example.com"},
		Achieved{GoalName: "Car", TargetAmount: decimal.NewFromInt(8000)},
	)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", mailer.to)
	assert.Contains(t, mailer.subject, "Car")
	assert.Contains(t, mailer.body, "8000.00")
}

func TestEmailDispatcher_WrapsTransportError(t *testing.T) {
	sendErr := errors.New("connection refused")
	d := NewEmailDispatcher(&fakeMailer{err: sendErr})

	err := d.Notify(context.Background(),
		Recipient{Email: "alice@example.com"},
		Achieved{GoalName: "Car", TargetAmount: decimal.NewFromInt(8000)},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)
	assert.Contains(t, err.Error(), "achieved")
}

// =============================================================================
// RECORDER
// =============================================================================

func TestRecorder_CapturesAndFilters(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	require.NoError(t, rec.Notify(ctx, Recipient{Email: "a@example.com"},
		Achieved{GoalName: "A", TargetAmount: decimal.NewFromInt(1)}))
	require.NoError(t, rec.Notify(ctx, Recipient{Email: "b@example.com"},
		Expired{GoalName: "B", TargetAmount: decimal.NewFromInt(2)}))

	assert.Len(t, rec.Messages(), 2)
	assert.Len(t, rec.OfKind(KindAchieved), 1)
	assert.Len(t, rec.OfKind(KindExpired), 1)
	assert.Empty(t, rec.OfKind(KindReminder))
}

func TestRecorder_FailStillRecords(t *testing.T) {
	rec := NewRecorder()
	rec.Fail = true

	err := rec.Notify(context.Background(), Recipient{Email: "a@example.com"},
		Achieved{GoalName: "A", TargetAmount: decimal.NewFromInt(1)})
	assert.Error(t, err)
	assert.Len(t, rec.Messages(), 1, "a failed send still counts as an attempt")
}
