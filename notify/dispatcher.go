/*
dispatcher.go - Notification rendering and dispatch

PURPOSE:
  Turns a Message into a subject and an HTML body, then hands it to a
  Mailer. Failure is returned to the caller, which logs it; the
  dispatcher never retries. Retry policy, if ever wanted, belongs to the
  goal engine and is a documented gap there.

IMPLEMENTATIONS:
  EmailDispatcher: renders templates and sends through a Mailer
  LogDispatcher:   logs instead of sending (dev, no SMTP configured)
  Recorder:        captures sent messages for tests
*/
package notify

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"strings"
	"sync"
)

// Dispatcher sends a notification to a recipient. Fire-and-forget.
type Dispatcher interface {
	Notify(ctx context.Context, to Recipient, msg Message) error
}

// =============================================================================
// TEMPLATES
// =============================================================================

// notificationHTML is the shared shell every notification body goes in.
var notificationHTML = template.Must(template.New("notification").Parse(`
  <div style="font-family: Arial, sans-serif; padding: 20px;">
    <h2 style="color: #0056b3;">{{.Title}}</h2>
    <p style="font-size: 16px; line-height: 1.5;">{{.Body}}</p>
    <hr style="border: 1px solid #eee; margin: 20px 0;" />
    <p style="color: #666; font-size: 12px;">
      This message was sent automatically. Please do not reply.
    </p>
  </div>
`))

type rendered struct {
	Subject string
	Title   string
	Body    string
}

func render(msg Message) (rendered, error) {
	switch m := msg.(type) {
	case Reminder:
		return rendered{
			Subject: fmt.Sprintf("📅 Reminder: goal %q", m.GoalName),
			Title:   fmt.Sprintf("Only %d days left!", m.DaysRemaining),
			Body: fmt.Sprintf("Your goal %q (%s%% reached) is due in %d days, on %s.",
				m.GoalName, m.Progress.StringFixed(2), m.DaysRemaining, m.TargetDate.Format("January 2, 2006")),
		}, nil
	case Achieved:
		return rendered{
			Subject: fmt.Sprintf("🎉 Goal %q achieved!", m.GoalName),
			Title:   "Congratulations!",
			Body: fmt.Sprintf("You have reached your savings goal %q (%s).",
				m.GoalName, m.TargetAmount.StringFixed(2)),
		}, nil
	case Expired:
		return rendered{
			Subject: fmt.Sprintf("⚠️ Goal %q expired", m.GoalName),
			Title:   "Goal expired",
			Body: fmt.Sprintf("Your goal %q (%s) was not reached by %s.",
				m.GoalName, m.TargetAmount.StringFixed(2), m.TargetDate.Format("January 2, 2006")),
		}, nil
	default:
		return rendered{}, fmt.Errorf("unknown message kind %q", msg.Kind())
	}
}

func renderHTML(r rendered) (string, error) {
	var sb strings.Builder
	err := notificationHTML.Execute(&sb, struct {
		Title string
		Body  string
	}{Title: r.Title, Body: r.Body})
	if err != nil {
		return "", fmt.Errorf("failed to render notification body: %w", err)
	}
	return sb.String(), nil
}

// =============================================================================
// EMAIL DISPATCHER
// =============================================================================

// EmailDispatcher renders messages and sends them through a Mailer.
type EmailDispatcher struct {
	mailer Mailer
}

func NewEmailDispatcher(mailer Mailer) *EmailDispatcher {
	return &EmailDispatcher{mailer: mailer}
}

func (d *EmailDispatcher) Notify(_ context.Context, to Recipient, msg Message) error {
	r, err := render(msg)
	if err != nil {
		return err
	}
	body, err := renderHTML(r)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(to.Email, r.Subject, body); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", msg.Kind(), err)
	}
	return nil
}

// =============================================================================
// LOG DISPATCHER - For dev environments without SMTP
// =============================================================================

type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

func (d *LogDispatcher) Notify(_ context.Context, to Recipient, msg Message) error {
	r, err := render(msg)
	if err != nil {
		return err
	}
	log.Printf("[Notify] %s -> %s: %s", msg.Kind(), to.Email, r.Subject)
	return nil
}

// =============================================================================
// RECORDER - Test double capturing dispatched messages
// =============================================================================

type Sent struct {
	To  Recipient
	Msg Message
}

// Recorder records every dispatched message. Safe for concurrent use.
// Set Fail to force send failures (attempted-once semantics tests).
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail bool
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, to Recipient, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{To: to, Msg: msg})
	if r.Fail {
		return fmt.Errorf("forced send failure")
	}
	return nil
}

// Messages returns a copy of everything dispatched so far.
func (r *Recorder) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind returns dispatched messages of one kind.
func (r *Recorder) OfKind(kind Kind) []Sent {
	var out []Sent
	for _, s := range r.Messages() {
		if s.Msg.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}
