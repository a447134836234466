/*
Package notify formats and sends goal-lifecycle notifications.

PURPOSE:
  Builds a subject/body pair from a template keyed by notification kind
  and hands it to a mail transport. The dispatcher is fire-and-forget:
  no retry, no queue. Idempotency is enforced upstream by the goal
  engine's notification flags, never here.

KINDS:
  reminder  Deadline within 30 days
  achieved  Target amount reached
  expired   Deadline passed without reaching the target

DESIGN:
  One explicit struct per kind instead of an ad hoc option bag, so each
  template's inputs are visible in the type system.

SEE ALSO:
  - dispatcher.go: Rendering and transport handoff
  - mailer.go: SMTP transport
*/
package notify

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECIPIENT
// =============================================================================

// Recipient is the notification target. Kept free of any user-model
// dependency; callers project their user record into it.
type Recipient struct {
	Name  string
	Email string
}

// =============================================================================
// MESSAGES - One struct per notification kind
// =============================================================================

type Kind string

const (
	KindReminder Kind = "reminder"
	KindAchieved Kind = "achieved"
	KindExpired  Kind = "expired"
)

// Message is implemented by the three notification payloads.
type Message interface {
	Kind() Kind
}

// Reminder tells the user a goal's deadline is close.
type Reminder struct {
	GoalName      string
	TargetAmount  decimal.Decimal
	TargetDate    time.Time
	DaysRemaining int

	// Progress is currentAmount/targetAmount as a percentage.
	Progress decimal.Decimal
}

func (Reminder) Kind() Kind { return KindReminder }

// Achieved congratulates the user on reaching a goal.
type Achieved struct {
	GoalName     string
	TargetAmount decimal.Decimal
}

func (Achieved) Kind() Kind { return KindAchieved }

// Expired tells the user a goal's deadline passed unmet.
type Expired struct {
	GoalName     string
	TargetAmount decimal.Decimal
	TargetDate   time.Time
}

func (Expired) Kind() Kind { return KindExpired }
