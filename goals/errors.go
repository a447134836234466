/*
errors.go - Centralized error types for the goal engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Validation errors live next to the types they guard (types.go); this
  file holds the lifecycle and store-contract errors.

USAGE:
  Callers match with errors.Is:

    if errors.Is(err, goals.ErrGoalNotFound) {
        // 404
    }

SEE ALSO:
  - types.go: Creation-time validation errors
  - store.go: Operations returning these errors
*/
package goals

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrGoalNotFound is returned when a referenced goal doesn't exist
	// or belongs to another user.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrUserNotFound is returned when a goal's owner doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyTerminal is returned when an operation requires a pending
	// goal but the goal has already left pending. Transitions are
	// terminal-once by construction; hitting this reactively is a bug.
	ErrAlreadyTerminal = errors.New("goal already in terminal state")

	// ErrInvalidFlag is returned for a flag name outside the known set.
	ErrInvalidFlag = errors.New("unknown notification flag")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DoubleTransitionError reports a terminal transition that lost to a
// concurrent one. The conditional UPDATE arbitrates the race; this error
// records the losing side for the log.
type DoubleTransitionError struct {
	GoalID GoalID
	From   Status
	To     Status
	At     time.Time
}

func (e *DoubleTransitionError) Error() string {
	return fmt.Sprintf("goal %s: refused transition %s -> %s at %s, goal already left %s",
		e.GoalID, e.From, e.To, e.At.Format(time.RFC3339), e.From)
}

func (e *DoubleTransitionError) Unwrap() error {
	return ErrAlreadyTerminal
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGoalNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingName) ||
		errors.Is(err, ErrTargetNotPositive) ||
		errors.Is(err, ErrMissingTargetDate) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrPriorityOutOfRange)
}
