package goals

import "time"

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock abstracts wall-clock reads so tests can pin "now" and simulate
// tick cadence without real waits.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the real wall clock (UTC).
func SystemClock() Clock { return systemClock{} }

// FixedClock is a Clock pinned to a settable instant.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time { return c.At }

// Advance moves the pinned instant forward.
func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }
