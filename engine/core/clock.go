package core

import "time"

// Clock abstracts "now" so the pattern resolver and scheduler are
// deterministic under test. Implementations must return times already
// converted to the runtime's configured timezone.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewSystemClock returns a Clock backed by time.Now, rendering into loc
// (a nil loc renders into UTC).
func NewSystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &systemClock{loc: loc}
}

func (c *systemClock) Now() time.Time { return time.Now().In(c.loc) }

// FixedClock is a Clock that always returns the same instant; used in
// tests that assert on {today}/{this-week}/... pattern resolution.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
