package block

import "time"

// Clock provides the current time to the locator and the block cache.
// Tests substitute a [FixedClock] so gaps and expiry are deterministic.
type Clock interface {
	Now() time.Time
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant until advanced.
type FixedClock struct {
	CurrentTime time.Time
}

// Now returns the fixed time.
func (c *FixedClock) Now() time.Time {
	return c.CurrentTime
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
