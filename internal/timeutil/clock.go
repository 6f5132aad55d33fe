package timeutil

import "time"

// Clock provides the current time to the aggregation pipeline.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	CurrentTime time.Time
}

// Now returns the fixed time.
func (c *FixedClock) Now() time.Time {
	return c.CurrentTime
}
