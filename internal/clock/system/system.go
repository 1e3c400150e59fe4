// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements audit.Clock on time.Now, always in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time. The monotonic reading is kept so
// durations computed between two calls are immune to wall clock steps.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
