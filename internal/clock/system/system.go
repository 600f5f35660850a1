// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock with UTC wall time.
type Clock struct{}

// New returns a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the time elapsed from start.
func (c Clock) Since(start time.Time) time.Duration {
	return c.Now().Sub(start)
}
