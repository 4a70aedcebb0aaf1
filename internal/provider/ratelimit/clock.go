package ratelimit

import "time"

// Clock is the time source behind the limiters. Tests swap in a fake one so
// refill and spacing can be checked without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func clockOrWall(c Clock) Clock {
	if c == nil {
		return wallClock{}
	}
	return c
}
