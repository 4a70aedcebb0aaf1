package scheduler

import (
	"sync"
	"time"
)

// Cancel stops a scheduled callback. It is safe to call more than once.
type Cancel func()

// Scheduler runs fn every interval until the returned Cancel is called.
type Scheduler interface {
	Schedule(interval time.Duration, fn func()) Cancel
}

// Ticker is the time.Ticker backed Scheduler. Each schedule gets its own
// goroutine; callbacks of one schedule never overlap.
type Ticker struct{}

func (Ticker) Schedule(interval time.Duration, fn func()) Cancel {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
