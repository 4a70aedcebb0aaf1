package ratelimit

import (
	"context"
	"sync"
	"time"

	"vaultpricing/internal/provider"
)

// MinInterval wraps a Source and enforces a minimum time between calls.
// Concurrent calls will wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	S        provider.Source
	Interval time.Duration
	// Clock defaults to the wall clock.
	Clock Clock

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) FetchOne(ctx context.Context, symbol string) (provider.Quote, error) {
	if err := m.wait(ctx); err != nil {
		return provider.Quote{}, err
	}
	defer m.mark()
	return m.S.FetchOne(ctx, symbol)
}

func (m *MinInterval) FetchMany(ctx context.Context, symbols []string) (map[string]provider.Quote, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	defer m.mark()
	return m.S.FetchMany(ctx, symbols)
}

func (m *MinInterval) wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	clock := clockOrWall(m.Clock)
	m.mu.Lock()
	wait := m.last.Add(m.Interval).Sub(clock.Now())
	m.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return &provider.NetworkError{Err: ctx.Err()}
	case <-clock.After(wait):
		return nil
	}
}

func (m *MinInterval) mark() {
	if m.Interval <= 0 {
		return
	}
	now := clockOrWall(m.Clock).Now()
	m.mu.Lock()
	m.last = now
	m.mu.Unlock()
}

// Wrap applies the limiter selected by rpm/burst/minInterval, preferring the
// token bucket when rpm is set. It returns s unchanged when both are zero.
func Wrap(s provider.Source, rpm, burst int, minInterval time.Duration) provider.Source {
	if rpm > 0 {
		if burst <= 0 {
			burst = 1
		}
		return &TokenBucketSource{S: s, TB: NewTokenBucket(float64(rpm), burst)}
	}
	if minInterval > 0 {
		return &MinInterval{S: s, Interval: minInterval}
	}
	return s
}
