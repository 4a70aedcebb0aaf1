package ratelimit

import (
	"context"
	"sync"
	"time"

	"vaultpricing/internal/provider"
)

// TokenBucket spends one token per upstream call and refills at the provider
// quota. It starts full so a cold start can fire its first burst at once.
type TokenBucket struct {
	perToken time.Duration
	capacity float64
	clock    Clock

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

type BucketOption func(*TokenBucket)

// WithClock replaces the wall clock.
func WithClock(c Clock) BucketOption { return func(tb *TokenBucket) { tb.clock = clockOrWall(c) } }

// NewTokenBucket allows perMinute calls a minute with bursts of up to burst.
// A non-positive perMinute never refills.
func NewTokenBucket(perMinute float64, burst int, opts ...BucketOption) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	tb := &TokenBucket{capacity: float64(burst), tokens: float64(burst), clock: wallClock{}}
	if perMinute > 0 {
		tb.perToken = time.Duration(float64(time.Minute) / perMinute)
	}
	for _, opt := range opts {
		opt(tb)
	}
	tb.last = tb.clock.Now()
	return tb
}

// Wait blocks until a token is spent or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := tb.take()
		if ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tb.clock.After(wait):
		}
	}
}

// Available reports the whole tokens left right now.
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

// take spends a token, or reports how long until one is due.
func (tb *TokenBucket) take() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}
	if tb.perToken == 0 {
		// Never refills: park until the caller's context ends.
		return time.Hour, false
	}
	return max(time.Duration((1-tb.tokens)*float64(tb.perToken)), time.Millisecond), false
}

func (tb *TokenBucket) refill() {
	now := tb.clock.Now()
	elapsed := now.Sub(tb.last)
	if elapsed <= 0 {
		return
	}
	tb.last = now
	if tb.perToken == 0 {
		return
	}
	tb.tokens = min(tb.capacity, tb.tokens+float64(elapsed)/float64(tb.perToken))
}

// TokenBucketSource wraps a Source and gates calls using a token bucket.
// A caller that gives up while waiting gets a NetworkError, same as a timeout
// on the wire.
type TokenBucketSource struct {
	S  provider.Source
	TB *TokenBucket
}

func (t *TokenBucketSource) FetchOne(ctx context.Context, symbol string) (provider.Quote, error) {
	if err := t.gate(ctx); err != nil {
		return provider.Quote{}, err
	}
	return t.S.FetchOne(ctx, symbol)
}

func (t *TokenBucketSource) FetchMany(ctx context.Context, symbols []string) (map[string]provider.Quote, error) {
	if err := t.gate(ctx); err != nil {
		return nil, err
	}
	return t.S.FetchMany(ctx, symbols)
}

func (t *TokenBucketSource) gate(ctx context.Context) error {
	if t.TB == nil {
		return nil
	}
	if err := t.TB.Wait(ctx); err != nil {
		return &provider.NetworkError{Err: err}
	}
	return nil
}
