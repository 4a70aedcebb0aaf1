package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"vaultpricing/internal/provider"
	"vaultpricing/internal/provider/ratelimit"
)

type countingSource struct{ calls atomic.Int32 }

// steppingClock jumps forward by whatever a limiter asks to wait, so waits
// finish at once and the total virtual delay can be checked.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *countingSource) FetchOne(_ context.Context, symbol string) (provider.Quote, error) {
	c.calls.Add(1)
	return provider.Quote{Symbol: symbol, Price: 1}, nil
}

func (c *countingSource) FetchMany(_ context.Context, symbols []string) (map[string]provider.Quote, error) {
	c.calls.Add(1)
	out := make(map[string]provider.Quote, len(symbols))
	for _, s := range symbols {
		out[s] = provider.Quote{Symbol: s, Price: 1}
	}
	return out, nil
}

func TestTokenBucket_BurstThenBlocks(t *testing.T) {
	t.Parallel()

	// Arrange: a bucket that refills far slower than the test runs.
	src := &countingSource{}
	limited := &ratelimit.TokenBucketSource{S: src, TB: ratelimit.NewTokenBucket(0.06, 2)}

	// Act: the burst passes straight through.
	_, err := limited.FetchOne(t.Context(), "ETH")
	require.NoError(t, err)
	_, err = limited.FetchMany(t.Context(), []string{"ETH", "BTC"})
	require.NoError(t, err)

	// Assert: the third call waits and gives up with the context.
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.FetchOne(ctx, "ETH")
	require.Error(t, err)
	require.Equal(t, "network", provider.Kind(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.EqualValues(t, 2, src.calls.Load())
}

func TestTokenBucket_RefillsAtQuota(t *testing.T) {
	t.Parallel()

	// Arrange: 30 calls a minute is one token every two seconds.
	clock := newSteppingClock()
	start := clock.Now()
	tb := ratelimit.NewTokenBucket(30, 3, ratelimit.WithClock(clock))
	require.Equal(t, 3, tb.Available())

	// Act: the burst is free, then each call waits for its own token.
	for range 5 {
		require.NoError(t, tb.Wait(t.Context()))
	}

	// Assert
	require.Equal(t, 4*time.Second, clock.Now().Sub(start))
	require.Zero(t, tb.Available())

	clock.Advance(time.Minute)
	require.Equal(t, 3, tb.Available(), "refill is capped at the burst")
}

func TestTokenBucket_NoQuotaWaitsForContext(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(0, 1, ratelimit.WithClock(newSteppingClock()))
	require.NoError(t, tb.Wait(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, tb.Wait(ctx), context.Canceled)
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	t.Parallel()

	clock := newSteppingClock()
	start := clock.Now()
	src := &countingSource{}
	limited := &ratelimit.MinInterval{S: src, Interval: 30 * time.Second, Clock: clock}

	_, err := limited.FetchOne(t.Context(), "ETH")
	require.NoError(t, err)
	_, err = limited.FetchMany(t.Context(), []string{"ETH"})
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, clock.Now().Sub(start))
	require.EqualValues(t, 2, src.calls.Load())
}

func TestWrap_SelectsLimiter(t *testing.T) {
	t.Parallel()

	src := &countingSource{}

	require.Same(t, provider.Source(src), ratelimit.Wrap(src, 0, 0, 0))
	require.IsType(t, &ratelimit.TokenBucketSource{}, ratelimit.Wrap(src, 30, 0, time.Second))
	require.IsType(t, &ratelimit.MinInterval{}, ratelimit.Wrap(src, 0, 0, time.Second))
}
