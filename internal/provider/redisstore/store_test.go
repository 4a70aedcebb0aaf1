package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"vaultpricing/internal/provider"
	"vaultpricing/internal/provider/cache"
)

// newTestStore connects to REDIS_ADDR; the test is skipped when it is unset.
func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	t.Cleanup(func() { _ = rdb.Close() })

	s := New(rdb, "vaultpricing:test:"+t.Name()+":", time.Minute)
	require.NoError(t, s.Ping(t.Context()))
	return s, rdb
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s := New(nil, "", 0)
	require.Equal(t, defaultPrefix, s.prefix)
	require.Equal(t, defaultTTL, s.ttl)
}

func TestSaveLoad(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()

	cachedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e := cache.Entry{
		Quote:    provider.Quote{Symbol: "ETH", ProviderID: "ethereum", Price: 3000, Change24h: 1.5, HasChange24h: true, ObservedAt: cachedAt},
		CachedAt: cachedAt,
	}
	require.NoError(t, s.Save(ctx, "ethereum", e))
	t.Cleanup(func() { rdb.Del(context.Background(), s.prefix+"ethereum") })

	got, err := s.Load(ctx, []string{"ethereum", "bitcoin"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, e.Quote, got["ethereum"].Quote)
	require.True(t, e.CachedAt.Equal(got["ethereum"].CachedAt))

	ttl, err := rdb.TTL(ctx, s.prefix+"ethereum").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
