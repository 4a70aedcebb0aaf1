package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"vaultpricing/internal/provider/cache"
)

const (
	defaultPrefix = "vaultpricing:quote:"
	defaultTTL    = 24 * time.Hour
)

// Store persists cache entries so a restarted process can serve its last known
// prices while the first fetch is in flight.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New returns a Store. Empty prefix and non-positive ttl select the defaults.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Ping checks the connection to the Redis server.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Save(ctx context.Context, providerID string, e cache.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return s.client.Set(ctx, s.prefix+providerID, data, s.ttl).Err()
}

// Load returns the stored entries for providerIDs. Ids with nothing stored
// are absent from the result.
func (s *Store) Load(ctx context.Context, providerIDs []string) (map[string]cache.Entry, error) {
	out := make(map[string]cache.Entry, len(providerIDs))
	if len(providerIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(providerIDs))
	for i, id := range providerIDs {
		keys[i] = s.prefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("mget quotes: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e cache.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry %s: %w", providerIDs[i], err)
		}
		out[providerIDs[i]] = e
	}
	return out, nil
}
