package cache

import (
	"sync"
	"time"

	"vaultpricing/internal/provider"
)

// DefaultTTL is the freshness window for a cached quote.
const DefaultTTL = 60 * time.Second

// Entry is a cached quote and the time it was stored.
type Entry struct {
	Quote    provider.Quote `json:"quote"`
	CachedAt time.Time      `json:"cached_at"`
}

// Cache holds the last fetched quote per provider id.
// Construct one per process and share it by reference; entries are only
// removed by Clear, stale ones are overwritten by the next successful Put.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]Entry // key: provider id
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns an empty cache. A ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{ttl: ttl, now: time.Now, items: make(map[string]Entry)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the entry for providerID, fresh or not.
func (c *Cache) Get(providerID string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.items[providerID]
	c.mu.RUnlock()
	return e, ok
}

// Put stores q under providerID, replacing whatever was there.
func (c *Cache) Put(providerID string, q provider.Quote) Entry {
	e := Entry{Quote: q, CachedAt: c.now()}
	c.mu.Lock()
	c.items[providerID] = e
	c.mu.Unlock()
	return e
}

// Restore loads a previously persisted entry, keeping its CachedAt so the
// freshness window is not reset. An entry older than what is cached is ignored,
// as is one stamped in the future.
func (c *Cache) Restore(providerID string, e Entry) bool {
	if e.CachedAt.After(c.now()) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.items[providerID]; ok && !e.CachedAt.After(cur.CachedAt) {
		return false
	}
	c.items[providerID] = e
	return true
}

// IsFresh reports whether e is younger than the TTL.
func (c *Cache) IsFresh(e Entry) bool {
	return c.now().Sub(e.CachedAt) < c.ttl
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]Entry)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
