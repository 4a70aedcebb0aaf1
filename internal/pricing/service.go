package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"vaultpricing/internal/metrics"
	"vaultpricing/internal/provider"
	"vaultpricing/internal/provider/cache"
)

// DefaultTimeout bounds every source call.
const DefaultTimeout = 10 * time.Second

// Mirror persists cache entries outside the process.
type Mirror interface {
	Save(ctx context.Context, providerID string, e cache.Entry) error
	Load(ctx context.Context, providerIDs []string) (map[string]cache.Entry, error)
}

// Service reads prices through the shared cache and falls back to the source
// on a miss or a stale entry. Failures degrade to "unknown", never to zero.
type Service struct {
	source  provider.Source
	cache   *cache.Cache
	symbols provider.Symbols
	timeout time.Duration
	mirror  Mirror
	metrics *metrics.Metrics
	log     *slog.Logger

	group singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

func WithMirror(m Mirror) Option { return func(s *Service) { s.mirror = m } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(source provider.Source, c *cache.Cache, symbols provider.Symbols, opts ...Option) *Service {
	if symbols == nil {
		symbols = provider.DefaultSymbols()
	}
	s := &Service{
		source:  source,
		cache:   c,
		symbols: symbols,
		timeout: DefaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Symbols returns the symbol table the service resolves against.
func (s *Service) Symbols() provider.Symbols { return s.symbols }

// GetPrice returns the current quote for symbol, or false when it is unknown:
// unsupported, or the fetch failed. See LastKnown for the stale fallback.
func (s *Service) GetPrice(ctx context.Context, symbol string) (provider.Quote, bool) {
	q, err := s.FetchPrice(ctx, symbol)
	if err != nil {
		return provider.Quote{}, false
	}
	return q, true
}

// FetchPrice is GetPrice with the cause of failure. Unsupported symbols return
// provider.ErrNotSupported without touching the cache or the source.
func (s *Service) FetchPrice(ctx context.Context, symbol string) (provider.Quote, error) {
	id, ok := s.symbols.Resolve(symbol)
	if !ok {
		return provider.Quote{}, fmt.Errorf("%s: %w", symbol, provider.ErrNotSupported)
	}
	if q, ok := s.fresh(id); ok {
		return q.WithSymbol(symbol), nil
	}

	// concurrent misses for one id share a single source call
	v, err, _ := s.group.Do(id, func() (any, error) {
		if e, ok := s.cache.Get(id); ok && s.cache.IsFresh(e) {
			return e.Quote, nil
		}
		return s.fetchOne(ctx, symbol, id)
	})
	if err != nil {
		return provider.Quote{}, err
	}
	return v.(provider.Quote).WithSymbol(symbol), nil
}

// GetPrices resolves symbols in bulk with a single source call for every
// provider id that missed the cache. Unknown symbols are absent.
func (s *Service) GetPrices(ctx context.Context, symbols []string) map[string]provider.Quote {
	out := make(map[string]provider.Quote, len(symbols))
	missing := make(map[string][]string) // provider id -> requested symbols
	var ask []string
	for _, sym := range symbols {
		id, ok := s.symbols.Resolve(sym)
		if !ok {
			continue
		}
		if q, ok := s.fresh(id); ok {
			out[sym] = q.WithSymbol(sym)
			continue
		}
		if _, dup := missing[id]; !dup {
			ask = append(ask, sym)
		}
		missing[id] = append(missing[id], sym)
	}
	if len(ask) == 0 {
		return out
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	start := time.Now()
	fetched, err := s.source.FetchMany(ctx, ask)
	s.metrics.ObserveSource("many", provider.Kind(err), start)
	if err != nil {
		s.log.Warn("batch price fetch failed", "symbols", ask, "kind", provider.Kind(err), "error", err)
		return out
	}
	for _, sym := range ask {
		q, ok := fetched[sym]
		if !ok {
			continue
		}
		id, _ := s.symbols.Resolve(sym)
		q.ProviderID = id
		s.put(ctx, id, q)
		for _, req := range missing[id] {
			out[req] = q.WithSymbol(req)
		}
	}
	return out
}

// LastKnown returns the cached entry for symbol regardless of age.
func (s *Service) LastKnown(symbol string) (cache.Entry, bool) {
	id, ok := s.symbols.Resolve(symbol)
	if !ok {
		return cache.Entry{}, false
	}
	e, ok := s.cache.Get(id)
	if !ok {
		return cache.Entry{}, false
	}
	e.Quote = e.Quote.WithSymbol(symbol)
	return e, true
}

// Warm restores mirrored entries into the cache. It returns how many were
// restored; entries keep their original age.
func (s *Service) Warm(ctx context.Context) (int, error) {
	if s.mirror == nil {
		return 0, nil
	}
	ids := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols.List() {
		id, _ := s.symbols.Resolve(sym)
		ids = append(ids, id)
	}
	entries, err := s.mirror.Load(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load mirror: %w", err)
	}
	n := 0
	for id, e := range entries {
		if s.cache.Restore(id, e) {
			n++
		}
	}
	return n, nil
}

func (s *Service) fresh(id string) (provider.Quote, bool) {
	e, ok := s.cache.Get(id)
	switch {
	case !ok:
		s.metrics.CacheLookup("miss")
		return provider.Quote{}, false
	case !s.cache.IsFresh(e):
		s.metrics.CacheLookup("stale")
		return provider.Quote{}, false
	default:
		s.metrics.CacheLookup("hit")
		return e.Quote, true
	}
}

func (s *Service) fetchOne(ctx context.Context, symbol, id string) (provider.Quote, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	start := time.Now()
	q, err := s.source.FetchOne(ctx, symbol)
	if errors.Is(err, context.DeadlineExceeded) && provider.Kind(err) == "other" {
		err = &provider.NetworkError{Err: err}
	}
	s.metrics.ObserveSource("one", provider.Kind(err), start)
	if err != nil {
		s.log.Warn("price fetch failed", "symbol", symbol, "provider_id", id, "kind", provider.Kind(err), "error", err)
		return provider.Quote{}, err
	}
	q.ProviderID = id
	s.put(ctx, id, q)
	return q, nil
}

func (s *Service) put(ctx context.Context, id string, q provider.Quote) {
	e := s.cache.Put(id, q)
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(ctx, id, e); err != nil {
		s.log.Warn("mirror save failed", "provider_id", id, "error", err)
	}
}

// detach keeps the source call alive when the caller that started a shared
// flight goes away, and bounds it by the service timeout instead.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
