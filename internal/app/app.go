package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"vaultpricing/internal/config"
	"vaultpricing/internal/conversion"
	"vaultpricing/internal/httpx"
	"vaultpricing/internal/metrics"
	"vaultpricing/internal/pricing"
	"vaultpricing/internal/provider"
	"vaultpricing/internal/provider/cache"
	"vaultpricing/internal/provider/coingecko"
	"vaultpricing/internal/provider/coingeckoadapter"
	"vaultpricing/internal/provider/ratelimit"
	"vaultpricing/internal/provider/redisstore"
	"vaultpricing/internal/subscription"
)

// NewLogger builds the process logger from the log section of the config.
func NewLogger(w io.Writer, cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Pricing is the wired price pipeline: source, cache, optional mirror and
// the fetch service on top.
type Pricing struct {
	Service *pricing.Service
	Cache   *cache.Cache
	Symbols provider.Symbols

	redis redis.UniversalClient
}

// Close releases the Redis connection, if any.
func (p *Pricing) Close() error {
	if p.redis == nil {
		return nil
	}
	return p.redis.Close()
}

// NewPricing wires CoinGecko behind the rate limiter, the shared cache and,
// when enabled, the Redis mirror. A mirror that can't be reached is logged and
// skipped; prices then start cold.
func NewPricing(ctx context.Context, cfg config.Config, m *metrics.Metrics, log *slog.Logger) *Pricing {
	symbols := provider.NewSymbols(cfg.Pricing.Symbols)

	httpClient := httpx.New(cfg.Server.RequestTimeout())
	cgOpts := []coingecko.Option{coingecko.WithHTTPClient(httpClient)}
	if cfg.CoinGecko.BaseURL != "" {
		cgOpts = append(cgOpts, coingecko.WithBaseURL(strings.TrimSuffix(cfg.CoinGecko.BaseURL, "/")))
	}
	cg := coingecko.NewClient(cfg.CoinGecko.APIKey, cgOpts...)
	var src provider.Source = coingeckoadapter.New(symbols, cg)
	src = ratelimit.Wrap(src, cfg.CoinGecko.MaxRequestsPerMinute, cfg.CoinGecko.Burst, cfg.CoinGecko.MinRequestInterval())

	ttl := cfg.Pricing.CacheTTL()
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	c := cache.New(ttl)

	opts := []pricing.Option{pricing.WithMetrics(m), pricing.WithLogger(log)}
	if d := cfg.Pricing.FetchTimeout(); d > 0 {
		opts = append(opts, pricing.WithTimeout(d))
	}

	p := &Pricing{Cache: c, Symbols: symbols}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisstore.New(client, cfg.Redis.Prefix, cfg.Redis.TTL())
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("redis mirror unavailable; continuing without it", "addr", cfg.Redis.Addr, "error", err)
			_ = client.Close()
		} else {
			p.redis = client
			opts = append(opts, pricing.WithMirror(store))
		}
	}

	p.Service = pricing.NewService(src, c, symbols, opts...)
	if p.redis != nil {
		n, err := p.Service.Warm(ctx)
		if err != nil {
			log.Warn("warming cache from redis failed", "error", err)
		} else {
			log.Info("cache warmed from redis", "entries", n)
		}
	}
	return p
}

// NewFacade builds the conversion facade over svc with the configured tokens
// and timers.
func NewFacade(svc *pricing.Service, cfg config.Config, log *slog.Logger) *conversion.Facade {
	var subOpts []subscription.Option
	subOpts = append(subOpts, subscription.WithLogger(log))
	if d := cfg.Subscription.PollInterval(); d > 0 {
		subOpts = append(subOpts, subscription.WithPollInterval(d))
	}
	if d := cfg.Subscription.FreshnessInterval(); d > 0 {
		subOpts = append(subOpts, subscription.WithFreshnessInterval(d))
	}
	return conversion.NewFacade(svc, svc.Symbols(), cfg.Conversion.Tokens, ConversionConfig(cfg.Conversion), subOpts...)
}

func ConversionConfig(c config.Conversion) conversion.Config {
	return conversion.Config{MinFiat: c.MinFiat, MinTokenAmount: c.MinTokenAmount, Decimals: c.Decimals}
}
