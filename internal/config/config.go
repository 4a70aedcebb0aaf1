package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Port              string `mapstructure:"port" json:"port"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" json:"request_timeout_sec"`
	ShutdownSec       int    `mapstructure:"shutdown_sec" json:"shutdown_sec"`
}

type CoinGecko struct {
	APIKey                string `mapstructure:"api_key" json:"api_key"`
	BaseURL               string `mapstructure:"base_url" json:"base_url"`
	MaxRequestsPerMinute  int    `mapstructure:"max_requests_per_minute" json:"max_requests_per_minute"`
	MinRequestIntervalSec int    `mapstructure:"min_request_interval_sec" json:"min_request_interval_sec"`
	Burst                 int    `mapstructure:"burst" json:"burst"`
}

type Pricing struct {
	CacheTTLSec     int `mapstructure:"cache_ttl_sec" json:"cache_ttl_sec"`
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" json:"fetch_timeout_sec"`
	// Symbols extends the built-in symbol table. An empty id removes a symbol.
	Symbols map[string]string `mapstructure:"symbols" json:"symbols"`
}

type Subscription struct {
	PollIntervalSec      int `mapstructure:"poll_interval_sec" json:"poll_interval_sec"`
	FreshnessIntervalSec int `mapstructure:"freshness_interval_sec" json:"freshness_interval_sec"`
}

type Conversion struct {
	Tokens         []string `mapstructure:"tokens" json:"tokens"`
	MinFiat        float64  `mapstructure:"min_fiat" json:"min_fiat"`
	MinTokenAmount float64  `mapstructure:"min_token_amount" json:"min_token_amount"`
	Decimals       int32    `mapstructure:"decimals" json:"decimals"`
}

type Redis struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
	Prefix   string `mapstructure:"prefix" json:"prefix"`
	TTLSec   int    `mapstructure:"ttl_sec" json:"ttl_sec"`
}

type Log struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

type Config struct {
	Server       Server       `mapstructure:"server" json:"server"`
	CoinGecko    CoinGecko    `mapstructure:"coingecko" json:"coingecko"`
	Pricing      Pricing      `mapstructure:"pricing" json:"pricing"`
	Subscription Subscription `mapstructure:"subscription" json:"subscription"`
	Conversion   Conversion   `mapstructure:"conversion" json:"conversion"`
	Redis        Redis        `mapstructure:"redis" json:"redis"`
	Log          Log          `mapstructure:"log" json:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10, ShutdownSec: 5},
		CoinGecko: CoinGecko{
			BaseURL:              "https://api.coingecko.com/api/v3",
			MaxRequestsPerMinute: 30,
			Burst:                5,
		},
		Pricing:      Pricing{CacheTTLSec: 60, FetchTimeoutSec: 10, Symbols: map[string]string{}},
		Subscription: Subscription{PollIntervalSec: 300, FreshnessIntervalSec: 1},
		Conversion: Conversion{
			Tokens:         []string{"ETH", "AVAX", "BTC", "USDC", "USDT"},
			MinFiat:        1,
			MinTokenAmount: 0.001,
			Decimals:       18,
		},
		Redis: Redis{Addr: "localhost:6379", Prefix: "vaultpricing:quote:", TTLSec: 86400},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// env maps config keys to the environment variables that override them.
var env = map[string]string{
	"server.port":                         "PORT",
	"server.request_timeout_sec":          "REQUEST_TIMEOUT_SEC",
	"server.shutdown_sec":                 "SHUTDOWN_SEC",
	"coingecko.api_key":                   "COINGECKO_API_KEY",
	"coingecko.base_url":                  "COINGECKO_BASE_URL",
	"coingecko.max_requests_per_minute":   "COINGECKO_MAX_RPM",
	"coingecko.min_request_interval_sec":  "COINGECKO_MIN_INTERVAL_SEC",
	"coingecko.burst":                     "COINGECKO_BURST",
	"pricing.cache_ttl_sec":               "PRICE_CACHE_TTL_SEC",
	"pricing.fetch_timeout_sec":           "PRICE_FETCH_TIMEOUT_SEC",
	"subscription.poll_interval_sec":      "PRICE_POLL_INTERVAL_SEC",
	"subscription.freshness_interval_sec": "PRICE_FRESHNESS_INTERVAL_SEC",
	"conversion.tokens":                   "CONVERSION_TOKENS",
	"conversion.min_fiat":                 "CONVERSION_MIN_FIAT",
	"conversion.min_token_amount":         "CONVERSION_MIN_TOKEN_AMOUNT",
	"redis.enabled":                       "REDIS_ENABLED",
	"redis.addr":                          "REDIS_ADDR",
	"redis.password":                      "REDIS_PASSWORD",
	"redis.db":                            "REDIS_DB",
	"redis.prefix":                        "REDIS_PREFIX",
	"log.level":                           "LOG_LEVEL",
	"log.format":                          "LOG_FORMAT",
}

// Load reads JSON config from path. If path is empty, config.json in the
// working directory is used when present; otherwise defaults apply.
// Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	v := viper.New()
	setDefaults(v, cfg)

	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	out.Conversion.Tokens = splitCSV(out.Conversion.Tokens)
	return out, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.request_timeout_sec", cfg.Server.RequestTimeoutSec)
	v.SetDefault("server.shutdown_sec", cfg.Server.ShutdownSec)
	v.SetDefault("coingecko.api_key", cfg.CoinGecko.APIKey)
	v.SetDefault("coingecko.base_url", cfg.CoinGecko.BaseURL)
	v.SetDefault("coingecko.max_requests_per_minute", cfg.CoinGecko.MaxRequestsPerMinute)
	v.SetDefault("coingecko.min_request_interval_sec", cfg.CoinGecko.MinRequestIntervalSec)
	v.SetDefault("coingecko.burst", cfg.CoinGecko.Burst)
	v.SetDefault("pricing.cache_ttl_sec", cfg.Pricing.CacheTTLSec)
	v.SetDefault("pricing.fetch_timeout_sec", cfg.Pricing.FetchTimeoutSec)
	v.SetDefault("pricing.symbols", map[string]string{})
	v.SetDefault("subscription.poll_interval_sec", cfg.Subscription.PollIntervalSec)
	v.SetDefault("subscription.freshness_interval_sec", cfg.Subscription.FreshnessIntervalSec)
	v.SetDefault("conversion.tokens", cfg.Conversion.Tokens)
	v.SetDefault("conversion.min_fiat", cfg.Conversion.MinFiat)
	v.SetDefault("conversion.min_token_amount", cfg.Conversion.MinTokenAmount)
	v.SetDefault("conversion.decimals", cfg.Conversion.Decimals)
	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.prefix", cfg.Redis.Prefix)
	v.SetDefault("redis.ttl_sec", cfg.Redis.TTLSec)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

func (s Server) RequestTimeout() time.Duration { return seconds(s.RequestTimeoutSec) }

func (s Server) ShutdownTimeout() time.Duration { return seconds(s.ShutdownSec) }

func (c CoinGecko) MinRequestInterval() time.Duration { return seconds(c.MinRequestIntervalSec) }

func (p Pricing) CacheTTL() time.Duration { return seconds(p.CacheTTLSec) }

func (p Pricing) FetchTimeout() time.Duration { return seconds(p.FetchTimeoutSec) }

func (s Subscription) PollInterval() time.Duration { return seconds(s.PollIntervalSec) }

func (s Subscription) FreshnessInterval() time.Duration { return seconds(s.FreshnessIntervalSec) }

func (r Redis) TTL() time.Duration { return seconds(r.TTLSec) }

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// splitCSV flattens entries that arrive comma-separated from the environment.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
