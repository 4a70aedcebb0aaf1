package conversion

import (
	"context"
	"strings"

	"vaultpricing/internal/provider"
	"vaultpricing/internal/subscription"
)

// DefaultTokens are the tokens a Facade serves when none are configured.
var DefaultTokens = []string{"ETH", "AVAX", "BTC", "USDC", "USDT"}

// Handle is the conversion view of one token. The zero Handle and handles for
// unsupported tokens are disabled.
type Handle struct {
	symbol string
	engine *Engine
	sub    *subscription.Subscription
}

func (h Handle) Symbol() string { return h.symbol }

func (h Handle) Enabled() bool { return h.engine != nil }

func (h Handle) Convert(fiat string) Result {
	if h.engine == nil {
		return Result{ValidationError: UnsupportedToken}
	}
	return h.engine.Convert(fiat)
}

func (h Handle) ConvertAmount(fiat float64) Result {
	if h.engine == nil {
		return Result{ValidationError: UnsupportedToken}
	}
	return h.engine.ConvertAmount(fiat)
}

func (h Handle) State() subscription.State {
	if h.sub == nil {
		return subscription.State{Symbol: h.symbol}
	}
	return h.sub.State()
}

// Subscription returns the token's subscription, or nil for a disabled handle.
func (h Handle) Subscription() *subscription.Subscription { return h.sub }

// Refetch refreshes the token's price. It does nothing for a disabled handle.
func (h Handle) Refetch(ctx context.Context) subscription.State {
	if h.sub == nil {
		return h.State()
	}
	return h.sub.Refetch(ctx)
}

// Resolver maps a token symbol to its price provider id. provider.Symbols
// implements it.
type Resolver interface {
	Resolve(symbol string) (string, bool)
}

// Facade holds one engine and subscription per supported token, built up front
// so switching tokens never sets up a new subscription.
type Facade struct {
	order   []string
	handles map[string]Handle
}

// NewFacade builds handles for tokens. Tokens that symbols cannot resolve get no
// subscription and stay disabled, like any other unsupported token. A nil
// symbols uses provider.DefaultSymbols.
func NewFacade(fetcher subscription.Fetcher, symbols Resolver, tokens []string, cfg Config, opts ...subscription.Option) *Facade {
	if symbols == nil {
		symbols = provider.DefaultSymbols()
	}
	if len(tokens) == 0 {
		tokens = DefaultTokens
	}
	f := &Facade{handles: make(map[string]Handle, len(tokens))}
	for _, t := range tokens {
		sym := normalize(t)
		if sym == "" {
			continue
		}
		if _, dup := f.handles[sym]; dup {
			continue
		}
		if _, ok := symbols.Resolve(sym); !ok {
			continue
		}
		sub := subscription.New(sym, fetcher, opts...)
		f.handles[sym] = Handle{symbol: sym, engine: New(sym, sub, cfg), sub: sub}
		f.order = append(f.order, sym)
	}
	return f
}

// ForToken returns the handle for symbol. Unknown symbols get a disabled
// handle whose conversions always fail with UnsupportedToken.
func (f *Facade) ForToken(symbol string) Handle {
	sym := normalize(symbol)
	if h, ok := f.handles[sym]; ok {
		return h
	}
	return Handle{symbol: sym}
}

func (f *Facade) Supports(symbol string) bool {
	_, ok := f.handles[normalize(symbol)]
	return ok
}

// Symbols returns the supported tokens in configured order.
func (f *Facade) Symbols() []string {
	return append([]string(nil), f.order...)
}

// ConvertAll converts fiat into every supported token.
func (f *Facade) ConvertAll(fiat string) map[string]Result {
	out := make(map[string]Result, len(f.handles))
	for sym, h := range f.handles {
		out[sym] = h.Convert(fiat)
	}
	return out
}

func (f *Facade) Mount(ctx context.Context) {
	for _, sym := range f.order {
		f.handles[sym].sub.Mount(ctx)
	}
}

func (f *Facade) Unmount() {
	for _, sym := range f.order {
		f.handles[sym].sub.Unmount()
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
