package provider

import (
	"maps"
	"sort"
	"strings"
)

// Symbols maps internal ticker symbols to provider identifiers.
// Keys are stored upper-cased.
type Symbols map[string]string

// DefaultSymbols is the built-in CoinGecko table.
func DefaultSymbols() Symbols {
	return Symbols{
		"ETH":  "ethereum",
		"AVAX": "avalanche-2",
		"BTC":  "bitcoin",
		"USDC": "usd-coin",
		"USDT": "tether",
	}
}

// NewSymbols returns the default table extended (or overridden) by extra.
// An empty provider id in extra removes the symbol, which is how a token
// pending a provider listing is declared.
func NewSymbols(extra map[string]string) Symbols {
	s := DefaultSymbols()
	for sym, id := range extra {
		key := normalize(sym)
		if key == "" {
			continue
		}
		id = strings.TrimSpace(id)
		if id == "" {
			delete(s, key)
			continue
		}
		s[key] = id
	}
	return s
}

// Resolve returns the provider id for symbol.
func (s Symbols) Resolve(symbol string) (string, bool) {
	id, ok := s[normalize(symbol)]
	return id, ok && id != ""
}

// List returns the known symbols in sorted order.
func (s Symbols) List() []string {
	out := make([]string, 0, len(s))
	for k := range maps.Keys(s) {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }
