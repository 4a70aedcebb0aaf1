package coingeckoadapter

import (
	"context"
	"fmt"
	"time"

	"vaultpricing/internal/provider"
	"vaultpricing/internal/provider/coingecko"
)

// PriceAPI is the subset of the CoinGecko client the adapter uses.
type PriceAPI interface {
	SimplePrice(ctx context.Context, ids []string, opts ...coingecko.Option) (map[string]coingecko.Price, error)
}

// Adapter implements provider.Source on top of CoinGecko /simple/price.
// It is stateless apart from the symbol table.
type Adapter struct {
	symbols provider.Symbols
	client  PriceAPI
	now     func() time.Time
}

func New(symbols provider.Symbols, client PriceAPI) *Adapter {
	if symbols == nil {
		symbols = provider.DefaultSymbols()
	}
	return &Adapter{symbols: symbols, client: client, now: time.Now}
}

func (a *Adapter) FetchOne(ctx context.Context, symbol string) (provider.Quote, error) {
	id, ok := a.symbols.Resolve(symbol)
	if !ok {
		return provider.Quote{}, fmt.Errorf("%s: %w", symbol, provider.ErrNotSupported)
	}
	prices, err := a.client.SimplePrice(ctx, []string{id})
	if err != nil {
		return provider.Quote{}, err
	}
	p, ok := prices[id]
	if !ok {
		return provider.Quote{}, &provider.ProviderError{Msg: fmt.Sprintf("no usd price for %s", id)}
	}
	return a.quote(symbol, id, p), nil
}

func (a *Adapter) FetchMany(ctx context.Context, symbols []string) (map[string]provider.Quote, error) {
	// several symbols may share one provider id; request each id once
	idBySymbol := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		id, ok := a.symbols.Resolve(s)
		if !ok {
			continue
		}
		idBySymbol[s] = id
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	out := make(map[string]provider.Quote, len(idBySymbol))
	if len(ids) == 0 {
		return out, nil
	}

	prices, err := a.client.SimplePrice(ctx, ids)
	if err != nil {
		return nil, err
	}
	for s, id := range idBySymbol {
		if p, ok := prices[id]; ok {
			out[s] = a.quote(s, id, p)
		}
	}
	return out, nil
}

func (a *Adapter) quote(symbol, id string, p coingecko.Price) provider.Quote {
	return provider.Quote{
		Symbol:       symbol,
		ProviderID:   id,
		Price:        p.USD,
		Change24h:    p.Change24h,
		HasChange24h: p.HasChange24h,
		ObservedAt:   a.now().UTC(),
	}
}
