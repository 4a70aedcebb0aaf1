package provider

import (
	"context"
	"time"
)

// Quote is the normalized spot price returned by every Source.
// It is a value type; copies never alias.
type Quote struct {
	Symbol       string    `json:"symbol"`
	ProviderID   string    `json:"provider_id"`
	Price        float64   `json:"price"`
	Change24h    float64   `json:"change_24h,omitempty"`
	HasChange24h bool      `json:"has_change_24h"`
	ObservedAt   time.Time `json:"observed_at"`
}

// WithSymbol returns a copy of q labelled with symbol. Two symbols that map to
// the same provider id share one cached quote, so callers relabel on the way out.
func (q Quote) WithSymbol(symbol string) Quote {
	q.Symbol = symbol
	return q
}

// Source fetches spot prices from an external price API.
//
//go:generate mockgen -package=pricing_test -destination=../pricing/mock_source_test.go -source=provider.go Source
type Source interface {
	// FetchOne returns ErrNotSupported without any network call when symbol
	// has no provider id.
	FetchOne(ctx context.Context, symbol string) (Quote, error)
	// FetchMany issues a single request. Symbols that are unsupported or
	// missing from the response are absent from the result.
	FetchMany(ctx context.Context, symbols []string) (map[string]Quote, error)
}
