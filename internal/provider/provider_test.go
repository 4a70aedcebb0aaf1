package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"vaultpricing/internal/provider"
)

func TestSymbols_ResolveDefaults(t *testing.T) {
	t.Parallel()

	s := provider.DefaultSymbols()

	id, ok := s.Resolve("AVAX")
	require.True(t, ok)
	require.Equal(t, "avalanche-2", id)

	// Assert: lookup ignores case and surrounding whitespace.
	id, ok = s.Resolve(" eth ")
	require.True(t, ok)
	require.Equal(t, "ethereum", id)

	_, ok = s.Resolve("DOGE")
	require.False(t, ok)
}

func TestNewSymbols_ExtendsAndRemoves(t *testing.T) {
	t.Parallel()

	s := provider.NewSymbols(map[string]string{
		"link": "chainlink",
		"USDT": "",
	})

	id, ok := s.Resolve("LINK")
	require.True(t, ok)
	require.Equal(t, "chainlink", id)

	_, ok = s.Resolve("USDT")
	require.False(t, ok)

	require.Equal(t, []string{"AVAX", "BTC", "ETH", "LINK", "USDC"}, s.List())
}

func TestQuote_WithSymbolCopies(t *testing.T) {
	t.Parallel()

	q := provider.Quote{Symbol: "ETH", ProviderID: "ethereum", Price: 2000}
	r := q.WithSymbol("WETH")

	require.Equal(t, "WETH", r.Symbol)
	require.Equal(t, "ETH", q.Symbol)
	require.Equal(t, q.Price, r.Price)
}

func TestKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"ok":            nil,
		"not_supported": fmt.Errorf("fetch DOGE: %w", provider.ErrNotSupported),
		"network":       &provider.NetworkError{Err: context.DeadlineExceeded},
		"provider":      fmt.Errorf("wrapped: %w", &provider.ProviderError{StatusCode: 429, Msg: "rate limited"}),
		"other":         errors.New("boom"),
	}
	for want, err := range cases {
		require.Equal(t, want, provider.Kind(err), "error %v", err)
	}

	// Assert: NetworkError keeps its cause reachable.
	require.ErrorIs(t, &provider.NetworkError{Err: context.DeadlineExceeded}, context.DeadlineExceeded)
}
