package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"vaultpricing/internal/conversion"
	"vaultpricing/internal/provider"
	"vaultpricing/internal/subscription"
)

type pricesResponse struct {
	Prices  map[string]provider.Quote `json:"prices"`
	Missing []string                  `json:"missing"`
}

type priceResponse struct {
	Quote    provider.Quote `json:"quote"`
	Stale    bool           `json:"stale"`
	CachedAt *time.Time     `json:"cached_at,omitempty"`
}

type convertResponse struct {
	Symbol string            `json:"symbol"`
	Amount string            `json:"amount"`
	Result conversion.Result `json:"result"`
}

type tokenResponse struct {
	Symbol string             `json:"symbol"`
	State  subscription.State `json:"state"`
}

// GetPrices returns fresh or newly fetched quotes for ?symbols=ETH,BTC.
// Symbols without a price are listed under missing.
func (h *Handler) GetPrices(c *gin.Context) {
	q := c.Query("symbols")
	if strings.TrimSpace(q) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing symbols query param"})
		return
	}
	symbols := splitCSV(q)
	if len(symbols) > maxSymbols {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many symbols (max 1000)"})
		return
	}

	got := h.prices.GetPrices(c.Request.Context(), symbols)
	resp := pricesResponse{Prices: got, Missing: []string{}}
	for _, s := range symbols {
		if _, ok := got[s]; !ok {
			resp.Missing = append(resp.Missing, s)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetPrice returns the quote for one symbol, falling back to the last known
// quote flagged as stale.
func (h *Handler) GetPrice(c *gin.Context) {
	symbol := normalize(c.Param("symbol"))
	if q, ok := h.prices.GetPrice(c.Request.Context(), symbol); ok {
		c.JSON(http.StatusOK, priceResponse{Quote: q})
		return
	}
	if e, ok := h.prices.LastKnown(symbol); ok {
		cachedAt := e.CachedAt
		c.JSON(http.StatusOK, priceResponse{Quote: e.Quote.WithSymbol(symbol), Stale: true, CachedAt: &cachedAt})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "price unavailable", "symbol": symbol})
}

// Convert converts ?amount= USD into ?symbol= using the live subscription.
// Validation problems are part of the result, not HTTP errors.
func (h *Handler) Convert(c *gin.Context) {
	symbol := normalize(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing symbol query param"})
		return
	}
	amount := c.Query("amount")
	c.JSON(http.StatusOK, convertResponse{
		Symbol: symbol,
		Amount: amount,
		Result: h.tokens.ForToken(symbol).Convert(amount),
	})
}

// Tokens lists the convertible tokens with their subscription state.
func (h *Handler) Tokens(c *gin.Context) {
	syms := h.tokens.Symbols()
	out := make([]tokenResponse, 0, len(syms))
	for _, s := range syms {
		out = append(out, tokenResponse{Symbol: s, State: h.tokens.ForToken(s).State()})
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

func normalize(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = normalize(p)
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
