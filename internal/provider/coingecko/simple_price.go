package coingecko

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"vaultpricing/internal/provider"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Price is one entry of a /simple/price response.
type Price struct {
	USD          float64
	Change24h    float64
	HasChange24h bool
}

// SimplePrice retrieves USD spot prices and 24h change for ids in one request.
// Ids the API does not return, or returns without a positive usd price, are
// absent from the result.
//
// Transport failures are returned as *provider.NetworkError; non-2xx statuses
// and undecodable payloads as *provider.ProviderError.
func (c *Client) SimplePrice(ctx context.Context, ids []string, opts ...Option) (map[string]Price, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")

	url := fmt.Sprintf("%s/simple/price?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("Accept", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, &provider.NetworkError{Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, &provider.NetworkError{Err: fmt.Errorf("reading body: %w", err)}
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:

	case res.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.ProviderError{StatusCode: res.StatusCode, Msg: "rate limited"}

	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return nil, &provider.ProviderError{StatusCode: res.StatusCode, Msg: "unauthorized"}

	default:
		return nil, &provider.ProviderError{StatusCode: res.StatusCode, Msg: snippet(body)}
	}

	return parseSimplePrice(body)
}

func parseSimplePrice(body []byte) (map[string]Price, error) {
	if !gjson.ValidBytes(body) {
		return nil, &provider.ProviderError{Msg: "malformed payload"}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, &provider.ProviderError{Msg: "payload is not an object"}
	}

	out := make(map[string]Price)
	root.ForEach(func(key, value gjson.Result) bool {
		usd := value.Get("usd")
		if usd.Type != gjson.Number || usd.Float() <= 0 {
			return true
		}
		p := Price{USD: usd.Float()}
		if ch := value.Get("usd_24h_change"); ch.Type == gjson.Number {
			p.Change24h = ch.Float()
			p.HasChange24h = true
		}
		out[key.String()] = p
		return true
	})
	return out, nil
}

func snippet(b []byte) string {
	const limit = 2 << 10
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit]
	}
	if s == "" {
		return "unexpected status"
	}
	return s
}
