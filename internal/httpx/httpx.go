package httpx

import (
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "vaultpricing/1.0"

// Client is the outbound client for price providers. It satisfies
// coingecko.HTTPClient and stamps every request with the default headers it
// doesn't already carry.
type Client struct {
	http   *http.Client
	header http.Header
}

type Option func(*Client)

// WithHeader adds default headers. Later values for the same key win.
func WithHeader(h http.Header) Option {
	return func(c *Client) {
		for k, v := range h {
			c.header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua == "" {
			c.header.Del("User-Agent")
			return
		}
		c.header.Set("User-Agent", ua)
	}
}

// WithTransport replaces the pooled transport, mostly for tests.
func WithTransport(rt http.RoundTripper) Option { return func(c *Client) { c.http.Transport = rt } }

// New returns a client whose whole request, body included, is bounded by
// timeout. The pool is sized for a handful of provider hosts.
func New(timeout time.Duration, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	c := &Client{
		http:   &http.Client{Timeout: timeout, Transport: transport},
		header: http.Header{"User-Agent": {DefaultUserAgent}, "Accept": {"application/json"}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Header returns a copy of the default headers.
func (c *Client) Header() http.Header { return c.header.Clone() }

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for k, v := range c.header {
		if _, set := req.Header[k]; !set {
			req.Header[k] = append([]string(nil), v...)
		}
	}
	return c.http.Do(req)
}
