package server

import (
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"vaultpricing/internal/conversion"
	"vaultpricing/internal/provider"
	"vaultpricing/internal/provider/cache"
)

// maxSymbols caps a batch price request.
const maxSymbols = 1000

// Prices is the read side of the price fetch service.
type Prices interface {
	GetPrice(ctx context.Context, symbol string) (provider.Quote, bool)
	GetPrices(ctx context.Context, symbols []string) map[string]provider.Quote
	LastKnown(symbol string) (cache.Entry, bool)
}

// Handler serves prices and conversions over HTTP and WebSocket.
type Handler struct {
	prices  Prices
	tokens  *conversion.Facade
	gather  prometheus.Gatherer
	timeout time.Duration
	log     *slog.Logger
}

type Option func(*Handler)

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option { return func(h *Handler) { h.gather = g } }

// WithRequestTimeout bounds every API request.
func WithRequestTimeout(d time.Duration) Option { return func(h *Handler) { h.timeout = d } }

func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.log = l } }

func NewHandler(prices Prices, tokens *conversion.Facade, opts ...Option) *Handler {
	h := &Handler{
		prices:  prices,
		tokens:  tokens,
		gather:  prometheus.DefaultGatherer,
		timeout: 15 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	e := gin.New()
	e.Use(h.recoverPanic(), h.requestLog(), cors())
	h.RegisterRoutes(e)
	return e
}

func (h *Handler) RegisterRoutes(e *gin.Engine) {
	e.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gather, promhttp.HandlerOpts{})))
	e.GET("/ws/prices", h.StreamPrices)

	api := e.Group("/api", withGzip(), h.withTimeout())
	api.GET("/prices", h.GetPrices)
	api.GET("/prices/:symbol", h.GetPrice)
	api.GET("/convert", h.Convert)
	api.GET("/tokens", h.Tokens)
}

// cors allows browser usage from any origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// recoverPanic protects handlers from panics.
func (h *Handler) recoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("handler panic", "path", c.Request.URL.Path, "panic", rec)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

var gzPool = sync.Pool{New: func() any {
	// JSON payloads are small, so speed wins over ratio
	w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
	return w
}}

// withGzip compresses responses when the client supports gzip.
func withGzip() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(c.Writer)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		c.Header("Content-Encoding", "gzip")
		c.Writer.Header().Add("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{ResponseWriter: c.Writer, w: gz}
		c.Next()
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	w io.Writer
}

func (g *gzipWriter) Write(b []byte) (int, error) { return g.w.Write(b) }

func (g *gzipWriter) WriteString(s string) (int, error) { return io.WriteString(g.w, s) }
