package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"vaultpricing/internal/app"
	"vaultpricing/internal/config"
	"vaultpricing/internal/metrics"
	"vaultpricing/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := app.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(log)

	if cfg.CoinGecko.APIKey == "" {
		log.Warn("COINGECKO_API_KEY not set; using the public tier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	p := app.NewPricing(ctx, cfg, m, log)
	defer p.Close()

	tokens := app.NewFacade(p.Service, cfg, log)
	tokens.Mount(ctx)
	defer tokens.Unmount()

	gin.SetMode(gin.ReleaseMode)
	h := server.NewHandler(p.Service, tokens,
		server.WithGatherer(reg),
		server.WithRequestTimeout(cfg.Server.RequestTimeout()),
		server.WithLogger(log),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening",
			"port", cfg.Server.Port,
			"tokens", tokens.Symbols(),
			"cache_ttl", p.Cache.TTL(),
			"redis", cfg.Redis.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "error", err)
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	shutdown := cfg.Server.ShutdownTimeout()
	if shutdown <= 0 {
		shutdown = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "error", err)
	}
}
