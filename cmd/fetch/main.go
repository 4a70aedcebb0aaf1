package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"vaultpricing/internal/app"
	"vaultpricing/internal/config"
	"vaultpricing/internal/conversion"
	"vaultpricing/internal/provider"
)

type output struct {
	Prices     map[string]provider.Quote `json:"prices"`
	Missing    []string                  `json:"missing"`
	Conversion *conversionOutput         `json:"conversion,omitempty"`
}

type conversionOutput struct {
	Token  string            `json:"token"`
	Amount string            `json:"amount"`
	Result conversion.Result `json:"result"`
}

func main() {
	_ = godotenv.Load()
	os.Exit(run())
}

func run() int {
	var symbolsCSV string
	var amount string
	var token string
	var timeout int
	var configPath string

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "ETH,AVAX,BTC,USDC,USDT"), "comma-separated token symbols")
	flag.StringVar(&amount, "amount", "", "USD amount to convert (optional)")
	flag.StringVar(&token, "token", "ETH", "token to convert -amount into")
	flag.IntVar(&timeout, "timeout", 15, "overall timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := app.NewLogger(os.Stderr, cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	p := app.NewPricing(ctx, cfg, nil, log)
	defer p.Close()

	symbols := splitCSV(symbolsCSV)
	out := output{Prices: p.Service.GetPrices(ctx, symbols), Missing: []string{}}
	for _, s := range symbols {
		if _, ok := out.Prices[s]; !ok {
			out.Missing = append(out.Missing, s)
		}
	}

	if amount != "" {
		// the batch above already filled the cache, so this is normally a hit
		tokens := app.NewFacade(p.Service, cfg, log)
		h := tokens.ForToken(token)
		if sub := h.Subscription(); sub != nil {
			sub.Mount(ctx)
			h.Refetch(ctx)
			sub.Unmount()
		}
		out.Conversion = &conversionOutput{Token: h.Symbol(), Amount: amount, Result: h.Convert(amount)}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		return 1
	}
	if len(out.Prices) == 0 {
		return 2
	}
	return 0
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
