package conversion

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"vaultpricing/internal/subscription"
)

type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	BelowMinimum
	AmountTooSmall
	PriceUnavailable
	UnsupportedToken
	AmountTooLarge
)

const (
	// maxInputLen and maxExponent bound what Convert will parse. Larger
	// exponents make the decimal rescaling arbitrarily expensive.
	maxInputLen = 128
	maxExponent = 80
	// maxFixedBits is the width of the on-chain amount.
	maxFixedBits = 256
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return ""
	case BelowMinimum:
		return "below_minimum"
	case AmountTooSmall:
		return "amount_too_small"
	case PriceUnavailable:
		return "price_unavailable"
	case UnsupportedToken:
		return "unsupported_token"
	case AmountTooLarge:
		return "amount_too_large"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Result is one conversion of a fiat amount into a token quantity.
// FixedPoint is non-nil only when HasTokenAmount is set and ValidationError is
// ErrorNone.
type Result struct {
	TokenAmount     float64
	HasTokenAmount  bool
	Formatted       string
	FixedPoint      *big.Int
	ValidationError ErrorKind
	IsLoading       bool
	Err             string
}

// Valid reports whether the result can be submitted.
func (r Result) Valid() bool { return r.FixedPoint != nil }

func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		TokenAmount     *float64  `json:"token_amount"`
		Formatted       string    `json:"formatted"`
		FixedPoint      string    `json:"fixed_point,omitempty"`
		ValidationError ErrorKind `json:"validation_error,omitempty"`
		IsLoading       bool      `json:"is_loading"`
		Err             string    `json:"error,omitempty"`
	}{
		Formatted:       r.Formatted,
		ValidationError: r.ValidationError,
		IsLoading:       r.IsLoading,
		Err:             r.Err,
	}
	if r.HasTokenAmount {
		amount := r.TokenAmount
		out.TokenAmount = &amount
	}
	if r.FixedPoint != nil {
		out.FixedPoint = r.FixedPoint.String()
	}
	return json.Marshal(out)
}

type Config struct {
	// MinFiat is the smallest accepted fiat amount in USD.
	MinFiat float64
	// MinTokenAmount is the smallest accepted token quantity.
	MinTokenAmount float64
	// Decimals is the fixed-point scale.
	Decimals int32
}

func DefaultConfig() Config {
	return Config{MinFiat: 1, MinTokenAmount: 0.001, Decimals: 18}
}

// PriceReader is the read side of a price subscription.
type PriceReader interface {
	State() subscription.State
}

// Engine converts fiat amounts into token amounts using the live price of one
// symbol. It holds no state besides its config.
type Engine struct {
	symbol   string
	prices   PriceReader
	minFiat  decimal.Decimal
	minToken decimal.Decimal
	decimals int32
}

func New(symbol string, prices PriceReader, cfg Config) *Engine {
	if cfg.Decimals <= 0 {
		cfg.Decimals = DefaultConfig().Decimals
	}
	return &Engine{
		symbol:   symbol,
		prices:   prices,
		minFiat:  decimal.NewFromFloat(cfg.MinFiat),
		minToken: decimal.NewFromFloat(cfg.MinTokenAmount),
		decimals: cfg.Decimals,
	}
}

func (e *Engine) Symbol() string { return e.symbol }

// Convert parses fiat as a decimal USD amount. Empty, non-numeric or
// unreasonably long input yields an empty result without a validation error.
func (e *Engine) Convert(fiat string) Result {
	fiat = strings.TrimSpace(fiat)
	if fiat == "" || len(fiat) > maxInputLen {
		return e.empty()
	}
	d, err := decimal.NewFromString(fiat)
	if err != nil {
		return e.empty()
	}
	return e.convert(d)
}

func (e *Engine) ConvertAmount(fiat float64) Result {
	if math.IsNaN(fiat) || math.IsInf(fiat, 0) {
		return e.empty()
	}
	return e.convert(decimal.NewFromFloat(fiat))
}

func (e *Engine) empty() Result {
	st := e.prices.State()
	return Result{IsLoading: st.IsLoading(), Err: st.Err}
}

func (e *Engine) convert(fiat decimal.Decimal) Result {
	res := e.empty()
	if exp := fiat.Exponent(); exp > maxExponent || exp < -maxExponent {
		return res
	}
	if !fiat.IsPositive() {
		res.ValidationError = BelowMinimum
		return res
	}

	price, ok := e.prices.State().Price()
	var fixed *big.Int
	if ok && price > 0 {
		// Integer division truncates toward zero, so the fixed-point amount
		// never exceeds what the fiat amount buys.
		q, _ := fiat.Shift(e.decimals).QuoRem(decimal.NewFromFloat(price), 0)
		fixed = q.BigInt()
		if fixed.BitLen() > maxFixedBits {
			res.ValidationError = AmountTooLarge
			return res
		}
		amount := decimal.NewFromBigInt(fixed, -e.decimals)
		res.TokenAmount = amount.InexactFloat64()
		res.HasTokenAmount = true
		res.Formatted = format(amount)
	}

	switch {
	case fiat.LessThan(e.minFiat):
		res.ValidationError = BelowMinimum
	case !res.HasTokenAmount:
		res.ValidationError = PriceUnavailable
	case decimal.NewFromBigInt(fixed, -e.decimals).LessThan(e.minToken):
		res.ValidationError = AmountTooSmall
	default:
		res.FixedPoint = fixed
	}
	return res
}

// format keeps at least 2 fractional digits, and at most 4 for amounts of one
// token or more, 8 below that.
func format(amount decimal.Decimal) string {
	places := int32(8)
	if amount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		places = 4
	}
	s := amount.Round(places).String()
	if i := strings.IndexByte(s, '.'); i < 0 || len(s)-i-1 < 2 {
		return amount.Round(places).StringFixed(2)
	}
	return s
}
