// Package currency converts prices between a market's native currency and
// the base currency an order sheet is denominated in.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/shopspring/decimal"
)

// DefaultBase is the base currency of the reference deployment.
const DefaultBase = "KRW"

// ErrInvalidExchangeRate is wrapped when a rate is missing, non-positive,
// or the base rate is not exactly 1.
var ErrInvalidExchangeRate = errors.New("invalid exchange rate")

// marketCurrencies is a static fact table of market → native currency.
var marketCurrencies = map[string]string{
	"KR":     "KRW",
	"KRX":    "KRW",
	"KOSPI":  "KRW",
	"KOSDAQ": "KRW",
	"US":     "USD",
	"NASDAQ": "USD",
	"NYSE":   "USD",
	"AMEX":   "USD",
	"HK":     "HKD",
	"HKEX":   "HKD",
	"JP":     "JPY",
	"TSE":    "JPY",
}

// ForMarket returns the native currency of a market code.
func ForMarket(market string) (string, bool) {
	c, ok := marketCurrencies[strings.ToUpper(strings.TrimSpace(market))]
	return c, ok
}

// Normalizer converts amounts against a fixed base currency.
type Normalizer struct {
	base string
}

// NewNormalizer creates a Normalizer for base (e.g. "KRW").
func NewNormalizer(base string) *Normalizer {
	if base == "" {
		base = DefaultBase
	}
	return &Normalizer{base: strings.ToUpper(base)}
}

// Base returns the base currency code.
func (n *Normalizer) Base() string {
	return n.base
}

func (n *Normalizer) rate(currency string, rates map[string]decimal.Decimal) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)

	baseRate, ok := rates[n.base]
	if !ok || !baseRate.Equal(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: base currency %s must have rate 1", ErrInvalidExchangeRate, n.base)
	}
	if currency == n.base {
		return baseRate, nil
	}

	r, ok := rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", ErrInvalidExchangeRate, currency)
	}
	if !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: rate for %s must be positive, got %s", ErrInvalidExchangeRate, currency, r)
	}
	return r, nil
}

// ToBase converts price quoted in currency into the base currency.
func (n *Normalizer) ToBase(price decimal.Decimal, currency string, rates map[string]decimal.Decimal) (decimal.Decimal, error) {
	r, err := n.rate(currency, rates)
	if err != nil {
		return decimal.Zero, err
	}
	return price.Mul(r), nil
}

// FromBase converts an amount in the base currency into currency.
func (n *Normalizer) FromBase(amount decimal.Decimal, currency string, rates map[string]decimal.Decimal) (decimal.Decimal, error) {
	r, err := n.rate(currency, rates)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(r), nil
}

// StaticRates is a RateSource backed by a fixed table, typically the [fx] config section.
type StaticRates struct {
	rates map[string]decimal.Decimal
}

// NewStaticRates builds a StaticRates from float config values.
func NewStaticRates(table map[string]float64) *StaticRates {
	rates := make(map[string]decimal.Decimal, len(table))
	for k, v := range table {
		rates[strings.ToUpper(k)] = decimal.NewFromFloat(v)
	}
	return &StaticRates{rates: rates}
}

// Rates returns a copy of the table.
func (s *StaticRates) Rates(_ context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out, nil
}

var _ interfaces.RateSource = (*StaticRates)(nil)
