// Package domain defines core data structures shared across the platform.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// CurrencyKind distinguishes fiat currencies from cryptocurrencies.
type CurrencyKind string

const (
	KindFiat   CurrencyKind = "fiat"
	KindCrypto CurrencyKind = "crypto"
)

// Currency describes a tradable asset. Immutable once registered.
type Currency struct {
	Code      string
	Name      string
	Kind      CurrencyKind
	Precision int32

	// fiat only
	IssuingCountry string

	// crypto only
	Algorithm string
	MarketCap float64
}

// DisplayInfo renders the human-readable description used by list-currencies.
func (c Currency) DisplayInfo() string {
	if c.Kind == KindFiat {
		return fmt.Sprintf("[FIAT] %s — %s (Issuing: %s)", c.Code, c.Name, c.IssuingCountry)
	}

	mcap := fmt.Sprintf("%.2f", c.MarketCap)
	if c.MarketCap > 1e6 {
		mcap = fmt.Sprintf("%.2e", c.MarketCap)
	}

	return fmt.Sprintf("[CRYPTO] %s — %s (Algo: %s, MCAP: %s)", c.Code, c.Name, c.Algorithm, mcap)
}

// Round truncates amount to the currency's declared precision.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.Precision)
}

type registry struct {
	mu         sync.RWMutex
	currencies map[string]Currency
}

var defaultRegistry = newRegistry()

func newRegistry() *registry {
	r := &registry{currencies: make(map[string]Currency)}
	for _, c := range defaultCurrencies() {
		r.currencies[c.Code] = c
	}
	return r
}

func defaultCurrencies() []Currency {
	return []Currency{
		{Code: "USD", Name: "US Dollar", Kind: KindFiat, Precision: 2, IssuingCountry: "United States"},
		{Code: "EUR", Name: "Euro", Kind: KindFiat, Precision: 2, IssuingCountry: "Eurozone"},
		{Code: "GBP", Name: "Pound Sterling", Kind: KindFiat, Precision: 2, IssuingCountry: "United Kingdom"},
		{Code: "JPY", Name: "Japanese Yen", Kind: KindFiat, Precision: 0, IssuingCountry: "Japan"},
		{Code: "RUB", Name: "Russian Ruble", Kind: KindFiat, Precision: 2, IssuingCountry: "Russia"},
		{Code: "BTC", Name: "Bitcoin", Kind: KindCrypto, Precision: 8, Algorithm: "SHA-256", MarketCap: 1.12e12},
		{Code: "ETH", Name: "Ethereum", Kind: KindCrypto, Precision: 8, Algorithm: "Ethash", MarketCap: 4.5e11},
		{Code: "LTC", Name: "Litecoin", Kind: KindCrypto, Precision: 8, Algorithm: "Scrypt", MarketCap: 6.5e9},
		{Code: "SOL", Name: "Solana", Kind: KindCrypto, Precision: 8, Algorithm: "PoH", MarketCap: 8.0e10},
		{Code: "DOGE", Name: "Dogecoin", Kind: KindCrypto, Precision: 8, Algorithm: "Scrypt", MarketCap: 2.3e10},
	}
}

// RegisterCurrency adds a currency to the process-wide registry.
// The code must be 2-5 upper-case characters without spaces.
func RegisterCurrency(c Currency) error {
	if c.Name == "" || strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("currency name must not be empty")
	}
	if len(c.Code) < 2 || len(c.Code) > 5 || c.Code != strings.ToUpper(c.Code) || strings.Contains(c.Code, " ") {
		return fmt.Errorf("currency code %q must be 2-5 upper-case characters without spaces", c.Code)
	}

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.currencies[c.Code] = c

	return nil
}

// LookupCurrency resolves a code (case-insensitive) against the registry.
func LookupCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	c, ok := defaultRegistry.currencies[code]
	if !ok {
		return Currency{}, ErrUnknownCurrency
	}

	return c, nil
}

// AllCurrencies returns registered currencies sorted by code.
func AllCurrencies() []Currency {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	out := make([]Currency, 0, len(defaultRegistry.currencies))
	for _, c := range defaultRegistry.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	return out
}
