// Package portfolio computes portfolio valuations from ledger balances and
// cached rates.
package portfolio

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
)

// BalanceReader is the read side of the ledger.
type BalanceReader interface {
	Balances(username string) map[string]decimal.Decimal
}

// RateProvider is the read side of the rate cache.
type RateProvider interface {
	Get(code string) (domain.RateEntry, error)
}

// Line is one holding priced in USD.
type Line struct {
	Code     string
	Balance  decimal.Decimal
	RateUSD  decimal.Decimal
	ValueUSD decimal.Decimal
}

// Valuator prices user holdings in USD using the last known rates, however
// stale. It fails only when a held currency was never fetched at all.
type Valuator struct {
	ledger BalanceReader
	rates  RateProvider
}

// NewValuator creates a valuator over the given ledger and rate cache.
func NewValuator(ledger BalanceReader, rates RateProvider) (*Valuator, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if rates == nil {
		return nil, errors.New("rate provider is required")
	}

	return &Valuator{ledger: ledger, rates: rates}, nil
}

// TotalValueUSD sums balance times rate over every currency the user holds a
// nonzero balance in, with USD itself at rate 1.
func (v *Valuator) TotalValueUSD(username string) (decimal.Decimal, error) {
	lines, err := v.Breakdown(username)
	if err != nil {
		return decimal.Decimal{}, err
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.ValueUSD)
	}

	return total, nil
}

// Breakdown returns per-currency valuation lines sorted by code.
func (v *Valuator) Breakdown(username string) ([]Line, error) {
	balances := v.ledger.Balances(username)

	lines := make([]Line, 0, len(balances))
	for code, balance := range balances {
		rate := decimal.NewFromInt(1)
		if code != "USD" {
			entry, err := v.rates.Get(code)
			if err != nil {
				return nil, errors.Wrapf(err, "value %s holding", code)
			}
			rate = entry.RateUSD
		}

		lines = append(lines, Line{
			Code:     code,
			Balance:  balance,
			RateUSD:  rate,
			ValueUSD: balance.Mul(rate).Round(2),
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Code < lines[j].Code })

	return lines, nil
}
