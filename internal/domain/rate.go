package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateEntry is the price of one unit of Code in USD at FetchedAt.
// Entries are overwritten wholesale on refresh, never merged.
type RateEntry struct {
	Code      string          `json:"code"`
	RateUSD   decimal.Decimal `json:"rate_usd"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source"`
}

// Valid reports whether the entry can enter the cache.
func (r RateEntry) Valid() bool {
	return r.Code != "" && r.RateUSD.IsPositive()
}

// Age returns how stale the entry is relative to now.
func (r RateEntry) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}
