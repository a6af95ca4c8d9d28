package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side of a trade relative to the traded currency.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeRecord is one executed trade. Records are append-only: once written to
// the journal they are never mutated or deleted.
type TradeRecord struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Side      Side            `json:"side"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	RateUSD   decimal.Decimal `json:"rate_usd"`
	CostUSD   decimal.Decimal `json:"cost_usd"`
	Timestamp time.Time       `json:"timestamp"`
}

// String returns a human-readable string representation.
func (t *TradeRecord) String() string {
	return fmt.Sprintf("%s %s %s %s @ %s USD", t.Username, t.Side, t.Amount.String(), t.Currency, t.RateUSD.String())
}
