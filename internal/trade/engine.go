// Package trade executes buy and sell requests against the ledger at the
// currently cached rate. It is the only writer of wallet balances besides
// deposits.
package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
	"github.com/valutatrade/valutahub/internal/ledger"
	"go.uber.org/zap"
)

const usdCode = "USD"

// RateProvider is the read side of the rate cache.
type RateProvider interface {
	Get(code string) (domain.RateEntry, error)
}

// Engine validates and executes trades. A trade reads one rate snapshot; no
// rate is pinned for in-flight trades, staleness is accepted by design.
type Engine struct {
	rates  RateProvider
	ledger *ledger.Ledger
	logger *zap.Logger
}

// NewEngine creates a trade engine.
func NewEngine(rates RateProvider, l *ledger.Ledger, logger *zap.Logger) (*Engine, error) {
	if rates == nil {
		return nil, errors.New("rate provider is required")
	}
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{rates: rates, ledger: l, logger: logger}, nil
}

// Buy purchases amount of currency code, debiting USD at the cached rate.
// Exactly one TradeRecord is appended per successful call; a failed call
// leaves no state change.
func (e *Engine) Buy(ctx context.Context, username, code string, amount decimal.Decimal) (domain.TradeRecord, error) {
	return e.execute(ctx, username, code, amount, domain.SideBuy)
}

// Sell disposes amount of currency code, crediting USD proceeds at the
// cached rate.
func (e *Engine) Sell(ctx context.Context, username, code string, amount decimal.Decimal) (domain.TradeRecord, error) {
	return e.execute(ctx, username, code, amount, domain.SideSell)
}

func (e *Engine) execute(ctx context.Context, username, code string, amount decimal.Decimal, side domain.Side) (domain.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.TradeRecord{}, err
	}
	if !amount.IsPositive() {
		return domain.TradeRecord{}, errors.Errorf("amount must be positive, got %s", amount.String())
	}

	currency, err := domain.LookupCurrency(code)
	if err != nil {
		return domain.TradeRecord{}, errors.Wrapf(err, "currency %q", code)
	}
	if currency.Code == usdCode {
		return domain.TradeRecord{}, errors.Wrap(domain.ErrUnknownCurrency, "USD is the base currency, not a tradable asset")
	}

	entry, err := e.rates.Get(currency.Code)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	usd, _ := domain.LookupCurrency(usdCode)
	amount = currency.Round(amount)
	cost := usd.Round(amount.Mul(entry.RateUSD))
	if !amount.IsPositive() || !cost.IsPositive() {
		return domain.TradeRecord{}, errors.Errorf("trade of %s %s is below representable precision", amount.String(), currency.Code)
	}

	record := domain.TradeRecord{
		ID:        uuid.NewString(),
		Username:  username,
		Side:      side,
		Currency:  currency.Code,
		Amount:    amount,
		RateUSD:   entry.RateUSD,
		CostUSD:   cost,
		Timestamp: time.Now(),
	}

	debit := ledger.Mutation{Code: usdCode, Amount: cost}
	credit := ledger.Mutation{Code: currency.Code, Amount: amount}
	if side == domain.SideSell {
		debit, credit = ledger.Mutation{Code: currency.Code, Amount: amount}, ledger.Mutation{Code: usdCode, Amount: cost}
	}

	if err := e.ledger.Apply(username, debit, credit, record); err != nil {
		return domain.TradeRecord{}, err
	}

	e.logger.Info("trade executed",
		zap.String("user", username),
		zap.String("side", string(side)),
		zap.String("currency", currency.Code),
		zap.String("amount", amount.String()),
		zap.String("rate_usd", entry.RateUSD.String()),
		zap.String("cost_usd", cost.String()))

	return record, nil
}

// Deposit credits a wallet without going through the rate path. It funds
// simulated accounts; no trade record is produced.
func (e *Engine) Deposit(username, code string, amount decimal.Decimal) error {
	currency, err := domain.LookupCurrency(code)
	if err != nil {
		return errors.Wrapf(err, "currency %q", code)
	}

	amount = currency.Round(amount)
	if !amount.IsPositive() {
		return errors.Errorf("deposit amount must be positive, got %s", amount.String())
	}

	if err := e.ledger.Credit(username, currency.Code, amount); err != nil {
		return err
	}

	e.logger.Info("deposit",
		zap.String("user", username),
		zap.String("currency", currency.Code),
		zap.String("amount", amount.String()))

	return nil
}
