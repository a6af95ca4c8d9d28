package cli

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/valutahub/config"
	"github.com/valutatrade/valutahub/internal/domain"
	"github.com/valutatrade/valutahub/internal/portfolio"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	app, err := NewApp(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func cacheRate(t *testing.T, app *App, code string, rate float64) {
	t.Helper()
	require.NoError(t, app.cache.Set(domain.RateEntry{
		Code:      code,
		RateUSD:   decimal.NewFromFloat(rate),
		FetchedAt: time.Now(),
		Source:    "manual",
	}))
}

func TestRun_GetRateAcceptsLowercaseCodes(t *testing.T) {
	app := newTestApp(t)
	cacheRate(t, app, "BTC", 50000)

	require.NoError(t, app.Run(context.Background(), []string{"get-rate", "--from", "BTC", "--to", "USD"}))
	require.NoError(t, app.Run(context.Background(), []string{"get-rate", "--from", "btc", "--to", "usd"}))
}

func TestRun_ShowRatesAcceptsLowercaseCurrency(t *testing.T) {
	app := newTestApp(t)
	cacheRate(t, app, "BTC", 50000)

	require.NoError(t, app.Run(context.Background(), []string{"show-rates", "--currency", "btc"}))
}

func TestRun_GetRateUnknownCurrency(t *testing.T) {
	app := newTestApp(t)
	cacheRate(t, app, "BTC", 50000)

	err := app.Run(context.Background(), []string{"get-rate", "--from", "WAT"})
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
}

func TestRun_ShowPortfolioInAnotherBase(t *testing.T) {
	app := newTestApp(t)
	cacheRate(t, app, "BTC", 50000)
	cacheRate(t, app, "EUR", 1.25)

	_, err := app.authSvc.Register("alice", "secret99")
	require.NoError(t, err)
	_, err = app.authSvc.Login("alice", "secret99")
	require.NoError(t, err)
	require.NoError(t, app.engine.Deposit("alice", "USD", decimal.NewFromInt(1000)))

	require.NoError(t, app.Run(context.Background(), []string{"show-portfolio", "--base", "eur"}))
	require.NoError(t, app.Run(context.Background(), []string{"show-portfolio"}))
}

func TestRun_UpdateRatesUnknownSource(t *testing.T) {
	app := newTestApp(t)

	err := app.Run(context.Background(), []string{"update-rates", "--source", "does-not-exist"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown rate source")
}

func TestTopByRate(t *testing.T) {
	entries := []domain.RateEntry{
		{Code: "EUR", RateUSD: decimal.NewFromFloat(1.07)},
		{Code: "BTC", RateUSD: decimal.NewFromInt(50000)},
		{Code: "ETH", RateUSD: decimal.NewFromInt(3000)},
		{Code: "JPY", RateUSD: decimal.NewFromFloat(0.0067)},
	}

	top := topByRate(entries, 2)
	require.Len(t, top, 2)
	require.Equal(t, "BTC", top[0].Code)
	require.Equal(t, "ETH", top[1].Code)

	// original slice untouched
	require.Equal(t, "EUR", entries[0].Code)
}

func TestTopByRate_NLargerThanEntries(t *testing.T) {
	entries := []domain.RateEntry{
		{Code: "BTC", RateUSD: decimal.NewFromInt(50000)},
	}

	top := topByRate(entries, 10)
	require.Len(t, top, 1)
}

func TestRenderPortfolio(t *testing.T) {
	lines := []portfolio.Line{
		{Code: "BTC", Balance: decimal.NewFromFloat(0.01), RateUSD: decimal.NewFromInt(50000), ValueUSD: decimal.NewFromInt(500)},
		{Code: "USD", Balance: decimal.NewFromInt(500), RateUSD: decimal.NewFromInt(1), ValueUSD: decimal.NewFromInt(500)},
	}

	out := renderPortfolio("alice", lines, decimal.NewFromInt(1000), "USD")
	require.Contains(t, out, "alice")
	require.Contains(t, out, "BTC")
	require.Contains(t, out, "1000.00")
	require.Contains(t, out, "VALUE (USD)")
}

func TestRenderRates(t *testing.T) {
	entries := []domain.RateEntry{
		{Code: "BTC", RateUSD: decimal.NewFromInt(50000), Source: "coingecko", FetchedAt: time.Now()},
	}

	out := renderRates(entries)
	require.Contains(t, out, "BTC")
	require.Contains(t, out, "coingecko")
}

func TestRenderHistory(t *testing.T) {
	trades := []domain.TradeRecord{
		{
			ID:        "t1",
			Username:  "alice",
			Side:      domain.SideBuy,
			Currency:  "BTC",
			Amount:    decimal.NewFromFloat(0.01),
			RateUSD:   decimal.NewFromInt(50000),
			CostUSD:   decimal.NewFromInt(500),
			Timestamp: time.Now(),
		},
	}

	out := renderHistory(trades)
	require.Contains(t, out, "buy")
	require.Contains(t, out, "500.00")
}
