// Package cli implements the valutahub command surface.
package cli

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/config"
	"github.com/valutatrade/valutahub/internal/auth"
	"github.com/valutatrade/valutahub/internal/domain"
	"github.com/valutatrade/valutahub/internal/ledger"
	"github.com/valutatrade/valutahub/internal/portfolio"
	"github.com/valutatrade/valutahub/internal/ratecache"
	"github.com/valutatrade/valutahub/internal/ratefetch"
	"github.com/valutatrade/valutahub/internal/trade"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App wires all components behind the CLI commands.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	authSvc  *auth.Service
	cache    *ratecache.Cache
	ledger   *ledger.Ledger
	journal  *ledger.Journal
	engine   *trade.Engine
	valuator *portfolio.Valuator
	fetcher  *ratefetch.Fetcher
	sources  []ratefetch.Source
}

// NewApp builds the application from configuration.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	authSvc, err := auth.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	cache, err := ratecache.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	journal, err := ledger.OpenJournal(filepath.Join(cfg.DataDir, "journal"))
	if err != nil {
		return nil, err
	}

	book, err := ledger.Open(cfg.DataDir, journal, logger)
	if err != nil {
		return nil, err
	}

	engine, err := trade.NewEngine(cache, book, logger)
	if err != nil {
		return nil, err
	}

	valuator, err := portfolio.NewValuator(book, cache)
	if err != nil {
		return nil, err
	}

	sources := buildSources(cfg)
	fetcher, err := ratefetch.New(cache, sources, cfg.UpdateInterval, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		authSvc:  authSvc,
		cache:    cache,
		ledger:   book,
		journal:  journal,
		engine:   engine,
		valuator: valuator,
		fetcher:  fetcher,
		sources:  sources,
	}, nil
}

// Close releases file-backed resources.
func (a *App) Close() error {
	return a.journal.Close()
}

func buildSources(cfg config.Config) []ratefetch.Source {
	var sources []ratefetch.Source
	for _, name := range cfg.Sources {
		switch name {
		case "coingecko":
			sources = append(sources, ratefetch.NewCoinGeckoSource(cfg.CoinGeckoURL, cfg.CryptoCurrencies, cfg.RequestTimeout))
		case "exchangerate":
			sources = append(sources, ratefetch.NewExchangeRateSource(cfg.ExchangeRateAPIURL, cfg.ExchangeRateAPIKey, cfg.FiatCurrencies, cfg.RequestTimeout))
		case "binance":
			sources = append(sources, ratefetch.NewBinanceSource(binance.NewClient("", ""), cfg.CryptoCurrencies))
		case "bybit":
			sources = append(sources, ratefetch.NewBybitSource(bybit.NewClient(), cfg.CryptoCurrencies))
		}
	}
	return sources
}

// Run dispatches one CLI command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.cmdRegister(rest)
	case "login":
		return a.cmdLogin(rest)
	case "logout":
		return a.cmdLogout()
	case "deposit":
		return a.cmdDeposit(rest)
	case "buy":
		return a.cmdTrade(ctx, rest, domain.SideBuy)
	case "sell":
		return a.cmdTrade(ctx, rest, domain.SideSell)
	case "show-portfolio":
		return a.cmdShowPortfolio(rest)
	case "show-rates":
		return a.cmdShowRates(rest)
	case "get-rate":
		return a.cmdGetRate(rest)
	case "update-rates":
		return a.cmdUpdateRates(ctx, rest)
	case "list-currencies":
		return a.cmdListCurrencies()
	case "history":
		return a.cmdHistory()
	case "start-parser":
		return a.cmdStartParser(ctx)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return errors.Errorf("unknown command %q", cmd)
	}
}

func (a *App) cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := ensurePassword(*password, "Choose a password")
	if err != nil {
		return err
	}

	account, err := a.authSvc.Register(*username, pass)
	if err != nil {
		return err
	}

	fmt.Printf("User %q registered.\n", account.Username)
	fmt.Printf("Log in with: valutahub login --username %s\n", account.Username)
	return nil
}

func (a *App) cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := ensurePassword(*password, "Password")
	if err != nil {
		return err
	}

	account, err := a.authSvc.Login(*username, pass)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %q.\n", account.Username)
	return nil
}

func (a *App) cmdLogout() error {
	if err := a.authSvc.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func (a *App) cmdDeposit(args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	code := fs.String("currency", "USD", "currency code")
	amountStr := fs.String("amount", "", "amount to deposit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.authSvc.CurrentUser()
	if err != nil {
		return err
	}

	currency, err := domain.LookupCurrency(*code)
	if err != nil {
		return errors.Wrapf(err, "currency %q", *code)
	}

	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		return errors.Errorf("invalid --amount %q", *amountStr)
	}

	if err := a.engine.Deposit(user, currency.Code, amount); err != nil {
		return err
	}

	fmt.Printf("Deposited %s %s. New balance: %s %s\n",
		amount.String(), currency.Code, a.ledger.Balance(user, currency.Code).String(), currency.Code)
	return nil
}

func (a *App) cmdTrade(ctx context.Context, args []string, side domain.Side) error {
	fs := flag.NewFlagSet(string(side), flag.ContinueOnError)
	currency := fs.String("currency", "", "currency code")
	amountStr := fs.String("amount", "", "amount to trade")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.authSvc.CurrentUser()
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		return errors.Errorf("invalid --amount %q", *amountStr)
	}

	var record domain.TradeRecord
	if side == domain.SideBuy {
		record, err = a.engine.Buy(ctx, user, *currency, amount)
	} else {
		record, err = a.engine.Sell(ctx, user, *currency, amount)
	}
	if err != nil {
		return err
	}

	verb := "Bought"
	if side == domain.SideSell {
		verb = "Sold"
	}
	fmt.Printf("%s %s %s at %s USD (%s USD total).\n",
		verb, record.Amount.String(), record.Currency, record.RateUSD.String(), record.CostUSD.String())
	fmt.Printf("Balances: %s USD, %s %s\n",
		a.ledger.Balance(user, "USD").String(),
		a.ledger.Balance(user, record.Currency).String(), record.Currency)
	return nil
}

func (a *App) cmdShowPortfolio(args []string) error {
	fs := flag.NewFlagSet("show-portfolio", flag.ContinueOnError)
	base := fs.String("base", "USD", "currency to value the portfolio in")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.authSvc.CurrentUser()
	if err != nil {
		return err
	}

	baseCur, err := domain.LookupCurrency(*base)
	if err != nil {
		return errors.Wrapf(err, "currency %q", *base)
	}

	lines, err := a.valuator.Breakdown(user)
	if err != nil {
		return err
	}
	total, err := a.valuator.TotalValueUSD(user)
	if err != nil {
		return err
	}

	if baseCur.Code != "USD" {
		factor, err := a.cache.Convert("USD", baseCur.Code)
		if err != nil {
			return err
		}
		for i := range lines {
			lines[i].ValueUSD = baseCur.Round(lines[i].ValueUSD.Mul(factor))
		}
		total = baseCur.Round(total.Mul(factor))
	}

	fmt.Print(renderPortfolio(user, lines, total, baseCur.Code))
	return nil
}

func (a *App) cmdShowRates(args []string) error {
	fs := flag.NewFlagSet("show-rates", flag.ContinueOnError)
	currency := fs.String("currency", "", "show only this currency")
	top := fs.Int("top", 0, "show only the N most expensive currencies")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries := a.cache.All()
	if *currency != "" {
		// cache keys are upper-case codes, accept any case from the user
		code := strings.ToUpper(strings.TrimSpace(*currency))
		entry, err := a.cache.Get(code)
		if err != nil {
			return err
		}
		entries = []domain.RateEntry{entry}
	} else if *top > 0 {
		entries = topByRate(entries, *top)
	}

	if len(entries) == 0 {
		fmt.Println("No rates cached yet. Run update-rates or start-parser first.")
		return nil
	}

	fmt.Print(renderRates(entries))
	return nil
}

func (a *App) cmdGetRate(args []string) error {
	fs := flag.NewFlagSet("get-rate", flag.ContinueOnError)
	from := fs.String("from", "", "source currency")
	to := fs.String("to", "USD", "target currency")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fromCur, err := domain.LookupCurrency(*from)
	if err != nil {
		return errors.Wrapf(err, "currency %q", *from)
	}
	toCur, err := domain.LookupCurrency(*to)
	if err != nil {
		return errors.Wrapf(err, "currency %q", *to)
	}

	rate, err := a.cache.Convert(fromCur.Code, toCur.Code)
	if err != nil {
		return err
	}

	fmt.Printf("1 %s = %s %s\n", fromCur.Code, rate.StringFixed(6), toCur.Code)
	return nil
}

func (a *App) cmdUpdateRates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-rates", flag.ContinueOnError)
	source := fs.String("source", "", "refresh from a single named source")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fetcher := a.fetcher
	if *source != "" {
		var picked []ratefetch.Source
		names := make([]string, 0, len(a.sources))
		for _, s := range a.sources {
			names = append(names, s.Name())
			if s.Name() == *source {
				picked = append(picked, s)
			}
		}
		if len(picked) == 0 {
			return errors.Errorf("unknown rate source %q, configured sources: %s", *source, strings.Join(names, ", "))
		}

		var err error
		fetcher, err = ratefetch.New(a.cache, picked, a.cfg.UpdateInterval, a.logger)
		if err != nil {
			return err
		}
	}

	fmt.Println("Updating rates...")
	if err := fetcher.RefreshOnce(ctx); err != nil {
		return err
	}

	fmt.Printf("Rates updated: %d currencies cached.\n", a.cache.Len())
	return nil
}

func (a *App) cmdListCurrencies() error {
	for _, c := range domain.AllCurrencies() {
		fmt.Println(c.DisplayInfo())
	}
	return nil
}

func (a *App) cmdHistory() error {
	user, err := a.authSvc.CurrentUser()
	if err != nil {
		return err
	}

	trades, err := a.journal.TradesFor(user)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("No trades yet.")
		return nil
	}

	fmt.Print(renderHistory(trades))
	return nil
}

// cmdStartParser runs the background rate refresher until the context is
// cancelled (SIGINT/SIGTERM in main).
func (a *App) cmdStartParser(ctx context.Context) error {
	fmt.Printf("Rate parser started (interval %s). Ctrl+C to stop.\n", a.cfg.UpdateInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.fetcher.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Println("Rate parser stopped.")
	return nil
}

func topByRate(entries []domain.RateEntry, n int) []domain.RateEntry {
	sorted := make([]domain.RateEntry, len(entries))
	copy(sorted, entries)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].RateUSD.GreaterThan(sorted[i].RateUSD) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func printUsage() {
	fmt.Println(usageText)
}

const usageText = `valutahub - simulated crypto/fiat trading platform

Usage:
  valutahub [--config path] <command> [flags]

Account:
  register --username NAME [--password PASS]
  login    --username NAME [--password PASS]
  logout

Trading (requires login):
  deposit --currency C --amount A
  buy     --currency C --amount A
  sell    --currency C --amount A
  show-portfolio [--base C]
  history

Rates:
  show-rates [--currency C] [--top N]
  get-rate --from C [--to C]
  update-rates [--source NAME]
  list-currencies
  start-parser

Misc:
  help`
