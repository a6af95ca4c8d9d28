package ratefetch

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
)

// BinanceSource reads spot ticker prices from Binance. USDT quotes are taken
// as USD rates, which is close enough for a simulated platform.
type BinanceSource struct {
	client *binance.Client
	codes  []string
}

// NewBinanceSource creates a source for the given crypto currency codes.
// Public ticker endpoints need no API credentials.
func NewBinanceSource(client *binance.Client, codes []string) *BinanceSource {
	return &BinanceSource{client: client, codes: codes}
}

func (s *BinanceSource) Name() string { return "binance" }

// FetchRates lists all ticker prices in one call and picks the configured
// codes' USDT symbols.
func (s *BinanceSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	prices, err := s.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(domain.ErrFetchFailure, err.Error())
	}

	bySymbol := make(map[string]string, len(prices))
	for _, p := range prices {
		bySymbol[p.Symbol] = p.Price
	}

	now := time.Now()
	entries := make([]domain.RateEntry, 0, len(s.codes))
	for _, code := range s.codes {
		raw, ok := bySymbol[code+"USDT"]
		if !ok {
			continue
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			continue
		}
		entries = append(entries, domain.RateEntry{
			Code:      code,
			RateUSD:   rate,
			FetchedAt: now,
			Source:    s.Name(),
		})
	}
	if len(entries) == 0 {
		return nil, errors.Wrap(domain.ErrFetchFailure, "binance returned no usable prices")
	}

	return entries, nil
}
