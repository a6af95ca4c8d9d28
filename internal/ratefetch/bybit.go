package ratefetch

import (
	"context"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
)

// BybitSource reads spot ticker prices from Bybit V5 market endpoints.
type BybitSource struct {
	client *bybit.Client
	codes  []string
}

// NewBybitSource creates a source for the given crypto currency codes.
func NewBybitSource(client *bybit.Client, codes []string) *BybitSource {
	return &BybitSource{client: client, codes: codes}
}

func (s *BybitSource) Name() string { return "bybit" }

// FetchRates queries the ticker per configured symbol. A symbol Bybit does
// not list is skipped; the source fails only when nothing was usable.
func (s *BybitSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	now := time.Now()
	entries := make([]domain.RateEntry, 0, len(s.codes))

	for _, code := range s.codes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		symbol := bybit.SymbolV5(code + "USDT")
		result, err := s.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: "spot",
			Symbol:   &symbol,
		})
		if err != nil {
			continue
		}
		if len(result.Result.Spot.List) == 0 {
			continue
		}

		rate, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
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
		return nil, errors.Wrap(domain.ErrFetchFailure, "bybit returned no usable prices")
	}

	return entries, nil
}
