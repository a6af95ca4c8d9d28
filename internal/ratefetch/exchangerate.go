package ratefetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
	"github.com/valutatrade/valutahub/pkg/retrier"
)

// ExchangeRateSource fetches fiat rates from ExchangeRate-API (latest/USD).
type ExchangeRateSource struct {
	baseURL    string
	apiKey     string
	codes      []string
	httpClient *http.Client
	retrier    *retrier.Retrier
}

// NewExchangeRateSource creates a source for the given fiat currency codes.
func NewExchangeRateSource(baseURL, apiKey string, codes []string, timeout time.Duration) *ExchangeRateSource {
	return &ExchangeRateSource{
		baseURL:    baseURL,
		apiKey:     apiKey,
		codes:      codes,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Second)),
	}
}

func (s *ExchangeRateSource) Name() string { return "exchangerate" }

type exchangeRateResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	BaseCode        string             `json:"base_code"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// FetchRates queries the latest USD table and inverts it to rate-in-USD per
// configured fiat currency (the API reports USD->currency).
func (s *ExchangeRateSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	if s.apiKey == "" {
		return nil, errors.Wrap(domain.ErrFetchFailure, "exchangerate api key is not configured")
	}

	reqURL := fmt.Sprintf("%s/%s/latest/USD", s.baseURL, s.apiKey)

	body, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		return fetchJSON(ctx, s.httpClient, reqURL)
	})
	if err != nil {
		return nil, errors.Wrap(domain.ErrFetchFailure, err.Error())
	}

	var payload exchangeRateResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrapf(domain.ErrFetchFailure, "malformed exchangerate response: %s", err)
	}
	if payload.Result != "success" {
		return nil, errors.Wrapf(domain.ErrFetchFailure, "exchangerate api error: %s", payload.ErrorType)
	}

	now := time.Now()
	entries := make([]domain.RateEntry, 0, len(s.codes))
	for _, code := range s.codes {
		usdToCode, ok := payload.ConversionRates[code]
		if !ok || usdToCode <= 0 {
			continue
		}
		entries = append(entries, domain.RateEntry{
			Code:      code,
			RateUSD:   decimal.NewFromInt(1).Div(decimal.NewFromFloat(usdToCode)),
			FetchedAt: now,
			Source:    s.Name(),
		})
	}
	if len(entries) == 0 {
		return nil, errors.Wrap(domain.ErrFetchFailure, "exchangerate returned no usable rates")
	}

	return entries, nil
}
