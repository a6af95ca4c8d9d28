package ratefetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
	"github.com/valutatrade/valutahub/pkg/retrier"
)

// coinGeckoIDs maps currency codes to CoinGecko asset ids.
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"LTC":  "litecoin",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
}

// CoinGeckoSource fetches crypto USD prices from the CoinGecko simple/price API.
type CoinGeckoSource struct {
	baseURL    string
	codes      []string
	httpClient *http.Client
	retrier    *retrier.Retrier
}

// NewCoinGeckoSource creates a source for the given crypto currency codes.
// Codes without a known CoinGecko id are ignored.
func NewCoinGeckoSource(baseURL string, codes []string, timeout time.Duration) *CoinGeckoSource {
	return &CoinGeckoSource{
		baseURL:    baseURL,
		codes:      codes,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Second)),
	}
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

// FetchRates queries all configured assets in a single request.
func (s *CoinGeckoSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	ids := make([]string, 0, len(s.codes))
	idToCode := make(map[string]string, len(s.codes))
	for _, code := range s.codes {
		id, ok := coinGeckoIDs[code]
		if !ok {
			continue
		}
		ids = append(ids, id)
		idToCode[id] = code
	}
	if len(ids) == 0 {
		return nil, errors.Wrap(domain.ErrFetchFailure, "no coingecko-mapped currencies configured")
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	reqURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	body, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		return fetchJSON(ctx, s.httpClient, reqURL)
	})
	if err != nil {
		return nil, errors.Wrap(domain.ErrFetchFailure, err.Error())
	}

	// {"bitcoin":{"usd":59337.21},...}
	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrapf(domain.ErrFetchFailure, "malformed coingecko response: %s", err)
	}

	now := time.Now()
	entries := make([]domain.RateEntry, 0, len(payload))
	for id, prices := range payload {
		code, ok := idToCode[id]
		if !ok {
			continue
		}
		usd, ok := prices["usd"]
		if !ok || usd <= 0 {
			continue
		}
		entries = append(entries, domain.RateEntry{
			Code:      code,
			RateUSD:   decimal.NewFromFloat(usd),
			FetchedAt: now,
			Source:    s.Name(),
		})
	}
	if len(entries) == 0 {
		return nil, errors.Wrap(domain.ErrFetchFailure, "coingecko returned no usable rates")
	}

	return entries, nil
}

// fetchJSON performs a GET and returns the body, treating non-2xx as failure.
func fetchJSON(ctx context.Context, client *http.Client, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ValutaHub/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "perform request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	return body, nil
}
