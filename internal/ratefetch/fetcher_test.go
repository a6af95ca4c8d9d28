package ratefetch

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/valutahub/internal/domain"
	"go.uber.org/zap"
)

type stubSource struct {
	name    string
	entries []domain.RateEntry
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	s.calls++
	return s.entries, s.err
}

type recordingCache struct {
	batches [][]domain.RateEntry
	err     error
}

func (c *recordingCache) SetBatch(entries []domain.RateEntry) error {
	if c.err != nil {
		return c.err
	}
	c.batches = append(c.batches, entries)
	return nil
}

func entry(code string, rate int64, source string) domain.RateEntry {
	return domain.RateEntry{Code: code, RateUSD: decimal.NewFromInt(rate), FetchedAt: time.Now(), Source: source}
}

func TestRefreshOnce_MergesSources(t *testing.T) {
	cache := &recordingCache{}
	crypto := &stubSource{name: "crypto", entries: []domain.RateEntry{entry("BTC", 50000, "crypto")}}
	fiat := &stubSource{name: "fiat", entries: []domain.RateEntry{entry("EUR", 1, "fiat")}}

	f, err := New(cache, []Source{crypto, fiat}, time.Minute, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, f.RefreshOnce(context.Background()))
	require.Len(t, cache.batches, 1)
	assert.Len(t, cache.batches[0], 2)
}

func TestRefreshOnce_FirstSourceWinsOnOverlap(t *testing.T) {
	cache := &recordingCache{}
	first := &stubSource{name: "first", entries: []domain.RateEntry{entry("BTC", 50000, "first")}}
	second := &stubSource{name: "second", entries: []domain.RateEntry{entry("BTC", 49000, "second")}}

	f, err := New(cache, []Source{first, second}, time.Minute, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, f.RefreshOnce(context.Background()))
	require.Len(t, cache.batches, 1)
	require.Len(t, cache.batches[0], 1)
	assert.Equal(t, "first", cache.batches[0][0].Source)
	assert.True(t, cache.batches[0][0].RateUSD.Equal(decimal.NewFromInt(50000)))
}

func TestRefreshOnce_PartialFailureStillSwaps(t *testing.T) {
	cache := &recordingCache{}
	broken := &stubSource{name: "broken", err: errors.New("connection refused")}
	working := &stubSource{name: "working", entries: []domain.RateEntry{entry("BTC", 50000, "working")}}

	f, err := New(cache, []Source{broken, working}, time.Minute, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, f.RefreshOnce(context.Background()))
	require.Len(t, cache.batches, 1)
	assert.Len(t, cache.batches[0], 1)
}

func TestRefreshOnce_AllFailedLeavesCacheUntouched(t *testing.T) {
	cache := &recordingCache{}
	a := &stubSource{name: "a", err: errors.New("timeout")}
	b := &stubSource{name: "b", err: errors.New("malformed json")}

	f, err := New(cache, []Source{a, b}, time.Minute, zap.NewNop())
	require.NoError(t, err)

	err = f.RefreshOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrFetchFailure)
	assert.Empty(t, cache.batches, "cache must not be written on a fully failed cycle")
}

func TestRun_StopsOnCancelAndKeepsPolling(t *testing.T) {
	cache := &recordingCache{}
	src := &stubSource{name: "src", entries: []domain.RateEntry{entry("BTC", 50000, "src")}}

	f, err := New(cache, []Source{src}, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	err = f.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// immediate refresh plus at least a couple of ticks
	assert.GreaterOrEqual(t, src.calls, 3)
}

func TestNew_Validation(t *testing.T) {
	src := &stubSource{name: "src"}

	_, err := New(nil, []Source{src}, time.Minute, nil)
	assert.Error(t, err)

	_, err = New(&recordingCache{}, nil, time.Minute, nil)
	assert.Error(t, err)

	_, err = New(&recordingCache{}, []Source{src}, 0, nil)
	assert.Error(t, err)
}
