// Package ratefetch refreshes the rate cache from external price providers.
package ratefetch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/valutatrade/valutahub/internal/domain"
	"go.uber.org/zap"
)

// Source produces USD rates for a set of currencies from one provider.
type Source interface {
	Name() string
	FetchRates(ctx context.Context) ([]domain.RateEntry, error)
}

// RateCache is the write side of the cache the fetcher feeds.
type RateCache interface {
	SetBatch(entries []domain.RateEntry) error
}

// Fetcher periodically queries all sources and swaps merged results into the
// cache. Failures are contained: a failed cycle leaves the cache untouched
// and the next cycle proceeds normally.
type Fetcher struct {
	cache    RateCache
	sources  []Source
	interval time.Duration
	logger   *zap.Logger
}

// New creates a Fetcher. Interval must be positive.
func New(cache RateCache, sources []Source, interval time.Duration, logger *zap.Logger) (*Fetcher, error) {
	if cache == nil {
		return nil, errors.New("rate cache is required")
	}
	if len(sources) == 0 {
		return nil, errors.New("at least one rate source is required")
	}
	if interval <= 0 {
		return nil, errors.Errorf("invalid refresh interval %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{cache: cache, sources: sources, interval: interval, logger: logger}, nil
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
// Refresh errors are logged, never returned: callers of the cache must keep
// seeing the last good values.
func (f *Fetcher) Run(ctx context.Context) error {
	if err := f.RefreshOnce(ctx); err != nil {
		f.logger.Warn("initial rates refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.RefreshOnce(ctx); err != nil {
				f.logger.Warn("rates refresh cycle skipped", zap.Error(err))
			}
		}
	}
}

// RefreshOnce queries every source and swaps the merged batch into the cache.
// When sources overlap on a code the first source wins. The cycle fails only
// if every source fails; partial success still updates the cache.
func (f *Fetcher) RefreshOnce(ctx context.Context) error {
	merged := make([]domain.RateEntry, 0, 16)
	seen := make(map[string]struct{})
	succeeded := 0

	for _, src := range f.sources {
		start := time.Now()

		entries, err := src.FetchRates(ctx)
		if err != nil {
			f.logger.Warn("rate source failed",
				zap.String("source", src.Name()),
				zap.Error(err))
			continue
		}

		added := 0
		for _, e := range entries {
			if _, dup := seen[e.Code]; dup {
				continue
			}
			seen[e.Code] = struct{}{}
			merged = append(merged, e)
			added++
		}
		succeeded++

		f.logger.Info("rate source fetched",
			zap.String("source", src.Name()),
			zap.Int("rates", added),
			zap.Duration("took", time.Since(start)))
	}

	if succeeded == 0 {
		return errors.Wrap(domain.ErrFetchFailure, "all rate sources failed")
	}

	if err := f.cache.SetBatch(merged); err != nil {
		return errors.Wrap(err, "swap rates into cache")
	}

	f.logger.Info("rates refreshed",
		zap.Int("sources_ok", succeeded),
		zap.Int("sources_total", len(f.sources)),
		zap.Int("rates", len(merged)))

	return nil
}
