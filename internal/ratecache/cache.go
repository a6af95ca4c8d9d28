// Package ratecache holds the latest known USD rate per currency.
// Reads never block on refresh: the cache always serves the last successfully
// fetched value, however stale. Staleness is visible via FetchedAt only.
package ratecache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
)

const snapshotFileName = "rates.json"

// Cache is the in-memory rate store backed by a JSON snapshot on disk.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.RateEntry
	path    string
}

type snapshot struct {
	Pairs       map[string]domain.RateEntry `json:"pairs"`
	LastRefresh time.Time                   `json:"last_refresh"`
}

// New creates a cache persisting under dir. A snapshot left by a previous run
// is loaded so rates survive restarts.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create rate cache dir")
	}

	c := &Cache{
		entries: make(map[string]domain.RateEntry),
		path:    filepath.Join(dir, snapshotFileName),
	}
	if err := c.load(); err != nil {
		return nil, err
	}

	return c, nil
}

// Get returns the last known rate for code. domain.ErrMissingRate is returned
// when the currency was never fetched.
func (c *Cache) Get(code string) (domain.RateEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[code]
	if !ok {
		return domain.RateEntry{}, errors.Wrapf(domain.ErrMissingRate, "currency %s", code)
	}

	return entry, nil
}

// Set overwrites a single entry. Setting an identical entry twice is a no-op
// in terms of observable state.
func (c *Cache) Set(entry domain.RateEntry) error {
	return c.SetBatch([]domain.RateEntry{entry})
}

// SetBatch validates and swaps in all entries under one write lock, then
// persists the snapshot. Either every entry is applied or none: a single
// invalid rate rejects the whole batch so a refresh can never leave a torn
// cross-currency view.
func (c *Cache) SetBatch(entries []domain.RateEntry) error {
	for _, e := range entries {
		if !e.Valid() {
			return errors.Wrapf(domain.ErrFetchFailure, "invalid rate for %q: %s", e.Code, e.RateUSD.String())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		c.entries[e.Code] = e
	}

	return c.persist()
}

// All returns a copy of the cache contents sorted by code.
func (c *Cache) All() []domain.RateEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.RateEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	return out
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Convert computes the rate of one unit of from expressed in to, going through
// USD. Both currencies must have a cached rate (USD itself is implicit 1).
func (c *Cache) Convert(from, to string) (decimal.Decimal, error) {
	fromRate, err := c.usdRate(from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := c.usdRate(to)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return fromRate.Div(toRate), nil
}

func (c *Cache) usdRate(code string) (decimal.Decimal, error) {
	if code == "USD" {
		return decimal.NewFromInt(1), nil
	}
	entry, err := c.Get(code)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return entry.RateUSD, nil
}

func (c *Cache) load() error {
	payload, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "read rates snapshot")
	}
	if len(payload) == 0 {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return errors.Wrap(err, "decode rates snapshot")
	}
	for code, entry := range snap.Pairs {
		if entry.Valid() {
			c.entries[code] = entry
		}
	}

	return nil
}

// persist writes the snapshot atomically via temp file. Callers must hold the
// write lock.
func (c *Cache) persist() error {
	snap := snapshot{Pairs: c.entries, LastRefresh: time.Now()}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode rates snapshot")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write rates snapshot temp file")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.Wrap(err, "persist rates snapshot")
	}

	return nil
}
