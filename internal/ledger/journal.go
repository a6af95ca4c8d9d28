package ledger

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/valutatrade/valutahub/internal/domain"
)

const (
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	journalKeyPrefix    = "trade_"
)

// Journal is the append-only audit trail of executed trades, persisted in a
// write-ahead log. Records are never mutated or deleted.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// OpenJournal initializes the WAL-backed journal under the provided directory.
func OpenJournal(dir string) (*Journal, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &Journal{wal: wal}, nil
}

// Append writes one trade record. The record must carry an ID and username.
func (j *Journal) Append(record domain.TradeRecord) error {
	if j == nil || j.wal == nil {
		return errors.New("trade journal is not initialized")
	}
	if record.ID == "" || record.Username == "" {
		return errors.New("trade record requires id and username")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal trade record")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Write(j.wal.CurrentIndex()+1, journalKeyPrefix+record.Username, payload)
}

// TradesFor returns all recorded trades of a user in append order.
func (j *Journal) TradesFor(username string) ([]domain.TradeRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	return j.collect(0, func(key string) bool {
		return key == journalKeyPrefix+username
	})
}

// Count returns the number of recorded trades for a user.
func (j *Journal) Count(username string) (int, error) {
	records, err := j.TradesFor(username)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// All returns every recorded trade in append order.
func (j *Journal) All() ([]domain.TradeRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	return j.collect(0, func(key string) bool {
		return strings.HasPrefix(key, journalKeyPrefix)
	})
}

// TradesAfter returns every trade written after the given WAL index, in
// append order. Pass the index of the last record already seen; zero means
// from the beginning.
func (j *Journal) TradesAfter(index uint64) ([]domain.TradeRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	return j.collect(index, func(key string) bool {
		return strings.HasPrefix(key, journalKeyPrefix)
	})
}

// CurrentIndex returns the latest WAL index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

func (j *Journal) collect(after uint64, match func(key string) bool) ([]domain.TradeRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var records []domain.TradeRecord
	for idx := after + 1; idx <= j.wal.CurrentIndex(); idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read journal index %d", idx)
		}
		// missing or compacted records come back with an empty key
		if key == "" || !match(key) {
			continue
		}
		var record domain.TradeRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		records = append(records, record)
	}

	return records, nil
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
