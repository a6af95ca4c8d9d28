package ledger

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/valutahub/internal/domain"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	dir := t.TempDir()
	journal, err := OpenJournal(dir + "/journal")
	require.NoError(t, err, "failed to open journal")
	t.Cleanup(func() { journal.Close() })

	l, err := Open(dir, journal, zap.NewNop())
	require.NoError(t, err, "failed to open ledger")
	return l
}

func record(user string, side domain.Side, code string, amount, rate int64) domain.TradeRecord {
	return domain.TradeRecord{
		ID:        uuid.NewString(),
		Username:  user,
		Side:      side,
		Currency:  code,
		Amount:    decimal.NewFromInt(amount),
		RateUSD:   decimal.NewFromInt(rate),
		CostUSD:   decimal.NewFromInt(amount * rate),
		Timestamp: time.Now(),
	}
}

func TestLedger_BalanceDefaultsToZero(t *testing.T) {
	l := newTestLedger(t)
	assert.True(t, l.Balance("ghost", "USD").IsZero())
}

func TestLedger_CreditAndDebit(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Credit("alice", "USD", decimal.NewFromInt(1000)))
	assert.True(t, l.Balance("alice", "USD").Equal(decimal.NewFromInt(1000)))

	require.NoError(t, l.Debit("alice", "USD", decimal.NewFromInt(400)))
	assert.True(t, l.Balance("alice", "USD").Equal(decimal.NewFromInt(600)))
}

func TestLedger_DebitInsufficientFunds(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Credit("alice", "USD", decimal.NewFromInt(100)))

	err := l.Debit("alice", "USD", decimal.NewFromInt(101))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, l.Balance("alice", "USD").Equal(decimal.NewFromInt(100)), "failed debit must not change state")
}

func TestLedger_RejectsNonPositiveAmounts(t *testing.T) {
	l := newTestLedger(t)

	assert.Error(t, l.Credit("alice", "USD", decimal.Zero))
	assert.Error(t, l.Credit("alice", "USD", decimal.NewFromInt(-5)))
	assert.Error(t, l.Debit("alice", "USD", decimal.Zero))
}

func TestLedger_ApplyTrade(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Credit("alice", "USD", decimal.NewFromInt(1000)))

	rec := record("alice", domain.SideBuy, "BTC", 1, 500)
	err := l.Apply("alice",
		Mutation{Code: "USD", Amount: decimal.NewFromInt(500)},
		Mutation{Code: "BTC", Amount: decimal.NewFromInt(1)},
		rec)
	require.NoError(t, err)

	assert.True(t, l.Balance("alice", "USD").Equal(decimal.NewFromInt(500)))
	assert.True(t, l.Balance("alice", "BTC").Equal(decimal.NewFromInt(1)))

	count, err := l.Journal().Count("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_ApplyInsufficientFundsLeavesNoTrace(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Credit("alice", "USD", decimal.NewFromInt(100)))

	err := l.Apply("alice",
		Mutation{Code: "USD", Amount: decimal.NewFromInt(500)},
		Mutation{Code: "BTC", Amount: decimal.NewFromInt(1)},
		record("alice", domain.SideBuy, "BTC", 1, 500))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.True(t, l.Balance("alice", "USD").Equal(decimal.NewFromInt(100)))
	assert.True(t, l.Balance("alice", "BTC").IsZero())

	count, err := l.Journal().Count("alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "failed trade must not append a record")
}

func TestLedger_CreditAndDebitRollBackWhenPersistFails(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Credit("alice", "USD", decimal.NewFromInt(100)))

	// point the snapshot at a nonexistent directory so persist fails
	l.path = filepath.Join(t.TempDir(), "missing", "balances.json")

	err := l.Credit("alice", "USD", decimal.NewFromInt(50))
	require.Error(t, err)
	assert.True(t, l.Balance("alice", "USD").Equal(decimal.NewFromInt(100)),
		"failed credit must not change in-memory state")

	err = l.Debit("alice", "USD", decimal.NewFromInt(30))
	require.Error(t, err)
	assert.True(t, l.Balance("alice", "USD").Equal(decimal.NewFromInt(100)),
		"failed debit must not change in-memory state")
}

func TestLedger_SnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	journal, err := OpenJournal(dir + "/journal")
	require.NoError(t, err)

	l, err := Open(dir, journal, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Credit("alice", "USD", decimal.RequireFromString("123.45")))
	require.NoError(t, journal.Close())

	journal2, err := OpenJournal(dir + "/journal")
	require.NoError(t, err)
	defer journal2.Close()

	reopened, err := Open(dir, journal2, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, reopened.Balance("alice", "USD").Equal(decimal.RequireFromString("123.45")))
}

func TestLedger_ConcurrentSameUserTradesSerialize(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Credit("alice", "USD", decimal.NewFromInt(100)))

	// 20 concurrent trades of 10 USD each against a 100 USD balance:
	// exactly 10 must succeed, and USD must end at zero, never negative.
	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Apply("alice",
				Mutation{Code: "USD", Amount: decimal.NewFromInt(10)},
				Mutation{Code: "BTC", Amount: decimal.NewFromInt(1)},
				record("alice", domain.SideBuy, "BTC", 1, 10))
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
	}

	assert.Equal(t, 10, succeeded)
	assert.True(t, l.Balance("alice", "USD").IsZero())
	assert.True(t, l.Balance("alice", "BTC").Equal(decimal.NewFromInt(10)))

	count, err := l.Journal().Count("alice")
	require.NoError(t, err)
	assert.Equal(t, succeeded, count, "records must match successful trades exactly")
}
