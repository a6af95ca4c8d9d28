// Package ledger is the authoritative record of per-user balances and trade
// history. Balances are kept in memory, persisted as a JSON snapshot, and the
// trade history lives in an append-only WAL journal.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
	"go.uber.org/zap"
)

const balancesFileName = "balances.json"

// Mutation is one balance change applied by a trade.
type Mutation struct {
	Code   string
	Amount decimal.Decimal
}

// Ledger owns WalletBalance state. Same-user operations are serialized by a
// per-user mutex; different users proceed independently.
type Ledger struct {
	mu       sync.Mutex // guards balances and userLocks maps
	balances map[string]map[string]decimal.Decimal
	locks    map[string]*sync.Mutex

	path    string
	journal *Journal
	logger  *zap.Logger
}

// Open loads the balances snapshot from dir and attaches the journal.
func Open(dir string, journal *Journal, logger *zap.Logger) (*Ledger, error) {
	if journal == nil {
		return nil, errors.New("trade journal is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create ledger dir")
	}

	l := &Ledger{
		balances: make(map[string]map[string]decimal.Decimal),
		locks:    make(map[string]*sync.Mutex),
		path:     filepath.Join(dir, balancesFileName),
		journal:  journal,
		logger:   logger,
	}
	if err := l.load(); err != nil {
		return nil, err
	}

	return l, nil
}

// Journal exposes the attached trade history.
func (l *Ledger) Journal() *Journal {
	return l.journal
}

// userLock returns the mutex serializing operations for one user.
func (l *Ledger) userLock(username string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[username]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[username] = lock
	}

	return lock
}

// Balance returns the user's balance in one currency, zero if unseen.
func (l *Ledger) Balance(username, code string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	wallet, ok := l.balances[username]
	if !ok {
		return decimal.Zero
	}

	return wallet[code]
}

// Balances returns a copy of all nonzero balances of a user.
func (l *Ledger) Balances(username string) map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]decimal.Decimal)
	for code, amount := range l.balances[username] {
		if !amount.IsZero() {
			out[code] = amount
		}
	}

	return out
}

// Credit adds amount to a balance, creating the wallet entry on first use.
func (l *Ledger) Credit(username, code string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Errorf("credit amount must be positive, got %s", amount.String())
	}

	lock := l.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	l.mutate(username, code, amount)

	if err := l.persist(); err != nil {
		l.mutate(username, code, amount.Neg())
		return errors.Wrap(err, "persist balances")
	}

	return nil
}

// Debit subtracts amount from a balance. Fails with
// domain.ErrInsufficientFunds when amount exceeds the current balance.
func (l *Ledger) Debit(username, code string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Errorf("debit amount must be positive, got %s", amount.String())
	}

	lock := l.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	if l.Balance(username, code).LessThan(amount) {
		return errors.Wrapf(domain.ErrInsufficientFunds,
			"available %s %s, required %s %s", l.Balance(username, code).String(), code, amount.String(), code)
	}

	l.mutate(username, code, amount.Neg())

	if err := l.persist(); err != nil {
		l.mutate(username, code, amount)
		return errors.Wrap(err, "persist balances")
	}

	return nil
}

// Apply executes one atomic trade transaction for a user: verify the debit,
// apply debit and credit, persist the snapshot, and append the trade record.
// Under the user's lock no other trade by the same user can interleave. If
// the journal append fails the balance mutations are rolled back, so a
// balance never changes without its corresponding record.
func (l *Ledger) Apply(username string, debit, credit Mutation, record domain.TradeRecord) error {
	if !debit.Amount.IsPositive() || !credit.Amount.IsPositive() {
		return errors.New("trade mutations must be positive")
	}

	lock := l.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	if l.Balance(username, debit.Code).LessThan(debit.Amount) {
		return errors.Wrapf(domain.ErrInsufficientFunds,
			"available %s %s, required %s %s",
			l.Balance(username, debit.Code).String(), debit.Code, debit.Amount.String(), debit.Code)
	}

	l.mutate(username, debit.Code, debit.Amount.Neg())
	l.mutate(username, credit.Code, credit.Amount)

	if err := l.persist(); err != nil {
		l.mutate(username, credit.Code, credit.Amount.Neg())
		l.mutate(username, debit.Code, debit.Amount)
		return errors.Wrap(err, "persist balances")
	}

	if err := l.journal.Append(record); err != nil {
		l.mutate(username, credit.Code, credit.Amount.Neg())
		l.mutate(username, debit.Code, debit.Amount)
		if perr := l.persist(); perr != nil {
			l.logger.Error("failed to persist balance rollback", zap.Error(perr))
		}
		return errors.Wrap(err, "append trade record")
	}

	return nil
}

func (l *Ledger) mutate(username, code string, delta decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wallet, ok := l.balances[username]
	if !ok {
		wallet = make(map[string]decimal.Decimal)
		l.balances[username] = wallet
	}
	wallet[code] = wallet[code].Add(delta)
}

type balancesSnapshot map[string]map[string]string

func (l *Ledger) load() error {
	payload, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "read balances snapshot")
	}
	if len(payload) == 0 {
		return nil
	}

	var snap balancesSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return errors.Wrap(err, "decode balances snapshot")
	}

	for username, wallet := range snap {
		restored := make(map[string]decimal.Decimal, len(wallet))
		for code, raw := range wallet {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return errors.Wrapf(err, "decode balance %s/%s", username, code)
			}
			restored[code] = amount
		}
		l.balances[username] = restored
	}

	return nil
}

// persist writes the snapshot atomically via temp file.
func (l *Ledger) persist() error {
	l.mu.Lock()
	snap := make(balancesSnapshot, len(l.balances))
	for username, wallet := range l.balances {
		stored := make(map[string]string, len(wallet))
		for code, amount := range wallet {
			stored[code] = amount.String()
		}
		snap[username] = stored
	}
	l.mu.Unlock()

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode balances snapshot")
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write balances snapshot temp file")
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return errors.Wrap(err, "persist balances snapshot")
	}

	return nil
}
