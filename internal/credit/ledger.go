// Package credit implements the per-user usage budget that gates every
// model call. Debits are atomic per user: the ledger serializes balance
// changes with a per-user lock, so concurrent debits for the same user never
// both succeed when only one unit remains.
package credit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mwhitt/crew/internal/state"
)

// Ledger tracks and atomically debits per-user balances, persisting every
// change before reporting success.
type Ledger struct {
	db *state.DB

	// locks holds one mutex per user, created lazily.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(db *state.DB) *Ledger {
	return &Ledger{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex for a user, creating it on first use.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// TryDebit attempts to deduct amount from the user's balance.
// Insufficient balance is a normal false result, not an error; the error
// return is reserved for storage faults, in which case nothing was applied.
// The balance change is persisted before true is returned.
func (l *Ledger) TryDebit(ctx context.Context, userID string, amount int64) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.db.ReadCreditBalance(userID)
	if err != nil {
		return false, err
	}

	if acct.Balance < amount {
		log.Printf("[credit] debit denied for user %s: balance %d < %d", userID, acct.Balance, amount)
		return false, nil
	}

	if err := l.db.UpsertCreditBalance(userID, acct.Balance-amount, time.Now()); err != nil {
		return false, err
	}

	return true, nil
}

// Credit adds amount to the user's balance, creating the account if needed.
// Top-ups never fail for balance reasons.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.db.ReadCreditBalance(userID)
	if err != nil {
		return err
	}

	return l.db.UpsertCreditBalance(userID, acct.Balance+amount, time.Now())
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.db.ReadCreditBalance(userID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}
