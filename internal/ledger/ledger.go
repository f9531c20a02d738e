// Package ledger implements the Helper Points account store, the obligation
// ledger between borrowers and helpers, and the shortfall allocator.
//
// The Ledger is a single writer: every mutating operation holds one
// process-wide lock and runs inside one database transaction, so two
// allocations can never spend the same helper balance and a crash can never
// leave a debit without its matching credit or obligation. Reads are plain
// snapshot queries and never take the lock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

// Common errors
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAccountNotFound    = errors.New("account not found")
	ErrObligationNotFound = errors.New("obligation not found")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// InsufficientFundsError carries the shortfall so callers can ask the user to
// top up or switch payment method. It matches ErrInsufficientFunds with errors.Is.
type InsufficientFundsError struct {
	UserID    string
	Needed    int64
	Shortfall int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: needed %d, short by %d", e.UserID, e.Needed, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

const (
	// DefaultCandidateLimit bounds how many helper accounts one allocation considers.
	DefaultCandidateLimit = 50

	// DefaultTransactionLimit and MaxTransactionLimit bound ListTransactions.
	DefaultTransactionLimit = 50
	MaxTransactionLimit     = 500
)

// Ledger serializes all balance mutations.
type Ledger struct {
	store          storage.Store
	mu             sync.Mutex
	candidateLimit int
	now            func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCandidateLimit sets how many helpers the allocator may draw from.
func WithCandidateLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.candidateLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a Ledger on top of store.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:          store,
		candidateLimit: DefaultCandidateLimit,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// Update runs fn as one serialized, atomic ledger mutation. Either every
// write made through tx is committed or none is. Update must not be called
// from inside fn.
func (l *Ledger) Update(ctx context.Context, fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var hooks []func()
	err := l.store.InTx(ctx, func(q storage.Queries) error {
		tx := &Tx{q: q, ledger: l, now: l.now().Unix()}
		if err := fn(tx); err != nil {
			return err
		}
		hooks = tx.hooks
		return nil
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h()
	}
	return nil
}

// Tx is a handle on one ledger mutation in progress.
type Tx struct {
	q      storage.Queries
	ledger *Ledger
	now    int64
	hooks  []func()
}

// Queries exposes the transaction's storage for writes that belong to the
// same atomic unit (order state, repayment status).
func (t *Tx) Queries() storage.Queries {
	return t.q
}

// Now is the Unix timestamp stamped on every write of this transaction.
func (t *Tx) Now() int64 {
	return t.now
}

// AfterCommit registers fn to run once the transaction has committed.
func (t *Tx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

// Account returns the user's account, creating it on first use.
func (t *Tx) Account(ctx context.Context, userID string) (*models.Account, error) {
	if err := t.q.EnsureAccount(ctx, userID, t.now); err != nil {
		return nil, err
	}
	acct, err := t.q.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	return acct, nil
}
