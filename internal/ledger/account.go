package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/helperpoints/internal/calculator"
	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

// Entry describes one balance mutation.
type Entry struct {
	UserID         string
	Kind           models.TransactionKind
	Amount         int64
	CounterpartyID string
	OrderID        string
	Note           string
}

func (e Entry) validate() error {
	if e.UserID == "" {
		return fmt.Errorf("entry without user")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown transaction kind %q", e.Kind)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if e.Amount > calculator.MaxAmount {
		return fmt.Errorf("%w: %d exceeds maximum %d", ErrInvalidAmount, e.Amount, calculator.MaxAmount)
	}
	return nil
}

// Credit adds e.Amount to the account and appends one log entry.
func (t *Tx) Credit(ctx context.Context, e Entry) (*models.Account, error) {
	return t.apply(ctx, e, e.Amount)
}

// Debit removes e.Amount from the account and appends one log entry.
// It fails with an *InsufficientFundsError rather than clamping.
func (t *Tx) Debit(ctx context.Context, e Entry) (*models.Account, error) {
	return t.apply(ctx, e, -e.Amount)
}

func (t *Tx) apply(ctx context.Context, e Entry, delta int64) (*models.Account, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	acct, err := t.Account(ctx, e.UserID)
	if err != nil {
		return nil, err
	}

	balance, err := t.q.AdjustBalance(ctx, e.UserID, delta, t.now)
	if errors.Is(err, storage.ErrBalanceTooLow) {
		// Another writer may have moved the balance since it was read.
		if current, rerr := t.q.GetAccount(ctx, e.UserID); rerr == nil {
			acct = current
		}
		return nil, &InsufficientFundsError{
			UserID:    e.UserID,
			Needed:    e.Amount,
			Shortfall: max(e.Amount-acct.Balance, 1),
		}
	}
	if err != nil {
		return nil, err
	}
	if err := t.record(ctx, e, delta); err != nil {
		return nil, err
	}

	acct.Balance = balance
	acct.UpdatedAt = t.now
	return acct, nil
}

// record appends a log entry without touching the balance.
func (t *Tx) record(ctx context.Context, e Entry, delta int64) error {
	return t.q.InsertTransaction(ctx, &models.Transaction{
		UserID:         e.UserID,
		Kind:           e.Kind,
		Amount:         e.Amount,
		Delta:          delta,
		CounterpartyID: e.CounterpartyID,
		OrderID:        e.OrderID,
		Note:           e.Note,
		CreatedAt:      t.now,
	})
}

// Transfer moves amount from one account to another as a matched pair of entries.
func (t *Tx) Transfer(ctx context.Context, from, to string, amount int64, kind models.TransactionKind, orderID, note string) error {
	if _, err := t.Debit(ctx, Entry{
		UserID: from, Kind: kind, Amount: amount, CounterpartyID: to, OrderID: orderID, Note: note,
	}); err != nil {
		return err
	}
	if _, err := t.Credit(ctx, Entry{
		UserID: to, Kind: kind, Amount: amount, CounterpartyID: from, OrderID: orderID, Note: note,
	}); err != nil {
		return err
	}
	return nil
}

// AwardLoyalty adds points to the user's loyalty counter once per (order, reason).
// It reports whether the award was new.
func (t *Tx) AwardLoyalty(ctx context.Context, orderID, userID string, reason models.LoyaltyReason, points int64) (bool, error) {
	if points <= 0 {
		return false, nil
	}
	if _, err := t.Account(ctx, userID); err != nil {
		return false, err
	}
	created, err := t.q.RecordLoyaltyAward(ctx, orderID, userID, reason, points, t.now)
	if err != nil || !created {
		return false, err
	}
	if err := t.q.AddLoyaltyPoints(ctx, userID, points, t.now); err != nil {
		return false, err
	}
	return true, nil
}

// GetOrCreate returns the user's account, creating an empty one on first use.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*models.Account, error) {
	var acct *models.Account
	err := l.Update(ctx, func(tx *Tx) error {
		var err error
		acct, err = tx.Account(ctx, userID)
		return err
	})
	return acct, err
}

// Credit adds funds to an account as its own atomic mutation.
func (l *Ledger) Credit(ctx context.Context, e Entry) (*models.Account, error) {
	var acct *models.Account
	err := l.Update(ctx, func(tx *Tx) error {
		var err error
		acct, err = tx.Credit(ctx, e)
		return err
	})
	return acct, err
}

// Debit removes funds from an account as its own atomic mutation.
func (l *Ledger) Debit(ctx context.Context, e Entry) (*models.Account, error) {
	var acct *models.Account
	err := l.Update(ctx, func(tx *Tx) error {
		var err error
		acct, err = tx.Debit(ctx, e)
		return err
	})
	return acct, err
}

// Account retrieves an existing account without creating one.
func (l *Ledger) Account(ctx context.Context, userID string) (*models.Account, error) {
	acct, err := l.store.GetAccount(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	return acct, err
}

// Summary returns the balance and outstanding debts for a user.
// Users the ledger has never seen get an all-zero summary.
func (l *Ledger) Summary(ctx context.Context, userID string) (*models.AccountSummary, error) {
	summary := &models.AccountSummary{UserID: userID}

	acct, err := l.store.GetAccount(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return summary, nil
	case err != nil:
		return nil, err
	}
	summary.Balance = acct.Balance
	summary.LoyaltyPoints = acct.LoyaltyPoints

	summary.OutstandingAsBorrower, summary.OutstandingAsHelper, err = l.store.SumOutstanding(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Transactions returns the newest log entries of a user.
// limit defaults to DefaultTransactionLimit and is capped at MaxTransactionLimit.
func (l *Ledger) Transactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	if limit > MaxTransactionLimit {
		limit = MaxTransactionLimit
	}
	return l.store.ListTransactions(ctx, userID, limit)
}
