// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/helperpoints/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrBalanceTooLow is returned when a balance adjustment would go negative.
	ErrBalanceTooLow = errors.New("balance too low")
)

// AccountStore persists accounts and their transaction logs.
type AccountStore interface {
	// EnsureAccount creates a zero-balance account for userID if none exists.
	EnsureAccount(ctx context.Context, userID string, now int64) error

	// GetAccount returns ErrNotFound if the account does not exist.
	GetAccount(ctx context.Context, userID string) (*models.Account, error)

	// AdjustBalance adds delta to the stored balance and returns the result.
	// It returns ErrBalanceTooLow, leaving the row untouched, when the balance
	// would go negative.
	AdjustBalance(ctx context.Context, userID string, delta int64, now int64) (int64, error)

	// AddLoyaltyPoints increments the loyalty counter.
	AddLoyaltyPoints(ctx context.Context, userID string, points int64, now int64) error

	// InsertTransaction appends one log entry. The ID field will be populated by the store.
	InsertTransaction(ctx context.Context, tx *models.Transaction) error

	// ListTransactions returns the newest entries first.
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// ListHelperCandidates returns accounts with a positive balance other than
	// excludeUserID, richest first, ties broken by user ID.
	ListHelperCandidates(ctx context.Context, excludeUserID string, limit int) ([]*models.Account, error)
}

// ObligationStore persists borrower → helper debts.
type ObligationStore interface {
	// AddObligation creates the (borrower, helper, order) obligation or adds
	// amount to the existing one, and returns the resulting record.
	AddObligation(ctx context.Context, borrowerID, helperID, orderID string, amount int64, now int64) (*models.Obligation, error)

	GetObligation(ctx context.Context, id string) (*models.Obligation, error)

	// ListOpenObligations returns the borrower's obligations with a positive
	// amount, oldest first.
	ListOpenObligations(ctx context.Context, borrowerID string) ([]*models.Obligation, error)

	// ListObligations returns every obligation of the borrower, settled ones included.
	ListObligations(ctx context.Context, borrowerID string) ([]*models.Obligation, error)

	// SetObligationAmount updates the outstanding amount, stamping SettledAt when it reaches zero.
	SetObligationAmount(ctx context.Context, id string, amount int64, now int64) error

	// SumOutstanding returns what userID owes as a borrower and is owed as a helper.
	SumOutstanding(ctx context.Context, userID string) (asBorrower, asHelper int64, err error)
}

// RepaymentStore persists due-dated repayments.
type RepaymentStore interface {
	// CreateRepayment persists a new repayment. ID, Status and CreatedAt are
	// filled in when empty.
	CreateRepayment(ctx context.Context, r *models.Repayment) error

	GetRepayment(ctx context.Context, id string) (*models.Repayment, error)

	// ListDueRepayments returns pending repayments whose due date is before now, oldest due first.
	ListDueRepayments(ctx context.Context, now int64) ([]*models.Repayment, error)

	// ClaimRepayment moves a repayment from pending to processing.
	// It returns false if the record was not pending.
	ClaimRepayment(ctx context.Context, id string) (bool, error)

	CompleteRepayment(ctx context.Context, id string, paidAt int64) error
	FailRepayment(ctx context.Context, id string, reason string) error
}

// OrderStore persists orders and their payment authorizations.
type OrderStore interface {
	// CreateOrder persists an order with its items. ID and CreatedAt are filled in when empty.
	CreateOrder(ctx context.Context, o *models.Order) error

	GetOrder(ctx context.Context, id string) (*models.Order, error)

	// UpdateOrderState writes the status, payment and delivery fields.
	UpdateOrderState(ctx context.Context, o *models.Order) error

	CreateAuthorization(ctx context.Context, a *models.PaymentAuthorization) error
	GetAuthorization(ctx context.Context, id string) (*models.PaymentAuthorization, error)
}

// PayoutStore persists vendor payouts and loyalty awards.
type PayoutStore interface {
	// CreatePayout inserts a payout unless one already exists for the
	// (vendor, order) pair. It reports whether a row was written.
	CreatePayout(ctx context.Context, p *models.Payout) (bool, error)

	ListPayoutsByOrder(ctx context.Context, orderID string) ([]*models.Payout, error)
	ListPayoutsByVendor(ctx context.Context, vendorID string) ([]*models.Payout, error)

	// RecordLoyaltyAward inserts an award unless the (order, reason) pair was
	// already awarded. It reports whether a row was written.
	RecordLoyaltyAward(ctx context.Context, orderID, userID string, reason models.LoyaltyReason, points int64, now int64) (bool, error)
}

// Queries is every read and write operation, usable both inside and outside a transaction.
type Queries interface {
	AccountStore
	ObligationStore
	RepaymentStore
	OrderStore
	PayoutStore
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	Queries

	// InTx runs fn inside a single database transaction. The transaction is
	// committed if fn returns nil and rolled back otherwise. fn must only use
	// the Queries it is given.
	InTx(ctx context.Context, fn func(q Queries) error) error

	// Close releases any resources held by the store.
	Close() error
}
