package models

// TransactionKind classifies an account log entry.
type TransactionKind string

const (
	// TransactionTopUp is money added to a wallet from outside the ledger.
	TransactionTopUp TransactionKind = "topup"

	// TransactionHelp records points moving from a helper to cover a shortfall.
	// The helper's entry carries a negative delta; the borrower gets a
	// zero-delta mirror entry so the help is visible in both logs.
	TransactionHelp TransactionKind = "help"

	// TransactionReimburse records a borrower paying a helper back.
	TransactionReimburse TransactionKind = "reimburse"

	// TransactionPurchase is a wallet debit that pays for an order.
	TransactionPurchase TransactionKind = "purchase"
)

// Valid reports whether k is one of the known kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionTopUp, TransactionHelp, TransactionReimburse, TransactionPurchase:
		return true
	}
	return false
}

// Account holds a user's spendable point balance.
// Accounts are created lazily the first time a user is touched by the ledger.
type Account struct {
	// UserID is the owning user. One account per user.
	UserID string

	// Balance is the spendable amount. Never negative.
	Balance int64

	// LoyaltyPoints is the reward counter. It is not spendable balance.
	LoyaltyPoints int64

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last balance change.
	UpdatedAt int64
}

// Transaction is one entry in an account's append-only log.
type Transaction struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// UserID is the account the entry belongs to.
	UserID string

	Kind TransactionKind

	// Amount is the magnitude moved, always positive.
	Amount int64

	// Delta is the signed effect on the account balance.
	// Mirror entries have a zero delta.
	Delta int64

	// CounterpartyID is the other user involved, if any.
	CounterpartyID string

	// OrderID is the order that caused the entry, if any.
	OrderID string

	Note string

	// CreatedAt is the Unix timestamp when the entry was written.
	CreatedAt int64
}

// AccountSummary is the read model returned to account owners.
type AccountSummary struct {
	UserID        string
	Balance       int64
	LoyaltyPoints int64

	// OutstandingAsBorrower is what this user still owes helpers.
	OutstandingAsBorrower int64

	// OutstandingAsHelper is what other users still owe this user.
	OutstandingAsHelper int64
}
