package models

// Obligation is an open-ended debt from a borrower to one helper, created
// when the helper covered part of the borrower's shortfall on an order.
//
// Obligations are never deleted. When Amount reaches zero the record stays
// as an audit trail and SettledAt is stamped.
type Obligation struct {
	// ID is the unique identifier for the obligation (UUID format).
	ID string

	BorrowerID string
	HelperID   string

	// OrderID is the order whose shortfall the helper covered.
	OrderID string

	// Amount is the outstanding amount. Never negative.
	Amount int64

	CreatedAt int64
	UpdatedAt int64

	// SettledAt is set once Amount reaches zero.
	SettledAt int64
}

// Settled reports whether nothing is outstanding.
func (o *Obligation) Settled() bool {
	return o.Amount == 0
}
