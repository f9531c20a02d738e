package models

// PayoutStatus is the disbursement state of a Payout.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "PENDING"
	PayoutPaid    PayoutStatus = "PAID"
)

// Payout is one vendor's proceeds from a delivered order after commission.
// Exactly one payout exists per (vendor, order). Only Status changes after creation.
type Payout struct {
	ID       string
	VendorID string
	OrderID  string

	// Gross is the vendor's revenue on the order before commission.
	Gross int64

	CommissionPercent int64
	Commission        int64

	// Net is Gross minus Commission.
	Net int64

	Status    PayoutStatus
	CreatedAt int64
}
