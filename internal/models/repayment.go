package models

// RepaymentStatus is the lifecycle state of a Repayment.
type RepaymentStatus string

const (
	RepaymentPending    RepaymentStatus = "pending"
	RepaymentProcessing RepaymentStatus = "processing"
	RepaymentCompleted  RepaymentStatus = "completed"
	RepaymentFailed     RepaymentStatus = "failed"
)

// Repayment is a scheduled, due-dated promise from a borrower to repay a
// helper. It is created outside the ledger (e.g. by an installment plan) and
// consumed by the settlement worker.
type Repayment struct {
	// ID is the unique identifier for the repayment (UUID format).
	ID string

	BorrowerID string
	HelperID   string

	// ProductID is the product the repayment relates to.
	ProductID string

	Amount int64

	// DueDate is the Unix timestamp after which the worker settles the record.
	DueDate int64

	Status RepaymentStatus

	// Method is the borrower's preferred repayment method, informational only.
	Method string

	// PaidAt is set when the repayment completes.
	PaidAt int64

	// FailureReason explains a failed status.
	FailureReason string

	CreatedAt int64
}
