package ledger

import (
	"context"
	"log/slog"

	"github.com/mmynk/helperpoints/internal/calculator"
	"github.com/mmynk/helperpoints/internal/metrics"
	"github.com/mmynk/helperpoints/internal/models"
)

// Allocation is the outcome of covering a borrower's shortfall from the helper pool.
// Allocated + Remaining always equals Needed.
type Allocation struct {
	BorrowerID string
	OrderID    string
	Needed     int64

	// Allocated is what the pool supplied, or could have supplied when not committed.
	Allocated int64
	Remaining int64

	Shares      []calculator.Share
	Obligations []*models.Obligation

	// Committed is true when helper balances were actually debited.
	Committed bool
}

// Covered reports whether the full amount was sourced.
func (a *Allocation) Covered() bool {
	return a.Remaining == 0
}

// PlanAllocation computes how need would be split over the current helper
// pool without writing anything.
func (t *Tx) PlanAllocation(ctx context.Context, borrowerID string, need int64) (calculator.AllocationPlan, error) {
	accts, err := t.q.ListHelperCandidates(ctx, borrowerID, t.ledger.candidateLimit)
	if err != nil {
		return calculator.AllocationPlan{}, err
	}
	helpers := make([]calculator.Helper, len(accts))
	for i, a := range accts {
		helpers[i] = calculator.Helper{UserID: a.UserID, Balance: a.Balance}
	}
	return calculator.PlanAllocation(need, helpers), nil
}

// Allocate covers need for borrowerID from other accounts, richest first.
//
// The plan is computed against the balances visible in this transaction and
// committed only if it covers need in full. A short plan writes nothing and
// comes back with Committed false and Remaining > 0.
func (t *Tx) Allocate(ctx context.Context, borrowerID string, need int64, orderID string) (*Allocation, error) {
	if need <= 0 {
		return nil, ErrInvalidAmount
	}

	plan, err := t.PlanAllocation(ctx, borrowerID, need)
	if err != nil {
		return nil, err
	}

	alloc := &Allocation{
		BorrowerID: borrowerID,
		OrderID:    orderID,
		Needed:     plan.Needed,
		Allocated:  plan.Allocated,
		Remaining:  plan.Remaining,
		Shares:     plan.Shares,
	}

	if !plan.Covered() {
		outcome := "short"
		if plan.Allocated == 0 {
			outcome = "none"
		}
		t.AfterCommit(func() { metrics.Allocations.WithLabelValues(outcome).Inc() })
		slog.Info("Allocation not covered, nothing committed",
			"borrower_id", borrowerID,
			"order_id", orderID,
			"needed", need,
			"available", plan.Allocated,
			"remaining", plan.Remaining,
		)
		return alloc, nil
	}

	if err := t.commitPlan(ctx, alloc); err != nil {
		return nil, err
	}

	t.AfterCommit(func() {
		metrics.Allocations.WithLabelValues("covered").Inc()
		metrics.AllocatedPoints.Add(float64(alloc.Allocated))
	})
	return alloc, nil
}

// commitPlan debits each helper, mirrors the help on the borrower's log and
// records the matching obligation.
func (t *Tx) commitPlan(ctx context.Context, alloc *Allocation) error {
	if _, err := t.Account(ctx, alloc.BorrowerID); err != nil {
		return err
	}

	for _, share := range alloc.Shares {
		if _, err := t.Debit(ctx, Entry{
			UserID:         share.HelperID,
			Kind:           models.TransactionHelp,
			Amount:         share.Amount,
			CounterpartyID: alloc.BorrowerID,
			OrderID:        alloc.OrderID,
			Note:           "help given",
		}); err != nil {
			return err
		}

		// The borrower's balance is not increased; the entry is for audit only.
		if err := t.record(ctx, Entry{
			UserID:         alloc.BorrowerID,
			Kind:           models.TransactionHelp,
			Amount:         share.Amount,
			CounterpartyID: share.HelperID,
			OrderID:        alloc.OrderID,
			Note:           "help received",
		}, 0); err != nil {
			return err
		}

		o, err := t.q.AddObligation(ctx, alloc.BorrowerID, share.HelperID, alloc.OrderID, share.Amount, t.now)
		if err != nil {
			return err
		}
		alloc.Obligations = append(alloc.Obligations, o)

		slog.Debug("Helper share committed",
			"borrower_id", alloc.BorrowerID,
			"helper_id", share.HelperID,
			"order_id", alloc.OrderID,
			"amount", share.Amount,
		)
	}

	alloc.Committed = true
	return nil
}

// Allocate runs a standalone allocation as its own atomic mutation.
func (l *Ledger) Allocate(ctx context.Context, borrowerID string, need int64, orderID string) (*Allocation, error) {
	var alloc *Allocation
	err := l.Update(ctx, func(tx *Tx) error {
		var err error
		alloc, err = tx.Allocate(ctx, borrowerID, need, orderID)
		return err
	})
	return alloc, err
}
