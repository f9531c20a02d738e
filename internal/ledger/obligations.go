package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/helperpoints/internal/metrics"
	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

// TopUpResult reports a wallet top-up and the reimbursement sweep that followed it.
type TopUpResult struct {
	NewBalance int64

	// Reimbursed is the total paid to helpers out of the new balance.
	Reimbursed int64

	// Touched are the obligations that were reduced, in settlement order.
	Touched []*models.Obligation
}

// Reimburse pays the borrower's open obligations, oldest first, out of the
// current balance. Obligations may be paid partially. It returns the total
// paid and the obligations it reduced.
func (t *Tx) Reimburse(ctx context.Context, borrowerID string) (int64, []*models.Obligation, error) {
	acct, err := t.Account(ctx, borrowerID)
	if err != nil {
		return 0, nil, err
	}
	balance := acct.Balance
	if balance == 0 {
		return 0, nil, nil
	}

	open, err := t.q.ListOpenObligations(ctx, borrowerID)
	if err != nil {
		return 0, nil, err
	}

	var paid int64
	var touched []*models.Obligation
	for _, o := range open {
		if balance == 0 {
			break
		}
		pay := min(balance, o.Amount)

		if err := t.Transfer(ctx, borrowerID, o.HelperID, pay, models.TransactionReimburse, o.OrderID, "obligation repayment"); err != nil {
			return 0, nil, err
		}

		o.Amount -= pay
		o.UpdatedAt = t.now
		if o.Amount == 0 {
			o.SettledAt = t.now
		}
		if err := t.q.SetObligationAmount(ctx, o.ID, o.Amount, t.now); err != nil {
			return 0, nil, err
		}

		balance -= pay
		paid += pay
		touched = append(touched, o)
	}

	return paid, touched, nil
}

// TopUp credits the user's wallet and immediately sweeps their outstanding
// obligations against the new balance.
func (l *Ledger) TopUp(ctx context.Context, userID string, amount int64) (*TopUpResult, error) {
	res := &TopUpResult{}
	err := l.Update(ctx, func(tx *Tx) error {
		if _, err := tx.Credit(ctx, Entry{
			UserID: userID,
			Kind:   models.TransactionTopUp,
			Amount: amount,
			Note:   "wallet top-up",
		}); err != nil {
			return err
		}

		paid, touched, err := tx.Reimburse(ctx, userID)
		if err != nil {
			return err
		}
		res.Reimbursed = paid
		res.Touched = touched

		acct, err := tx.Account(ctx, userID)
		if err != nil {
			return err
		}
		res.NewBalance = acct.Balance

		tx.AfterCommit(func() { metrics.ReimbursedPoints.WithLabelValues("topup").Add(float64(paid)) })
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Wallet topped up",
		"user_id", userID,
		"amount", amount,
		"reimbursed", res.Reimbursed,
		"new_balance", res.NewBalance,
	)
	return res, nil
}

// Obligations lists every obligation of a borrower, settled ones included.
func (l *Ledger) Obligations(ctx context.Context, borrowerID string) ([]*models.Obligation, error) {
	return l.store.ListObligations(ctx, borrowerID)
}

// Obligation retrieves one obligation by ID.
func (l *Ledger) Obligation(ctx context.Context, id string) (*models.Obligation, error) {
	o, err := l.store.GetObligation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrObligationNotFound, id)
	}
	return o, err
}
