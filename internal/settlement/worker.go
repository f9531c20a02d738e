// Package settlement force-resolves overdue repayments. A Worker sweeps on a
// fixed interval; ProcessRepaymentNow settles a single record on demand.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/metrics"
	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

// Common errors
var (
	ErrRepaymentNotFound   = errors.New("repayment not found")
	ErrRepaymentNotPending = errors.New("repayment is not pending")
	ErrSweepInProgress     = errors.New("settlement sweep already running")
	ErrInvalidRepayment    = errors.New("invalid repayment")
)

// DefaultInterval is how often the worker sweeps when none is configured.
const DefaultInterval = time.Hour

// RunReport summarizes one sweep.
type RunReport struct {
	Completed int
	Failed    int

	// Skipped counts records another processor claimed first, or whose
	// settlement hit a storage error and stays pending for the next run.
	Skipped int

	Duration time.Duration
}

// Worker settles due repayments.
type Worker struct {
	store    storage.Store
	ledger   *ledger.Ledger
	interval time.Duration
	running  sync.Mutex
}

// NewWorker creates a Worker. A non-positive interval falls back to DefaultInterval.
func NewWorker(store storage.Store, l *ledger.Ledger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{store: store, ledger: l, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Settlement worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Settlement worker stopped")
			return ctx.Err()
		case <-ticker.C:
			report, err := w.RunOnce(ctx)
			if errors.Is(err, ErrSweepInProgress) {
				metrics.SweepsSkipped.Inc()
				slog.Warn("Settlement sweep skipped, previous run still active")
				continue
			}
			if err != nil {
				slog.Error("Settlement sweep failed", "error", err)
				continue
			}
			slog.Info("Settlement sweep finished",
				"completed", report.Completed,
				"failed", report.Failed,
				"skipped", report.Skipped,
				"duration", report.Duration,
			)
		}
	}
}

// RunOnce settles every pending repayment due before now. Individual
// failures are recorded on the repayment and counted, never returned.
// It returns ErrSweepInProgress if another sweep holds the worker.
func (w *Worker) RunOnce(ctx context.Context) (*RunReport, error) {
	if !w.running.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer w.running.Unlock()

	start := time.Now()
	report := &RunReport{}
	defer func() {
		report.Duration = time.Since(start)
		metrics.SweepDuration.Observe(report.Duration.Seconds())
	}()

	due, err := w.store.ListDueRepayments(ctx, w.ledger.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list due repayments: %w", err)
	}

	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		status, err := w.settle(ctx, r.ID)
		switch {
		case errors.Is(err, ErrRepaymentNotPending):
			report.Skipped++
		case err != nil:
			report.Skipped++
			slog.Error("Repayment settlement error", "repayment_id", r.ID, "error", err)
		case status == models.RepaymentCompleted:
			report.Completed++
		default:
			report.Failed++
		}
	}

	return report, nil
}

// ProcessRepaymentNow settles one repayment regardless of its due date.
func (w *Worker) ProcessRepaymentNow(ctx context.Context, id string) (*models.Repayment, error) {
	if _, err := w.Repayment(ctx, id); err != nil {
		return nil, err
	}
	if _, err := w.settle(ctx, id); err != nil {
		return nil, err
	}
	return w.Repayment(ctx, id)
}

// Repayment retrieves one repayment.
func (w *Worker) Repayment(ctx context.Context, id string) (*models.Repayment, error) {
	r, err := w.store.GetRepayment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRepaymentNotFound, id)
	}
	return r, err
}

// CreateRepayment schedules a repayment from borrower to helper.
func (w *Worker) CreateRepayment(ctx context.Context, r *models.Repayment) error {
	switch {
	case r.BorrowerID == "" || r.HelperID == "":
		return fmt.Errorf("%w: borrower and helper are required", ErrInvalidRepayment)
	case r.BorrowerID == r.HelperID:
		return fmt.Errorf("%w: borrower and helper must differ", ErrInvalidRepayment)
	case r.Amount <= 0:
		return fmt.Errorf("%w: %w", ErrInvalidRepayment, ledger.ErrInvalidAmount)
	}
	r.Status = models.RepaymentPending
	if r.CreatedAt == 0 {
		r.CreatedAt = w.ledger.Now().Unix()
	}
	return w.store.InTx(ctx, func(q storage.Queries) error {
		return q.CreateRepayment(ctx, r)
	})
}

// settle claims one repayment and resolves it in a single ledger transaction:
// either the borrower pays the helper and the record completes, or the record
// fails with a reason. A storage error rolls everything back, claim included.
func (w *Worker) settle(ctx context.Context, id string) (models.RepaymentStatus, error) {
	var status models.RepaymentStatus
	var r *models.Repayment
	err := w.ledger.Update(ctx, func(tx *ledger.Tx) error {
		q := tx.Queries()
		claimed, err := q.ClaimRepayment(ctx, id)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("%w: %s", ErrRepaymentNotPending, id)
		}

		r, err = q.GetRepayment(ctx, id)
		if err != nil {
			return err
		}

		acct, err := tx.Account(ctx, r.BorrowerID)
		if err != nil {
			return err
		}
		if acct.Balance < r.Amount {
			status = models.RepaymentFailed
			reason := fmt.Sprintf("insufficient balance: have %d, need %d", acct.Balance, r.Amount)
			return q.FailRepayment(ctx, id, reason)
		}

		if err := tx.Transfer(ctx, r.BorrowerID, r.HelperID, r.Amount, models.TransactionReimburse, "", "scheduled repayment"); err != nil {
			return err
		}
		status = models.RepaymentCompleted
		amount := r.Amount
		tx.AfterCommit(func() { metrics.ReimbursedPoints.WithLabelValues("repayment").Add(float64(amount)) })
		return q.CompleteRepayment(ctx, id, tx.Now())
	})
	if err != nil {
		return "", err
	}

	metrics.Repayments.WithLabelValues(string(status)).Inc()
	slog.Info("Repayment settled",
		"repayment_id", id,
		"borrower_id", r.BorrowerID,
		"helper_id", r.HelperID,
		"amount", r.Amount,
		"status", status,
	)
	return status, nil
}
