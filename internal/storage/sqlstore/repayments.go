package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

const repaymentColumns = `id, borrower_id, helper_id, product_id, amount, due_date, status, method, paid_at, failure_reason, created_at`

func scanRepayment(row interface{ Scan(...any) error }) (*models.Repayment, error) {
	r := &models.Repayment{}
	var status string
	err := row.Scan(&r.ID, &r.BorrowerID, &r.HelperID, &r.ProductID, &r.Amount, &r.DueDate,
		&status, &r.Method, &r.PaidAt, &r.FailureReason, &r.CreatedAt)
	r.Status = models.RepaymentStatus(status)
	return r, err
}

// CreateRepayment persists a new repayment.
func (q *Queries) CreateRepayment(ctx context.Context, r *models.Repayment) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = models.RepaymentPending
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}

	_, err := q.exec(ctx,
		`INSERT INTO repayments (`+repaymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BorrowerID, r.HelperID, r.ProductID, r.Amount, r.DueDate,
		string(r.Status), r.Method, r.PaidAt, r.FailureReason, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert repayment: %w", err)
	}
	return nil
}

// GetRepayment retrieves a repayment by ID.
func (q *Queries) GetRepayment(ctx context.Context, id string) (*models.Repayment, error) {
	r, err := scanRepayment(q.queryRow(ctx,
		`SELECT `+repaymentColumns+` FROM repayments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repayment %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repayment: %w", err)
	}
	return r, nil
}

// ListDueRepayments retrieves pending repayments past their due date.
func (q *Queries) ListDueRepayments(ctx context.Context, now int64) ([]*models.Repayment, error) {
	rows, err := q.query(ctx,
		`SELECT `+repaymentColumns+` FROM repayments
		 WHERE status = ? AND due_date < ?
		 ORDER BY due_date ASC, id ASC`,
		string(models.RepaymentPending), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due repayments: %w", err)
	}
	defer rows.Close()

	var repayments []*models.Repayment
	for rows.Next() {
		r, err := scanRepayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repayment: %w", err)
		}
		repayments = append(repayments, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repayments: %w", err)
	}
	return repayments, nil
}

// ClaimRepayment moves a pending repayment to processing.
func (q *Queries) ClaimRepayment(ctx context.Context, id string) (bool, error) {
	res, err := q.exec(ctx,
		"UPDATE repayments SET status = ? WHERE id = ? AND status = ?",
		string(models.RepaymentProcessing), id, string(models.RepaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim repayment: %w", err)
	}
	return affectedOne(res)
}

// CompleteRepayment marks a repayment as paid.
func (q *Queries) CompleteRepayment(ctx context.Context, id string, paidAt int64) error {
	_, err := q.exec(ctx,
		"UPDATE repayments SET status = ?, paid_at = ?, failure_reason = '' WHERE id = ?",
		string(models.RepaymentCompleted), paidAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete repayment: %w", err)
	}
	return nil
}

// FailRepayment marks a repayment as failed.
func (q *Queries) FailRepayment(ctx context.Context, id string, reason string) error {
	_, err := q.exec(ctx,
		"UPDATE repayments SET status = ?, failure_reason = ? WHERE id = ?",
		string(models.RepaymentFailed), reason, id,
	)
	if err != nil {
		return fmt.Errorf("failed to fail repayment: %w", err)
	}
	return nil
}
