package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

const obligationColumns = `id, borrower_id, helper_id, order_id, amount, created_at, updated_at, settled_at`

func scanObligation(row interface{ Scan(...any) error }) (*models.Obligation, error) {
	o := &models.Obligation{}
	err := row.Scan(&o.ID, &o.BorrowerID, &o.HelperID, &o.OrderID, &o.Amount,
		&o.CreatedAt, &o.UpdatedAt, &o.SettledAt)
	return o, err
}

// AddObligation upserts the (borrower, helper, order) obligation.
func (q *Queries) AddObligation(ctx context.Context, borrowerID, helperID, orderID string, amount int64, now int64) (*models.Obligation, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate obligation id: %w", err)
	}

	_, err = q.exec(ctx,
		`INSERT INTO obligations (id, borrower_id, helper_id, order_id, amount, created_at, updated_at, settled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT (borrower_id, helper_id, order_id) DO UPDATE
		 SET amount = obligations.amount + excluded.amount,
		     updated_at = excluded.updated_at,
		     settled_at = 0`,
		id.String(), borrowerID, helperID, orderID, amount, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert obligation: %w", err)
	}

	o, err := scanObligation(q.queryRow(ctx,
		`SELECT `+obligationColumns+` FROM obligations
		 WHERE borrower_id = ? AND helper_id = ? AND order_id = ?`,
		borrowerID, helperID, orderID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to read back obligation: %w", err)
	}
	return o, nil
}

// GetObligation retrieves an obligation by ID.
func (q *Queries) GetObligation(ctx context.Context, id string) (*models.Obligation, error) {
	o, err := scanObligation(q.queryRow(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("obligation %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get obligation: %w", err)
	}
	return o, nil
}

// ListOpenObligations retrieves a borrower's unpaid obligations, oldest first.
func (q *Queries) ListOpenObligations(ctx context.Context, borrowerID string) ([]*models.Obligation, error) {
	return q.listObligations(ctx,
		`SELECT `+obligationColumns+` FROM obligations
		 WHERE borrower_id = ? AND amount > 0
		 ORDER BY created_at ASC, id ASC`,
		borrowerID,
	)
}

// ListObligations retrieves all of a borrower's obligations, oldest first.
func (q *Queries) ListObligations(ctx context.Context, borrowerID string) ([]*models.Obligation, error) {
	return q.listObligations(ctx,
		`SELECT `+obligationColumns+` FROM obligations
		 WHERE borrower_id = ?
		 ORDER BY created_at ASC, id ASC`,
		borrowerID,
	)
}

func (q *Queries) listObligations(ctx context.Context, query string, args ...any) ([]*models.Obligation, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list obligations: %w", err)
	}
	defer rows.Close()

	var obligations []*models.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate obligations: %w", err)
	}
	return obligations, nil
}

// SetObligationAmount updates the outstanding amount.
func (q *Queries) SetObligationAmount(ctx context.Context, id string, amount int64, now int64) error {
	var settledAt int64
	if amount == 0 {
		settledAt = now
	}
	res, err := q.exec(ctx,
		"UPDATE obligations SET amount = ?, updated_at = ?, settled_at = ? WHERE id = ?",
		amount, now, settledAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update obligation: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("obligation %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// SumOutstanding totals open obligations on both sides for a user.
func (q *Queries) SumOutstanding(ctx context.Context, userID string) (int64, int64, error) {
	var asBorrower, asHelper int64
	err := q.queryRow(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN borrower_id = ? THEN amount ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN helper_id = ? THEN amount ELSE 0 END), 0)
		 FROM obligations
		 WHERE borrower_id = ? OR helper_id = ?`,
		userID, userID, userID, userID,
	).Scan(&asBorrower, &asHelper)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum obligations: %w", err)
	}
	return asBorrower, asHelper, nil
}
