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

// EnsureAccount creates an empty account if the user has none.
func (q *Queries) EnsureAccount(ctx context.Context, userID string, now int64) error {
	_, err := q.exec(ctx,
		`INSERT INTO accounts (user_id, balance, loyalty_points, created_at, updated_at)
		 VALUES (?, 0, 0, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by user ID.
func (q *Queries) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	acct := &models.Account{}
	err := q.queryRow(ctx,
		`SELECT user_id, balance, loyalty_points, created_at, updated_at
		 FROM accounts WHERE user_id = ?`,
		userID,
	).Scan(&acct.UserID, &acct.Balance, &acct.LoyaltyPoints, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// AdjustBalance adds delta to the balance in a single guarded statement and
// returns the new balance. The row is updated relative to its committed
// value, so concurrent writers in other processes cannot lose each other's
// updates. A debit that would go negative changes nothing and returns
// storage.ErrBalanceTooLow.
func (q *Queries) AdjustBalance(ctx context.Context, userID string, delta int64, now int64) (int64, error) {
	var balance int64
	err := q.queryRow(ctx,
		`UPDATE accounts SET balance = balance + ?, updated_at = ?
		 WHERE user_id = ? AND balance + ? >= 0
		 RETURNING balance`,
		delta, now, userID, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}

	if _, err := q.GetAccount(ctx, userID); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("account %s: %w", userID, storage.ErrBalanceTooLow)
}

// AddLoyaltyPoints increments the loyalty counter.
func (q *Queries) AddLoyaltyPoints(ctx context.Context, userID string, points int64, now int64) error {
	res, err := q.exec(ctx,
		"UPDATE accounts SET loyalty_points = loyalty_points + ?, updated_at = ? WHERE user_id = ?",
		points, now, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add loyalty points: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("account %s: %w", userID, storage.ErrNotFound)
	}
	return nil
}

// InsertTransaction appends an entry to an account log.
// IDs are UUIDv7 so that ID order is write order.
func (q *Queries) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transaction id: %w", err)
		}
		t.ID = id.String()
	}

	_, err := q.exec(ctx,
		`INSERT INTO transactions (id, user_id, kind, amount, delta, counterparty_id, order_id, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Kind), t.Amount, t.Delta, t.CounterpartyID, t.OrderID, t.Note, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListTransactions retrieves the newest entries of an account log.
func (q *Queries) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	rows, err := q.query(ctx,
		`SELECT id, user_id, kind, amount, delta, counterparty_id, order_id, note, created_at
		 FROM transactions WHERE user_id = ?
		 ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		var kind string
		if err := rows.Scan(&t.ID, &t.UserID, &kind, &t.Amount, &t.Delta,
			&t.CounterpartyID, &t.OrderID, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Kind = models.TransactionKind(kind)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}

// ListHelperCandidates retrieves accounts that can lend, richest first.
func (q *Queries) ListHelperCandidates(ctx context.Context, excludeUserID string, limit int) ([]*models.Account, error) {
	rows, err := q.query(ctx,
		`SELECT user_id, balance, loyalty_points, created_at, updated_at
		 FROM accounts
		 WHERE balance > 0 AND user_id <> ?
		 ORDER BY balance DESC, user_id ASC
		 LIMIT ?`,
		excludeUserID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list helper candidates: %w", err)
	}
	defer rows.Close()

	var accts []*models.Account
	for rows.Next() {
		a := &models.Account{}
		if err := rows.Scan(&a.UserID, &a.Balance, &a.LoyaltyPoints, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accts = append(accts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accts, nil
}
