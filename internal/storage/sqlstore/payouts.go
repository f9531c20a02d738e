package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/helperpoints/internal/models"
)

// CreatePayout inserts a payout once per (vendor, order).
func (q *Queries) CreatePayout(ctx context.Context, p *models.Payout) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = models.PayoutPending
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}

	res, err := q.exec(ctx,
		`INSERT INTO payouts (id, vendor_id, order_id, gross, commission_percent, commission, net, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (vendor_id, order_id) DO NOTHING`,
		p.ID, p.VendorID, p.OrderID, p.Gross, p.CommissionPercent, p.Commission, p.Net,
		string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert payout: %w", err)
	}
	return affectedOne(res)
}

// ListPayoutsByOrder retrieves the payouts of an order, ordered by vendor.
func (q *Queries) ListPayoutsByOrder(ctx context.Context, orderID string) ([]*models.Payout, error) {
	return q.listPayouts(ctx,
		`SELECT id, vendor_id, order_id, gross, commission_percent, commission, net, status, created_at
		 FROM payouts WHERE order_id = ? ORDER BY vendor_id`,
		orderID,
	)
}

// ListPayoutsByVendor retrieves a vendor's payouts, newest first.
func (q *Queries) ListPayoutsByVendor(ctx context.Context, vendorID string) ([]*models.Payout, error) {
	return q.listPayouts(ctx,
		`SELECT id, vendor_id, order_id, gross, commission_percent, commission, net, status, created_at
		 FROM payouts WHERE vendor_id = ? ORDER BY created_at DESC, order_id`,
		vendorID,
	)
}

func (q *Queries) listPayouts(ctx context.Context, query string, args ...any) ([]*models.Payout, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p := &models.Payout{}
		var status string
		if err := rows.Scan(&p.ID, &p.VendorID, &p.OrderID, &p.Gross, &p.CommissionPercent,
			&p.Commission, &p.Net, &status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		p.Status = models.PayoutStatus(status)
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// RecordLoyaltyAward inserts an award once per (order, reason).
func (q *Queries) RecordLoyaltyAward(ctx context.Context, orderID, userID string, reason models.LoyaltyReason, points int64, now int64) (bool, error) {
	res, err := q.exec(ctx,
		`INSERT INTO loyalty_awards (order_id, reason, user_id, points, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (order_id, reason) DO NOTHING`,
		orderID, string(reason), userID, points, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record loyalty award: %w", err)
	}
	return affectedOne(res)
}
