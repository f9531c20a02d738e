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

// CreateOrder persists a new order with its line items.
// Callers that need atomicity with other writes run it inside InTx.
func (q *Queries) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt == 0 {
		o.CreatedAt = time.Now().Unix()
	}
	if o.UpdatedAt == 0 {
		o.UpdatedAt = o.CreatedAt
	}

	_, err := q.exec(ctx,
		`INSERT INTO orders (id, buyer_id, status, payment_method, payment_status, payment_transaction_id,
		   payment_amount, subtotal, shipping, tax, discount, points_discount, total,
		   created_at, updated_at, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.BuyerID, string(o.Status), string(o.Payment.Method), string(o.Payment.Status),
		o.Payment.TransactionID, o.Payment.Amount, o.Subtotal, o.Shipping, o.Tax, o.Discount,
		o.PointsDiscount, o.Total, o.CreatedAt, o.UpdatedAt, o.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err = q.exec(ctx,
			`INSERT INTO order_items (order_id, line_no, product_id, vendor_id, name, price, quantity, item_condition)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, i, item.ProductID, item.VendorID, item.Name, item.Price, item.Quantity, string(item.Condition),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

// GetOrder retrieves an order by ID, including its line items.
func (q *Queries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o := &models.Order{}
	var status, method, paymentStatus string
	err := q.queryRow(ctx,
		`SELECT id, buyer_id, status, payment_method, payment_status, payment_transaction_id,
		   payment_amount, subtotal, shipping, tax, discount, points_discount, total,
		   created_at, updated_at, delivered_at
		 FROM orders WHERE id = ?`,
		id,
	).Scan(&o.ID, &o.BuyerID, &status, &method, &paymentStatus, &o.Payment.TransactionID,
		&o.Payment.Amount, &o.Subtotal, &o.Shipping, &o.Tax, &o.Discount, &o.PointsDiscount, &o.Total,
		&o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.Status = models.OrderStatus(status)
	o.Payment.Method = models.PaymentMethod(method)
	o.Payment.Status = models.PaymentStatus(paymentStatus)

	rows, err := q.query(ctx,
		`SELECT product_id, vendor_id, name, price, quantity, item_condition
		 FROM order_items WHERE order_id = ? ORDER BY line_no`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.LineItem
		var condition string
		if err := rows.Scan(&item.ProductID, &item.VendorID, &item.Name, &item.Price, &item.Quantity, &condition); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Condition = models.ItemCondition(condition)
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return o, nil
}

// UpdateOrderState writes the mutable lifecycle fields of an order.
func (q *Queries) UpdateOrderState(ctx context.Context, o *models.Order) error {
	res, err := q.exec(ctx,
		`UPDATE orders SET status = ?, payment_status = ?, payment_transaction_id = ?,
		   payment_amount = ?, updated_at = ?, delivered_at = ?
		 WHERE id = ?`,
		string(o.Status), string(o.Payment.Status), o.Payment.TransactionID,
		o.Payment.Amount, o.UpdatedAt, o.DeliveredAt, o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %s: %w", o.ID, storage.ErrNotFound)
	}
	return nil
}

// CreateAuthorization persists a payment authorization.
func (q *Queries) CreateAuthorization(ctx context.Context, a *models.PaymentAuthorization) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().Unix()
	}
	_, err := q.exec(ctx,
		`INSERT INTO payment_authorizations (id, order_id, method, amount, external_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.OrderID, string(a.Method), a.Amount, a.ExternalRef, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert authorization: %w", err)
	}
	return nil
}

// GetAuthorization retrieves a payment authorization by ID.
func (q *Queries) GetAuthorization(ctx context.Context, id string) (*models.PaymentAuthorization, error) {
	a := &models.PaymentAuthorization{}
	var method string
	err := q.queryRow(ctx,
		`SELECT id, order_id, method, amount, external_ref, created_at
		 FROM payment_authorizations WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.OrderID, &method, &a.Amount, &a.ExternalRef, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("authorization %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}
	a.Method = models.PaymentMethod(method)
	return a, nil
}
