package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/helperpoints/internal/calculator"
	"github.com/mmynk/helperpoints/internal/catalog"
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/metrics"
	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/storage"
)

// Common errors
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotReturnable     = errors.New("order is not returnable")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrPaymentRequired   = errors.New("order payment is not completed")
)

// Policy holds the commercial constants applied on delivery.
type Policy struct {
	// CommissionPercent is the platform's cut of each vendor's gross.
	CommissionPercent int64

	// DeliveryEarnDivisor awards one loyalty point per this many units of
	// new (non-resale) items on delivery.
	DeliveryEarnDivisor int64

	// PaymentEarnDivisor awards one loyalty point per this many units paid.
	// Used here when cash-on-delivery payment is collected.
	PaymentEarnDivisor int64

	// ReturnWindow is how long after delivery a return may be requested.
	ReturnWindow time.Duration
}

// DefaultPolicy returns the standard commercial constants.
func DefaultPolicy() Policy {
	return Policy{
		CommissionPercent:   5,
		DeliveryEarnDivisor: 50,
		PaymentEarnDivisor:  100,
		ReturnWindow:        7 * 24 * time.Hour,
	}
}

// Controller drives order status changes.
type Controller struct {
	store  storage.Store
	ledger *ledger.Ledger
	stock  catalog.Stock
	policy Policy
}

// NewController creates a Controller.
func NewController(store storage.Store, l *ledger.Ledger, stock catalog.Stock, policy Policy) *Controller {
	return &Controller{store: store, ledger: l, stock: stock, policy: policy}
}

// CreateOrderInput is what a storefront hands over when an order is placed.
type CreateOrderInput struct {
	BuyerID        string
	Items          []models.LineItem
	Method         models.PaymentMethod
	Shipping       int64
	Tax            int64
	Discount       int64
	PointsDiscount int64
}

// Create validates the order, decrements stock and persists it as pending.
// Stock already taken is put back if anything fails.
func (c *Controller) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.BuyerID == "" {
		return nil, fmt.Errorf("%w: buyer is required", ErrInvalidOrder)
	}
	if _, err := models.ParsePaymentMethod(string(in.Method)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	for i := range in.Items {
		switch in.Items[i].Condition {
		case "":
			in.Items[i].Condition = models.ConditionNew
		case models.ConditionNew, models.ConditionSecondHand:
		default:
			return nil, fmt.Errorf("%w: unknown item condition %q", ErrInvalidOrder, in.Items[i].Condition)
		}
	}

	totals, err := calculator.OrderTotals(calcItems(in.Items), in.Shipping, in.Tax, in.Discount, in.PointsDiscount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}

	var taken []models.LineItem
	restore := func() {
		for _, item := range taken {
			if err := c.stock.Restore(ctx, item.ProductID, item.Quantity); err != nil {
				slog.Error("Failed to restore stock", "product_id", item.ProductID, "error", err)
			}
		}
	}
	for _, item := range in.Items {
		if err := c.stock.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			restore()
			return nil, fmt.Errorf("failed to reserve stock: %w", err)
		}
		taken = append(taken, item)
	}

	now := c.ledger.Now().Unix()
	order := &models.Order{
		BuyerID:        in.BuyerID,
		Items:          in.Items,
		Status:         models.OrderPending,
		Payment:        models.Payment{Method: in.Method, Status: models.PaymentPending},
		Subtotal:       totals.Subtotal,
		Shipping:       totals.Shipping,
		Tax:            totals.Tax,
		Discount:       totals.Discount,
		PointsDiscount: totals.PointsDiscount,
		Total:          totals.Total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = c.store.InTx(ctx, func(q storage.Queries) error {
		return q.CreateOrder(ctx, order)
	})
	if err != nil {
		restore()
		return nil, err
	}

	slog.Info("Order created",
		"order_id", order.ID,
		"buyer_id", order.BuyerID,
		"total", order.Total,
		"method", order.Payment.Method,
	)
	return order, nil
}

// Get retrieves an order.
func (c *Controller) Get(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := c.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return o, err
}

// TransitionResult reports what a status change produced.
type TransitionResult struct {
	Order *models.Order

	// Payouts are the payouts created by this call (delivery only).
	Payouts []*models.Payout

	// LoyaltyAwarded is the total loyalty points granted by this call.
	LoyaltyAwarded int64
}

// Transition moves an order to status to. Moving to delivered runs the
// delivery hook in the same transaction. Moving to cancelled puts stock back
// but never reverses point settlements or payouts.
func (c *Controller) Transition(ctx context.Context, orderID string, to models.OrderStatus) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := c.ledger.Update(ctx, func(tx *ledger.Tx) error {
		q := tx.Queries()
		order, err := q.GetOrder(ctx, orderID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		if err != nil {
			return err
		}

		if !CanTransition(order.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
		}
		if to == models.OrderReturnRequested {
			if err := c.checkReturnable(order, tx.Now()); err != nil {
				return err
			}
		}
		if fulfilment(to) && !paidOrCollectable(order.Payment) {
			return fmt.Errorf("%w: %s payment is %s", ErrPaymentRequired, order.Payment.Method, order.Payment.Status)
		}

		order.Status = to
		order.UpdatedAt = tx.Now()
		if to == models.OrderDelivered {
			order.DeliveredAt = tx.Now()
			if err := c.onDelivered(ctx, tx, order, res); err != nil {
				return err
			}
		}

		if err := q.UpdateOrderState(ctx, order); err != nil {
			return err
		}
		res.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if to == models.OrderCancelled {
		c.restoreStock(ctx, res.Order)
	}

	slog.Info("Order status changed",
		"order_id", orderID,
		"status", to,
		"payouts", len(res.Payouts),
		"loyalty_awarded", res.LoyaltyAwarded,
	)
	return res, nil
}

// Cancel cancels a non-terminal order.
func (c *Controller) Cancel(ctx context.Context, orderID string) (*TransitionResult, error) {
	return c.Transition(ctx, orderID, models.OrderCancelled)
}

// RequestReturn moves a delivered order to return_requested.
func (c *Controller) RequestReturn(ctx context.Context, orderID string) (*TransitionResult, error) {
	return c.Transition(ctx, orderID, models.OrderReturnRequested)
}

// OnDelivered marks a shipped order delivered. For an order that is already
// delivered it re-runs the delivery hook, which creates only what is missing.
func (c *Controller) OnDelivered(ctx context.Context, orderID string) (*TransitionResult, error) {
	order, err := c.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderDelivered {
		return c.Transition(ctx, orderID, models.OrderDelivered)
	}

	res := &TransitionResult{}
	err = c.ledger.Update(ctx, func(tx *ledger.Tx) error {
		order, err := tx.Queries().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := c.onDelivered(ctx, tx, order, res); err != nil {
			return err
		}
		res.Order = order
		return tx.Queries().UpdateOrderState(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Payouts lists the payouts created for an order.
func (c *Controller) Payouts(ctx context.Context, orderID string) ([]*models.Payout, error) {
	return c.store.ListPayoutsByOrder(ctx, orderID)
}

// VendorPayouts lists every payout owed to a vendor.
func (c *Controller) VendorPayouts(ctx context.Context, vendorID string) ([]*models.Payout, error) {
	return c.store.ListPayoutsByVendor(ctx, vendorID)
}

// onDelivered creates one payout per vendor and the delivery loyalty award.
// Cash-on-delivery payments are collected here as well.
func (c *Controller) onDelivered(ctx context.Context, tx *ledger.Tx, order *models.Order, res *TransitionResult) error {
	q := tx.Queries()
	items := calcItems(order.Items)

	vendorPayouts, err := calculator.VendorPayouts(items, c.policy.CommissionPercent)
	if err != nil {
		return err
	}
	for _, vp := range vendorPayouts {
		p := &models.Payout{
			VendorID:          vp.VendorID,
			OrderID:           order.ID,
			Gross:             vp.Gross,
			CommissionPercent: c.policy.CommissionPercent,
			Commission:        vp.Commission,
			Net:               vp.Net,
			Status:            models.PayoutPending,
			CreatedAt:         tx.Now(),
		}
		created, err := q.CreatePayout(ctx, p)
		if err != nil {
			return err
		}
		if created {
			res.Payouts = append(res.Payouts, p)
		}
	}
	if n := len(res.Payouts); n > 0 {
		tx.AfterCommit(func() { metrics.Payouts.Add(float64(n)) })
	}

	points := calculator.LoyaltyPoints(calculator.NewItemsSubtotal(items), c.policy.DeliveryEarnDivisor)
	awarded, err := tx.AwardLoyalty(ctx, order.ID, order.BuyerID, models.LoyaltyDelivery, points)
	if err != nil {
		return err
	}
	if awarded {
		res.LoyaltyAwarded += points
	}

	if order.Payment.Method == models.MethodCOD && order.Payment.Status == models.PaymentPending {
		order.Payment.Status = models.PaymentCompleted
		order.Payment.Amount = order.Total
		points := calculator.LoyaltyPoints(order.Total, c.policy.PaymentEarnDivisor)
		awarded, err := tx.AwardLoyalty(ctx, order.ID, order.BuyerID, models.LoyaltyPayment, points)
		if err != nil {
			return err
		}
		if awarded {
			res.LoyaltyAwarded += points
		}
	}

	return nil
}

// fulfilment reports whether to is a step toward delivery.
func fulfilment(to models.OrderStatus) bool {
	switch to {
	case models.OrderConfirmed, models.OrderProcessing, models.OrderShipped, models.OrderDelivered:
		return true
	}
	return false
}

// paidOrCollectable reports whether goods may move: the payment has completed,
// or it is cash still to be collected on delivery.
func paidOrCollectable(p models.Payment) bool {
	return p.Status == models.PaymentCompleted ||
		(p.Method == models.MethodCOD && p.Status == models.PaymentPending)
}

func (c *Controller) checkReturnable(order *models.Order, now int64) error {
	deadline := order.DeliveredAt + int64(c.policy.ReturnWindow/time.Second)
	if now > deadline {
		return fmt.Errorf("%w: return window closed", ErrNotReturnable)
	}
	for _, item := range order.Items {
		if item.Condition == models.ConditionSecondHand {
			return fmt.Errorf("%w: second-hand item %s", ErrNotReturnable, item.ProductID)
		}
	}
	return nil
}

func (c *Controller) restoreStock(ctx context.Context, order *models.Order) {
	for _, item := range order.Items {
		if err := c.stock.Restore(ctx, item.ProductID, item.Quantity); err != nil {
			slog.Error("Failed to restore stock on cancellation",
				"order_id", order.ID,
				"product_id", item.ProductID,
				"error", err,
			)
		}
	}
}

func calcItems(items []models.LineItem) []calculator.Item {
	out := make([]calculator.Item, len(items))
	for i, item := range items {
		out[i] = calculator.Item{
			VendorID:   item.VendorID,
			Price:      item.Price,
			Quantity:   item.Quantity,
			SecondHand: item.Condition == models.ConditionSecondHand,
		}
	}
	return out
}
