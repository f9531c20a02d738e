// Package payment resolves order payments. Each method in the closed set has
// a Handler; wallet and helperpoints draw on the ledger and the shortfall
// allocator, card and UPI go through an external Gateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/helperpoints/internal/calculator"
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/metrics"
	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/orders"
	"github.com/mmynk/helperpoints/internal/storage"
)

// Common errors
var (
	ErrExternalAuthorizationFailed = errors.New("external payment authorization failed")
	ErrUnknownMethod               = errors.New("unknown payment method")
	ErrAuthorizationMismatch       = errors.New("authorization does not match order")
	ErrAuthorizationNotFound       = errors.New("authorization not found")
	ErrGatewayUnavailable          = errors.New("payment gateway unavailable")
)

// Config holds the dispatcher's tunables.
type Config struct {
	// PaymentEarnDivisor awards one loyalty point per this many units paid.
	PaymentEarnDivisor int64

	// GatewayTimeout bounds every call to the external gateway.
	GatewayTimeout time.Duration
}

// DefaultConfig returns the standard dispatcher settings.
func DefaultConfig() Config {
	return Config{
		PaymentEarnDivisor: 100,
		GatewayTimeout:     10 * time.Second,
	}
}

// Dispatcher routes authorizations and confirmations to the method handlers.
type Dispatcher struct {
	store    storage.Store
	ledger   *ledger.Ledger
	handlers map[models.PaymentMethod]Handler
	cfg      Config
}

// NewDispatcher creates a Dispatcher with one handler per supported method.
func NewDispatcher(store storage.Store, l *ledger.Ledger, gw Gateway, cfg Config) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		ledger:   l,
		handlers: make(map[models.PaymentMethod]Handler, len(models.PaymentMethods)),
		cfg:      cfg,
	}
	for _, m := range models.PaymentMethods {
		d.handlers[m] = newHandler(m, gw, cfg.GatewayTimeout)
	}
	return d
}

// Handler returns the handler for method.
func (d *Dispatcher) Handler(method models.PaymentMethod) (Handler, error) {
	h, ok := d.handlers[method]
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return h, nil
}

// CreateAuthorization binds a payment attempt of amount by method to an
// order. The amount must equal the order total. The method may differ from
// the one the order was placed with, which lets a buyer switch after a
// rejected confirmation.
func (d *Dispatcher) CreateAuthorization(ctx context.Context, orderID string, method models.PaymentMethod, amount int64) (*models.PaymentAuthorization, error) {
	h, err := d.Handler(method)
	if err != nil {
		return nil, err
	}

	order, err := d.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	if amount != order.Total {
		return nil, fmt.Errorf("%w: amount %d, order total %d", ErrAuthorizationMismatch, amount, order.Total)
	}

	ref, err := h.Authorize(ctx, order, amount)
	if err != nil {
		return nil, err
	}

	auth := &models.PaymentAuthorization{
		OrderID:     order.ID,
		Method:      method,
		Amount:      amount,
		ExternalRef: ref,
		CreatedAt:   d.ledger.Now().Unix(),
	}
	err = d.store.InTx(ctx, func(q storage.Queries) error {
		return q.CreateAuthorization(ctx, auth)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Payment authorization created",
		"authorization_id", auth.ID,
		"order_id", order.ID,
		"method", method,
		"amount", amount,
	)
	return auth, nil
}

// Result is the state of an order after a confirmation.
type Result struct {
	OrderStatus   models.OrderStatus
	PaymentStatus models.PaymentStatus

	// Allocation is set when helper points were borrowed to pay.
	Allocation *ledger.Allocation

	LoyaltyAwarded int64
}

// Confirm settles the payment behind authRef for orderID.
//
// All ledger writes of one confirmation commit together. A rejected wallet or
// helperpoints payment writes nothing and returns an
// *ledger.InsufficientFundsError. A gateway decline is recorded on the order
// and returned as ErrExternalAuthorizationFailed. Confirming an order that is
// already paid returns its current state.
func (d *Dispatcher) Confirm(ctx context.Context, authRef, orderID string) (*Result, error) {
	auth, err := d.store.GetAuthorization(ctx, authRef)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationNotFound, authRef)
	}
	if err != nil {
		return nil, err
	}
	if auth.OrderID != orderID {
		return nil, fmt.Errorf("%w: authorization %s belongs to order %s", ErrAuthorizationMismatch, authRef, auth.OrderID)
	}

	h, err := d.Handler(auth.Method)
	if err != nil {
		return nil, err
	}

	order, err := d.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	if order.Payment.Status == models.PaymentCompleted {
		return &Result{OrderStatus: order.Status, PaymentStatus: order.Payment.Status}, nil
	}

	external, err := h.Check(ctx, auth)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = d.ledger.Update(ctx, func(tx *ledger.Tx) error {
		order, err := tx.Queries().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		// Another confirmation may have won while the gateway was checked.
		if order.Payment.Status == models.PaymentCompleted {
			res.OrderStatus, res.PaymentStatus = order.Status, order.Payment.Status
			return nil
		}
		if order.Status == models.OrderCancelled {
			return fmt.Errorf("%w: order %s is cancelled", orders.ErrInvalidTransition, orderID)
		}
		if auth.Amount != order.Total {
			return fmt.Errorf("%w: authorized %d, order total %d", ErrAuthorizationMismatch, auth.Amount, order.Total)
		}

		order.Payment.Method = auth.Method
		s := &Settlement{Tx: tx, Order: order, Auth: auth, External: external}
		if err := h.Settle(ctx, s); err != nil {
			return err
		}
		res.Allocation = s.Allocation

		if order.Payment.Status == models.PaymentCompleted {
			order.Payment.TransactionID = auth.ID
			order.Payment.Amount = order.Total
			if order.Status == models.OrderPending {
				order.Status = models.OrderConfirmed
			}

			points := calculator.LoyaltyPoints(order.Total, d.cfg.PaymentEarnDivisor)
			awarded, err := tx.AwardLoyalty(ctx, order.ID, order.BuyerID, models.LoyaltyPayment, points)
			if err != nil {
				return err
			}
			if awarded {
				res.LoyaltyAwarded = points
			}
		}

		order.UpdatedAt = tx.Now()
		if err := tx.Queries().UpdateOrderState(ctx, order); err != nil {
			return err
		}
		res.OrderStatus, res.PaymentStatus = order.Status, order.Payment.Status
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			result = "insufficient_funds"
		}
		metrics.PaymentConfirmations.WithLabelValues(string(auth.Method), result).Inc()
		slog.Warn("Payment confirmation rejected",
			"order_id", orderID,
			"authorization_id", authRef,
			"method", auth.Method,
			"error", err,
		)
		return nil, err
	}

	metrics.PaymentConfirmations.WithLabelValues(string(auth.Method), string(res.PaymentStatus)).Inc()
	slog.Info("Payment confirmed",
		"order_id", orderID,
		"method", auth.Method,
		"payment_status", res.PaymentStatus,
		"order_status", res.OrderStatus,
	)

	if res.PaymentStatus == models.PaymentFailed {
		return res, fmt.Errorf("%w: order %s", ErrExternalAuthorizationFailed, orderID)
	}
	return res, nil
}
