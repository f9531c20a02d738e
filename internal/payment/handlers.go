package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/models"
)

// Settlement is one confirmation being applied inside a ledger transaction.
// Handlers set Order.Payment.Status and, when points were borrowed, Allocation.
type Settlement struct {
	Tx    *ledger.Tx
	Order *models.Order
	Auth  *models.PaymentAuthorization

	// External is the status resolved by Check before the transaction began.
	External models.PaymentStatus

	Allocation *ledger.Allocation
}

// Handler implements one payment method.
type Handler interface {
	// Authorize prepares a payment for order and returns an external
	// reference, empty for methods that settle internally.
	Authorize(ctx context.Context, order *models.Order, amount int64) (string, error)

	// Check resolves the external state of an authorization. It runs
	// outside the ledger lock.
	Check(ctx context.Context, auth *models.PaymentAuthorization) (models.PaymentStatus, error)

	// Settle applies the payment inside the ledger transaction. Returning an
	// error rolls back every write.
	Settle(ctx context.Context, s *Settlement) error
}

// newHandler builds the handler for one member of the closed method set.
func newHandler(m models.PaymentMethod, gw Gateway, timeout time.Duration) Handler {
	switch m {
	case models.MethodCard, models.MethodUPI:
		return &gatewayHandler{method: m, gateway: gw, timeout: timeout}
	case models.MethodCOD:
		return codHandler{}
	case models.MethodWallet:
		return walletHandler{}
	case models.MethodHelperPoints:
		return pointsHandler{}
	}
	return nil
}

// gatewayHandler serves card and UPI payments.
type gatewayHandler struct {
	method  models.PaymentMethod
	gateway Gateway
	timeout time.Duration
}

func (h *gatewayHandler) Authorize(ctx context.Context, order *models.Order, amount int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	ref, err := h.gateway.Authorize(ctx, order.ID, h.method, amount)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return ref, nil
}

func (h *gatewayHandler) Check(ctx context.Context, auth *models.PaymentAuthorization) (models.PaymentStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	st, err := h.gateway.Status(ctx, auth.ExternalRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	switch st {
	case GatewaySucceeded:
		return models.PaymentCompleted, nil
	case GatewayFailed:
		return models.PaymentFailed, nil
	default:
		return models.PaymentPending, nil
	}
}

func (h *gatewayHandler) Settle(ctx context.Context, s *Settlement) error {
	s.Order.Payment.Status = s.External
	return nil
}

// codHandler leaves the payment pending until delivery.
type codHandler struct{}

func (codHandler) Authorize(ctx context.Context, order *models.Order, amount int64) (string, error) {
	return "", nil
}

func (codHandler) Check(ctx context.Context, auth *models.PaymentAuthorization) (models.PaymentStatus, error) {
	return models.PaymentPending, nil
}

func (codHandler) Settle(ctx context.Context, s *Settlement) error {
	s.Order.Payment.Status = models.PaymentPending
	return nil
}

// walletHandler pays from the buyer's balance and borrows the rest.
type walletHandler struct{}

func (walletHandler) Authorize(ctx context.Context, order *models.Order, amount int64) (string, error) {
	return "", nil
}

func (walletHandler) Check(ctx context.Context, auth *models.PaymentAuthorization) (models.PaymentStatus, error) {
	return models.PaymentCompleted, nil
}

func (walletHandler) Settle(ctx context.Context, s *Settlement) error {
	order := s.Order
	total := order.Total
	if total == 0 {
		order.Payment.Status = models.PaymentCompleted
		return nil
	}

	acct, err := s.Tx.Account(ctx, order.BuyerID)
	if err != nil {
		return err
	}

	if acct.Balance >= total {
		if _, err := s.Tx.Debit(ctx, ledger.Entry{
			UserID:  order.BuyerID,
			Kind:    models.TransactionPurchase,
			Amount:  total,
			OrderID: order.ID,
			Note:    "order payment",
		}); err != nil {
			return err
		}
		order.Payment.Status = models.PaymentCompleted
		return nil
	}

	shortfall := total - acct.Balance
	alloc, err := s.Tx.Allocate(ctx, order.BuyerID, shortfall, order.ID)
	if err != nil {
		return err
	}
	if !alloc.Committed {
		return &ledger.InsufficientFundsError{UserID: order.BuyerID, Needed: total, Shortfall: alloc.Remaining}
	}
	s.Allocation = alloc

	if acct.Balance > 0 {
		if _, err := s.Tx.Debit(ctx, ledger.Entry{
			UserID:  order.BuyerID,
			Kind:    models.TransactionPurchase,
			Amount:  acct.Balance,
			OrderID: order.ID,
			Note:    "order payment",
		}); err != nil {
			return err
		}
	}
	order.Payment.Status = models.PaymentCompleted
	return nil
}

// pointsHandler covers the whole order from the helper pool.
type pointsHandler struct{}

func (pointsHandler) Authorize(ctx context.Context, order *models.Order, amount int64) (string, error) {
	return "", nil
}

func (pointsHandler) Check(ctx context.Context, auth *models.PaymentAuthorization) (models.PaymentStatus, error) {
	return models.PaymentCompleted, nil
}

func (pointsHandler) Settle(ctx context.Context, s *Settlement) error {
	order := s.Order
	if order.Total == 0 {
		order.Payment.Status = models.PaymentCompleted
		return nil
	}

	alloc, err := s.Tx.Allocate(ctx, order.BuyerID, order.Total, order.ID)
	if err != nil {
		return err
	}
	if !alloc.Committed {
		return &ledger.InsufficientFundsError{UserID: order.BuyerID, Needed: order.Total, Shortfall: alloc.Remaining}
	}
	s.Allocation = alloc
	order.Payment.Status = models.PaymentCompleted
	return nil
}
