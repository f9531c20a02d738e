package service

import (
	"context"
	"errors"
	"strconv"

	"connectrpc.com/connect"

	"github.com/mmynk/helperpoints/internal/catalog"
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/middleware"
	"github.com/mmynk/helperpoints/internal/orders"
	"github.com/mmynk/helperpoints/internal/payment"
	"github.com/mmynk/helperpoints/internal/settlement"
	"github.com/mmynk/helperpoints/internal/storage"
)

var (
	errPermissionDenied = errors.New("caller may not act for this user")
	errOperatorOnly     = errors.New("operator role required")
)

// ShortfallHeader carries the uncovered amount on insufficient-funds errors.
const ShortfallHeader = "Helperpoints-Shortfall"

// toConnectError maps domain errors onto Connect codes.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var insufficient *ledger.InsufficientFundsError
	if errors.As(err, &insufficient) {
		ce := connect.NewError(connect.CodeFailedPrecondition, err)
		ce.Meta().Set(ShortfallHeader, strconv.FormatInt(insufficient.Shortfall, 10))
		return ce
	}

	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, orders.ErrInvalidOrder),
		errors.Is(err, payment.ErrUnknownMethod),
		errors.Is(err, payment.ErrAuthorizationMismatch),
		errors.Is(err, settlement.ErrInvalidRepayment):
		return connect.NewError(connect.CodeInvalidArgument, err)

	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrObligationNotFound),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, payment.ErrAuthorizationNotFound),
		errors.Is(err, settlement.ErrRepaymentNotFound),
		errors.Is(err, catalog.ErrUnknownProduct),
		errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)

	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrNotReturnable),
		errors.Is(err, orders.ErrPaymentRequired),
		errors.Is(err, payment.ErrExternalAuthorizationFailed),
		errors.Is(err, settlement.ErrRepaymentNotPending),
		errors.Is(err, catalog.ErrOutOfStock):
		return connect.NewError(connect.CodeFailedPrecondition, err)

	case errors.Is(err, payment.ErrGatewayUnavailable),
		errors.Is(err, settlement.ErrSweepInProgress):
		return connect.NewError(connect.CodeUnavailable, err)

	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// checkCaller allows the request when auth is disabled, when the caller is
// userID, or when the caller is an operator.
func checkCaller(ctx context.Context, userID string) error {
	claims := middleware.GetClaims(ctx)
	if claims == nil || claims.Operator() || claims.UserID == userID {
		return nil
	}
	return connect.NewError(connect.CodePermissionDenied, errPermissionDenied)
}

// requireOperator guards administrative procedures.
func requireOperator(ctx context.Context) error {
	claims := middleware.GetClaims(ctx)
	if claims == nil || claims.Operator() {
		return nil
	}
	return connect.NewError(connect.CodePermissionDenied, errOperatorOnly)
}

func invalidArgument(msg string) *connect.Error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}
