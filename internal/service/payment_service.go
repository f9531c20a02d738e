package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/orders"
	"github.com/mmynk/helperpoints/internal/payment"
)

// PaymentService implements helperpoints.v1.PaymentService.
type PaymentService struct {
	dispatcher *payment.Dispatcher
	orders     *orders.Controller
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(d *payment.Dispatcher, ctrl *orders.Controller) *PaymentService {
	return &PaymentService{dispatcher: d, orders: ctrl}
}

// Handler returns the service's path prefix and HTTP handler.
func (s *PaymentService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	m := newServiceMux(opts)
	unary(m, CreatePaymentAuthorizationProcedure, s.CreatePaymentAuthorization)
	unary(m, ConfirmPaymentProcedure, s.ConfirmPayment)
	return "/" + PaymentServiceName + "/", m.mux
}

// authorizeBuyer checks that the caller may pay for orderID.
func (s *PaymentService) authorizeBuyer(ctx context.Context, orderID string) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return toConnectError(err)
	}
	return checkCaller(ctx, order.BuyerID)
}

// CreatePaymentAuthorization binds a payment attempt to an order.
func (s *PaymentService) CreatePaymentAuthorization(ctx context.Context, req *connect.Request[CreatePaymentAuthorizationRequest]) (*connect.Response[CreatePaymentAuthorizationResponse], error) {
	msg := req.Msg
	if msg.OrderRef == "" {
		return nil, invalidArgument("orderRef is required")
	}
	method, err := models.ParsePaymentMethod(msg.Method)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := s.authorizeBuyer(ctx, msg.OrderRef); err != nil {
		return nil, err
	}

	auth, err := s.dispatcher.CreateAuthorization(ctx, msg.OrderRef, method, msg.Amount)
	if err != nil {
		slog.Error("CreatePaymentAuthorization failed", "order_id", msg.OrderRef, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CreatePaymentAuthorizationResponse{
		AuthorizationRef: auth.ID,
		ExternalRef:      auth.ExternalRef,
	}), nil
}

// ConfirmPayment settles an authorization. Insufficient funds come back as
// failed_precondition with the shortfall in the ShortfallHeader trailer.
func (s *PaymentService) ConfirmPayment(ctx context.Context, req *connect.Request[ConfirmPaymentRequest]) (*connect.Response[ConfirmPaymentResponse], error) {
	msg := req.Msg
	if msg.AuthorizationRef == "" || msg.OrderRef == "" {
		return nil, invalidArgument("authorizationRef and orderRef are required")
	}
	if err := s.authorizeBuyer(ctx, msg.OrderRef); err != nil {
		return nil, err
	}

	res, err := s.dispatcher.Confirm(ctx, msg.AuthorizationRef, msg.OrderRef)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&ConfirmPaymentResponse{
		OrderStatus:    string(res.OrderStatus),
		PaymentStatus:  string(res.PaymentStatus),
		BorrowedPoints: borrowed(res.Allocation),
		LoyaltyAwarded: res.LoyaltyAwarded,
	}), nil
}
