package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/orders"
)

// OrderService implements helperpoints.v1.OrderService.
type OrderService struct {
	orders *orders.Controller
}

// NewOrderService creates a new OrderService.
func NewOrderService(ctrl *orders.Controller) *OrderService {
	return &OrderService{orders: ctrl}
}

// Handler returns the service's path prefix and HTTP handler.
func (s *OrderService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	m := newServiceMux(opts)
	unary(m, CreateOrderProcedure, s.CreateOrder)
	unary(m, GetOrderProcedure, s.GetOrder)
	unary(m, UpdateOrderStatusProcedure, s.UpdateOrderStatus)
	unary(m, ListPayoutsProcedure, s.ListPayouts)
	return "/" + OrderServiceName + "/", m.mux
}

// CreateOrder places an order and reserves its stock.
func (s *OrderService) CreateOrder(ctx context.Context, req *connect.Request[CreateOrderRequest]) (*connect.Response[Order], error) {
	if err := checkCaller(ctx, req.Msg.BuyerID); err != nil {
		return nil, err
	}

	order, err := s.orders.Create(ctx, fromCreateOrder(req.Msg))
	if err != nil {
		slog.Error("CreateOrder failed", "buyer_id", req.Msg.BuyerID, "error", err)
		return nil, toConnectError(err)
	}
	out := toOrder(order)
	return connect.NewResponse(&out), nil
}

// GetOrder retrieves an order.
func (s *OrderService) GetOrder(ctx context.Context, req *connect.Request[GetOrderRequest]) (*connect.Response[Order], error) {
	order, err := s.orders.Get(ctx, req.Msg.OrderRef)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := checkCaller(ctx, order.BuyerID); err != nil {
		return nil, err
	}
	out := toOrder(order)
	return connect.NewResponse(&out), nil
}

// UpdateOrderStatus moves an order through its lifecycle. Buyers may cancel
// or request a return; every other move needs the operator role.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *connect.Request[UpdateOrderStatusRequest]) (*connect.Response[UpdateOrderStatusResponse], error) {
	to, ok := orders.ParseStatus(req.Msg.Status)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown order status %q", req.Msg.Status))
	}

	order, err := s.orders.Get(ctx, req.Msg.OrderRef)
	if err != nil {
		return nil, toConnectError(err)
	}
	switch to {
	case models.OrderCancelled, models.OrderReturnRequested:
		err = checkCaller(ctx, order.BuyerID)
	default:
		err = requireOperator(ctx)
	}
	if err != nil {
		return nil, err
	}

	var res *orders.TransitionResult
	switch to {
	case models.OrderDelivered:
		res, err = s.orders.OnDelivered(ctx, order.ID)
	case models.OrderCancelled:
		res, err = s.orders.Cancel(ctx, order.ID)
	case models.OrderReturnRequested:
		res, err = s.orders.RequestReturn(ctx, order.ID)
	default:
		res, err = s.orders.Transition(ctx, order.ID, to)
	}
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&UpdateOrderStatusResponse{
		Order:          toOrder(res.Order),
		Payouts:        toPayouts(res.Payouts),
		LoyaltyAwarded: res.LoyaltyAwarded,
	}), nil
}

// ListPayouts lists payouts by order or by vendor.
func (s *OrderService) ListPayouts(ctx context.Context, req *connect.Request[ListPayoutsRequest]) (*connect.Response[ListPayoutsResponse], error) {
	if err := requireOperator(ctx); err != nil {
		return nil, err
	}

	var payouts []*models.Payout
	var err error
	switch {
	case req.Msg.OrderRef != "":
		payouts, err = s.orders.Payouts(ctx, req.Msg.OrderRef)
	case req.Msg.VendorID != "":
		payouts, err = s.orders.VendorPayouts(ctx, req.Msg.VendorID)
	default:
		return nil, invalidArgument("orderRef or vendorId is required")
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListPayoutsResponse{Payouts: toPayouts(payouts)}), nil
}
