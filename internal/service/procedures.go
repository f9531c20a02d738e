package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// Service names.
const (
	PaymentServiceName   = "helperpoints.v1.PaymentService"
	LedgerServiceName    = "helperpoints.v1.LedgerService"
	RepaymentServiceName = "helperpoints.v1.RepaymentService"
	OrderServiceName     = "helperpoints.v1.OrderService"
)

// Procedure paths.
const (
	CreatePaymentAuthorizationProcedure = "/" + PaymentServiceName + "/CreatePaymentAuthorization"
	ConfirmPaymentProcedure             = "/" + PaymentServiceName + "/ConfirmPayment"

	TopUpWalletProcedure       = "/" + LedgerServiceName + "/TopUpWallet"
	GetAccountSummaryProcedure = "/" + LedgerServiceName + "/GetAccountSummary"
	ListTransactionsProcedure  = "/" + LedgerServiceName + "/ListTransactions"
	ListObligationsProcedure   = "/" + LedgerServiceName + "/ListObligations"

	CreateRepaymentProcedure     = "/" + RepaymentServiceName + "/CreateRepayment"
	ProcessRepaymentNowProcedure = "/" + RepaymentServiceName + "/ProcessRepaymentNow"
	RunSettlementSweepProcedure  = "/" + RepaymentServiceName + "/RunSettlementSweep"

	CreateOrderProcedure       = "/" + OrderServiceName + "/CreateOrder"
	GetOrderProcedure          = "/" + OrderServiceName + "/GetOrder"
	UpdateOrderStatusProcedure = "/" + OrderServiceName + "/UpdateOrderStatus"
	ListPayoutsProcedure       = "/" + OrderServiceName + "/ListPayouts"
)

// serviceMux collects the unary handlers of one service under its path prefix.
type serviceMux struct {
	mux  *http.ServeMux
	opts []connect.HandlerOption
}

func newServiceMux(opts []connect.HandlerOption) *serviceMux {
	return &serviceMux{
		mux:  http.NewServeMux(),
		opts: append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...),
	}
}

func unary[Req, Res any](m *serviceMux, procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error)) {
	m.mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, m.opts...))
}

// ClientOptions are the options a Connect client needs to talk to these services.
func ClientOptions() []connect.ClientOption {
	return []connect.ClientOption{connect.WithCodec(JSONCodec{})}
}
