package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/helperpoints/internal/auth"
	"github.com/mmynk/helperpoints/internal/catalog"
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/middleware"
	"github.com/mmynk/helperpoints/internal/orders"
	"github.com/mmynk/helperpoints/internal/payment"
	"github.com/mmynk/helperpoints/internal/settlement"
	"github.com/mmynk/helperpoints/internal/storage/sqlstore"
)

type testServer struct {
	url    string
	ledger *ledger.Ledger
	jwt    *auth.JWTManager
}

// setupTestServer serves every service over httptest. With withAuth the
// bearer-token interceptor is installed.
func setupTestServer(t *testing.T, withAuth bool) *testServer {
	t.Helper()

	store, err := sqlstore.NewSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)

	l := ledger.New(store)
	stock := catalog.NewMemory(map[string]int64{"widget": 100, "gadget": 100})
	ctrl := orders.NewController(store, l, stock, orders.DefaultPolicy())
	dispatcher := payment.NewDispatcher(store, l, payment.NewFakeGateway(), payment.DefaultConfig())
	worker := settlement.NewWorker(store, l, time.Hour)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	interceptors := []connect.Interceptor{middleware.LoggingInterceptor()}
	if withAuth {
		interceptors = append(interceptors, middleware.RequireAuth(jwtManager))
	}
	opt := connect.WithInterceptors(interceptors...)

	mux := http.NewServeMux()
	mux.Handle(NewPaymentService(dispatcher, ctrl).Handler(opt))
	mux.Handle(NewLedgerService(l).Handler(opt))
	mux.Handle(NewRepaymentService(worker).Handler(opt))
	mux.Handle(NewOrderService(ctrl).Handler(opt))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return &testServer{url: server.URL, ledger: l, jwt: jwtManager}
}

func call[Req, Res any](t *testing.T, ts *testServer, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](http.DefaultClient, ts.url+procedure, ClientOptions()...)
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (ts *testServer) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := call[TopUpWalletRequest, TopUpWalletResponse](t, ts, TopUpWalletProcedure, "",
		&TopUpWalletRequest{UserID: userID, Amount: amount})
	require.NoError(t, err)
}

func (ts *testServer) createOrder(t *testing.T, buyer, method string, price int64) *Order {
	t.Helper()
	o, err := call[CreateOrderRequest, Order](t, ts, CreateOrderProcedure, "", &CreateOrderRequest{
		BuyerID:       buyer,
		PaymentMethod: method,
		Items:         []LineItem{{ProductID: "widget", VendorID: "v1", Price: price, Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

func TestPaymentFlow_HelperPoints(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.fund(t, "helper1", 300)
	ts.fund(t, "helper2", 400)
	order := ts.createOrder(t, "borrower", "helperpoints", 500)

	authz, err := call[CreatePaymentAuthorizationRequest, CreatePaymentAuthorizationResponse](t, ts,
		CreatePaymentAuthorizationProcedure, "",
		&CreatePaymentAuthorizationRequest{OrderRef: order.ID, Method: "helperpoints", Amount: 500})
	require.NoError(t, err)
	require.NotEmpty(t, authz.AuthorizationRef)

	res, err := call[ConfirmPaymentRequest, ConfirmPaymentResponse](t, ts, ConfirmPaymentProcedure, "",
		&ConfirmPaymentRequest{AuthorizationRef: authz.AuthorizationRef, OrderRef: order.ID})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", res.OrderStatus)
	assert.Equal(t, "completed", res.PaymentStatus)
	assert.Equal(t, int64(500), res.BorrowedPoints)

	summary, err := call[GetAccountSummaryRequest, AccountSummary](t, ts, GetAccountSummaryProcedure, "",
		&GetAccountSummaryRequest{UserID: "borrower"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), summary.TotalOutstandingAsBorrower)
	assert.Equal(t, int64(5), summary.LoyaltyPoints)

	obs, err := call[ListObligationsRequest, ListObligationsResponse](t, ts, ListObligationsProcedure, "",
		&ListObligationsRequest{UserID: "borrower"})
	require.NoError(t, err)
	assert.Len(t, obs.Obligations, 2)

	// Topping up 1000 repays both helpers and leaves 500.
	topUp, err := call[TopUpWalletRequest, TopUpWalletResponse](t, ts, TopUpWalletProcedure, "",
		&TopUpWalletRequest{UserID: "borrower", Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(500), topUp.AmountReimbursed)
	assert.Equal(t, int64(500), topUp.NewBalance)

	txs, err := call[ListTransactionsRequest, ListTransactionsResponse](t, ts, ListTransactionsProcedure, "",
		&ListTransactionsRequest{UserID: "borrower", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, txs.Transactions, 2)
}

func TestConfirmPayment_InsufficientFunds(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.fund(t, "helper1", 250)
	ts.fund(t, "helper2", 200)
	order := ts.createOrder(t, "borrower", "helperpoints", 500)

	authz, err := call[CreatePaymentAuthorizationRequest, CreatePaymentAuthorizationResponse](t, ts,
		CreatePaymentAuthorizationProcedure, "",
		&CreatePaymentAuthorizationRequest{OrderRef: order.ID, Method: "helperpoints", Amount: 500})
	require.NoError(t, err)

	_, err = call[ConfirmPaymentRequest, ConfirmPaymentResponse](t, ts, ConfirmPaymentProcedure, "",
		&ConfirmPaymentRequest{AuthorizationRef: authz.AuthorizationRef, OrderRef: order.ID})
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	var connectErr *connect.Error
	require.True(t, errors.As(err, &connectErr))
	assert.Equal(t, "50", connectErr.Meta().Get(ShortfallHeader))
}

func TestCreatePaymentAuthorization_Validation(t *testing.T) {
	ts := setupTestServer(t, false)
	order := ts.createOrder(t, "buyer", "card", 100)

	tests := []struct {
		name string
		req  CreatePaymentAuthorizationRequest
		code connect.Code
	}{
		{"unknown method", CreatePaymentAuthorizationRequest{OrderRef: order.ID, Method: "cheque", Amount: 100}, connect.CodeInvalidArgument},
		{"amount mismatch", CreatePaymentAuthorizationRequest{OrderRef: order.ID, Method: "card", Amount: 99}, connect.CodeInvalidArgument},
		{"missing order", CreatePaymentAuthorizationRequest{OrderRef: "nope", Method: "card", Amount: 100}, connect.CodeNotFound},
		{"empty order", CreatePaymentAuthorizationRequest{Method: "card", Amount: 100}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[CreatePaymentAuthorizationRequest, CreatePaymentAuthorizationResponse](t, ts,
				CreatePaymentAuthorizationProcedure, "", &tt.req)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestOrderService_DeliveryAndPayouts(t *testing.T) {
	ts := setupTestServer(t, false)
	order, err := call[CreateOrderRequest, Order](t, ts, CreateOrderProcedure, "", &CreateOrderRequest{
		BuyerID:       "buyer",
		PaymentMethod: "cod",
		Items: []LineItem{
			{ProductID: "widget", VendorID: "vendor-a", Price: 300, Quantity: 2},
			{ProductID: "gadget", VendorID: "vendor-b", Price: 400, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), order.Total)

	_, err = call[UpdateOrderStatusRequest, UpdateOrderStatusResponse](t, ts, UpdateOrderStatusProcedure, "",
		&UpdateOrderStatusRequest{OrderRef: order.ID, Status: "delivered"})
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	for _, st := range []string{"confirmed", "processing", "shipped"} {
		_, err := call[UpdateOrderStatusRequest, UpdateOrderStatusResponse](t, ts, UpdateOrderStatusProcedure, "",
			&UpdateOrderStatusRequest{OrderRef: order.ID, Status: st})
		require.NoError(t, err, st)
	}

	res, err := call[UpdateOrderStatusRequest, UpdateOrderStatusResponse](t, ts, UpdateOrderStatusProcedure, "",
		&UpdateOrderStatusRequest{OrderRef: order.ID, Status: "delivered"})
	require.NoError(t, err)
	assert.Equal(t, "delivered", res.Order.Status)
	assert.Equal(t, "completed", res.Order.PaymentStatus)
	assert.Len(t, res.Payouts, 2)

	payouts, err := call[ListPayoutsRequest, ListPayoutsResponse](t, ts, ListPayoutsProcedure, "",
		&ListPayoutsRequest{VendorID: "vendor-a"})
	require.NoError(t, err)
	require.Len(t, payouts.Payouts, 1)
	assert.Equal(t, int64(570), payouts.Payouts[0].Net)
	assert.Equal(t, "PENDING", payouts.Payouts[0].Status)

	_, err = call[UpdateOrderStatusRequest, UpdateOrderStatusResponse](t, ts, UpdateOrderStatusProcedure, "",
		&UpdateOrderStatusRequest{OrderRef: order.ID, Status: "teleported"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestRepaymentService(t *testing.T) {
	ts := setupTestServer(t, false)
	ts.fund(t, "alice", 100)

	r, err := call[CreateRepaymentRequest, Repayment](t, ts, CreateRepaymentProcedure, "", &CreateRepaymentRequest{
		BorrowerID: "alice",
		HelperID:   "bob",
		Amount:     60,
		DueDate:    time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", r.Status)

	report, err := call[emptypb.Empty, SweepReport](t, ts, RunSettlementSweepProcedure, "", &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	_, err = call[ProcessRepaymentNowRequest, Repayment](t, ts, ProcessRepaymentNowProcedure, "",
		&ProcessRepaymentNowRequest{RepaymentID: r.ID})
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = call[ProcessRepaymentNowRequest, Repayment](t, ts, ProcessRepaymentNowProcedure, "",
		&ProcessRepaymentNowRequest{RepaymentID: "missing"})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = call[CreateRepaymentRequest, Repayment](t, ts, CreateRepaymentProcedure, "",
		&CreateRepaymentRequest{BorrowerID: "alice", HelperID: "alice", Amount: 1})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAuth(t *testing.T) {
	ts := setupTestServer(t, true)
	alice, err := ts.jwt.Issue("alice", auth.RoleUser)
	require.NoError(t, err)
	operator, err := ts.jwt.Issue("ops", auth.RoleOperator)
	require.NoError(t, err)

	summary := func(token, user string) error {
		_, err := call[GetAccountSummaryRequest, AccountSummary](t, ts, GetAccountSummaryProcedure, token,
			&GetAccountSummaryRequest{UserID: user})
		return err
	}

	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(summary("", "alice")))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(summary("garbage", "alice")))
	assert.NoError(t, summary(alice, "alice"))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(summary(alice, "bob")))
	assert.NoError(t, summary(operator, "bob"))

	_, err = call[emptypb.Empty, SweepReport](t, ts, RunSettlementSweepProcedure, alice, &emptypb.Empty{})
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	_, err = call[emptypb.Empty, SweepReport](t, ts, RunSettlementSweepProcedure, operator, &emptypb.Empty{})
	assert.NoError(t, err)
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		err  error
		code connect.Code
	}{
		{ledger.ErrInvalidAmount, connect.CodeInvalidArgument},
		{orders.ErrOrderNotFound, connect.CodeNotFound},
		{orders.ErrNotReturnable, connect.CodeFailedPrecondition},
		{orders.ErrPaymentRequired, connect.CodeFailedPrecondition},
		{payment.ErrGatewayUnavailable, connect.CodeUnavailable},
		{settlement.ErrRepaymentNotPending, connect.CodeFailedPrecondition},
		{context.DeadlineExceeded, connect.CodeDeadlineExceeded},
		{errors.New("disk on fire"), connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, toConnectError(tt.err).Code())
		})
	}
}
