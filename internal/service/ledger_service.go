package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/helperpoints/internal/ledger"
)

// LedgerService implements helperpoints.v1.LedgerService.
type LedgerService struct {
	ledger *ledger.Ledger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(l *ledger.Ledger) *LedgerService {
	return &LedgerService{ledger: l}
}

// Handler returns the service's path prefix and HTTP handler.
func (s *LedgerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	m := newServiceMux(opts)
	unary(m, TopUpWalletProcedure, s.TopUpWallet)
	unary(m, GetAccountSummaryProcedure, s.GetAccountSummary)
	unary(m, ListTransactionsProcedure, s.ListTransactions)
	unary(m, ListObligationsProcedure, s.ListObligations)
	return "/" + LedgerServiceName + "/", m.mux
}

// TopUpWallet credits a wallet and sweeps the user's obligations, oldest first.
func (s *LedgerService) TopUpWallet(ctx context.Context, req *connect.Request[TopUpWalletRequest]) (*connect.Response[TopUpWalletResponse], error) {
	msg := req.Msg
	if msg.UserID == "" {
		return nil, invalidArgument("userId is required")
	}
	if err := checkCaller(ctx, msg.UserID); err != nil {
		return nil, err
	}

	res, err := s.ledger.TopUp(ctx, msg.UserID, msg.Amount)
	if err != nil {
		slog.Error("TopUpWallet failed", "user_id", msg.UserID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&TopUpWalletResponse{
		NewBalance:       res.NewBalance,
		AmountReimbursed: res.Reimbursed,
	}), nil
}

// GetAccountSummary returns balance, loyalty points and outstanding debts.
func (s *LedgerService) GetAccountSummary(ctx context.Context, req *connect.Request[GetAccountSummaryRequest]) (*connect.Response[AccountSummary], error) {
	if req.Msg.UserID == "" {
		return nil, invalidArgument("userId is required")
	}
	if err := checkCaller(ctx, req.Msg.UserID); err != nil {
		return nil, err
	}

	summary, err := s.ledger.Summary(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toSummary(summary)), nil
}

// ListTransactions returns the newest entries of a user's log.
func (s *LedgerService) ListTransactions(ctx context.Context, req *connect.Request[ListTransactionsRequest]) (*connect.Response[ListTransactionsResponse], error) {
	if req.Msg.UserID == "" {
		return nil, invalidArgument("userId is required")
	}
	if err := checkCaller(ctx, req.Msg.UserID); err != nil {
		return nil, err
	}

	txs, err := s.ledger.Transactions(ctx, req.Msg.UserID, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListTransactionsResponse{Transactions: toTransactions(txs)}), nil
}

// ListObligations returns every obligation the user holds as borrower.
func (s *LedgerService) ListObligations(ctx context.Context, req *connect.Request[ListObligationsRequest]) (*connect.Response[ListObligationsResponse], error) {
	if req.Msg.UserID == "" {
		return nil, invalidArgument("userId is required")
	}
	if err := checkCaller(ctx, req.Msg.UserID); err != nil {
		return nil, err
	}

	obs, err := s.ledger.Obligations(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListObligationsResponse{Obligations: toObligations(obs)}), nil
}
