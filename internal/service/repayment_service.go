package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/helperpoints/internal/models"
	"github.com/mmynk/helperpoints/internal/settlement"
)

// RepaymentService implements helperpoints.v1.RepaymentService. Every
// procedure requires the operator role when auth is enabled.
type RepaymentService struct {
	worker *settlement.Worker
}

// NewRepaymentService creates a new RepaymentService.
func NewRepaymentService(w *settlement.Worker) *RepaymentService {
	return &RepaymentService{worker: w}
}

// Handler returns the service's path prefix and HTTP handler.
func (s *RepaymentService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	m := newServiceMux(opts)
	unary(m, CreateRepaymentProcedure, s.CreateRepayment)
	unary(m, ProcessRepaymentNowProcedure, s.ProcessRepaymentNow)
	unary(m, RunSettlementSweepProcedure, s.RunSettlementSweep)
	return "/" + RepaymentServiceName + "/", m.mux
}

// CreateRepayment schedules a repayment for the settlement worker.
func (s *RepaymentService) CreateRepayment(ctx context.Context, req *connect.Request[CreateRepaymentRequest]) (*connect.Response[Repayment], error) {
	if err := requireOperator(ctx); err != nil {
		return nil, err
	}
	msg := req.Msg
	r := &models.Repayment{
		BorrowerID: msg.BorrowerID,
		HelperID:   msg.HelperID,
		ProductID:  msg.ProductID,
		Amount:     msg.Amount,
		DueDate:    msg.DueDate,
		Method:     msg.Method,
	}
	if err := s.worker.CreateRepayment(ctx, r); err != nil {
		return nil, toConnectError(err)
	}
	slog.Info("Repayment scheduled", "repayment_id", r.ID, "borrower_id", r.BorrowerID, "due_date", r.DueDate)
	return connect.NewResponse(toRepayment(r)), nil
}

// ProcessRepaymentNow settles one repayment regardless of its due date.
func (s *RepaymentService) ProcessRepaymentNow(ctx context.Context, req *connect.Request[ProcessRepaymentNowRequest]) (*connect.Response[Repayment], error) {
	if err := requireOperator(ctx); err != nil {
		return nil, err
	}
	if req.Msg.RepaymentID == "" {
		return nil, invalidArgument("repaymentId is required")
	}

	r, err := s.worker.ProcessRepaymentNow(ctx, req.Msg.RepaymentID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toRepayment(r)), nil
}

// RunSettlementSweep runs one sweep immediately.
func (s *RepaymentService) RunSettlementSweep(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[SweepReport], error) {
	if err := requireOperator(ctx); err != nil {
		return nil, err
	}

	report, err := s.worker.RunOnce(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SweepReport{
		Completed:  report.Completed,
		Failed:     report.Failed,
		Skipped:    report.Skipped,
		DurationMs: report.Duration.Milliseconds(),
	}), nil
}
