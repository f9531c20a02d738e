// Package metrics holds the Prometheus instruments for the ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Allocations counts allocator calls by outcome (covered, short, none).
	Allocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helperpoints",
		Name:      "allocations_total",
		Help:      "Shortfall allocations by outcome.",
	}, []string{"outcome"})

	// AllocatedPoints sums points moved from helpers into obligations.
	AllocatedPoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helperpoints",
		Name:      "allocated_points_total",
		Help:      "Points moved from helper accounts to cover shortfalls.",
	})

	// ReimbursedPoints sums points paid back to helpers.
	ReimbursedPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helperpoints",
		Name:      "reimbursed_points_total",
		Help:      "Points paid back to helpers, by source (topup, repayment).",
	}, []string{"source"})

	// PaymentConfirmations counts confirmations by method and resulting payment status.
	PaymentConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helperpoints",
		Name:      "payment_confirmations_total",
		Help:      "Payment confirmations by method and result.",
	}, []string{"method", "result"})

	// Repayments counts settlement outcomes.
	Repayments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "helperpoints",
		Name:      "repayments_total",
		Help:      "Repayments processed, by resulting status.",
	}, []string{"status"})

	// SweepDuration observes settlement worker runs.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "helperpoints",
		Name:      "settlement_sweep_duration_seconds",
		Help:      "Duration of settlement worker runs.",
		Buckets:   prometheus.DefBuckets,
	})

	// SweepsSkipped counts ticks dropped because the previous run was still active.
	SweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helperpoints",
		Name:      "settlement_sweeps_skipped_total",
		Help:      "Settlement ticks skipped because a run was in progress.",
	})

	// Payouts counts payouts created on delivery.
	Payouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "helperpoints",
		Name:      "payouts_created_total",
		Help:      "Vendor payouts created on order delivery.",
	})

	// RPCDuration observes Connect procedure latency.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "helperpoints",
		Name:      "rpc_duration_seconds",
		Help:      "Connect RPC latency by procedure and code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure", "code"})
)
