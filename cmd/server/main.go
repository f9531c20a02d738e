package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/helperpoints/internal/auth"
	"github.com/mmynk/helperpoints/internal/catalog"
	"github.com/mmynk/helperpoints/internal/config"
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/middleware"
	"github.com/mmynk/helperpoints/internal/orders"
	"github.com/mmynk/helperpoints/internal/payment"
	"github.com/mmynk/helperpoints/internal/service"
	"github.com/mmynk/helperpoints/internal/settlement"
	"github.com/mmynk/helperpoints/internal/storage/sqlstore"
	"github.com/mmynk/helperpoints/pkg/logging"
)

const tokenDuration = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.DBDriver)

	l := ledger.New(store, ledger.WithCandidateLimit(cfg.AllocatorCandidateLimit))
	ctrl := orders.NewController(store, l, catalog.NewMemory(cfg.Stock), orders.Policy{
		CommissionPercent:   cfg.CommissionPercent,
		DeliveryEarnDivisor: cfg.DeliveryEarnDivisor,
		PaymentEarnDivisor:  cfg.PaymentEarnDivisor,
		ReturnWindow:        cfg.ReturnWindow,
	})
	dispatcher := payment.NewDispatcher(store, l, payment.NewFakeGateway(), payment.Config{
		PaymentEarnDivisor: cfg.PaymentEarnDivisor,
		GatewayTimeout:     cfg.GatewayTimeout,
	})
	worker := settlement.NewWorker(store, l, cfg.SettlementInterval)

	interceptors := []connect.Interceptor{middleware.LoggingInterceptor()}
	if cfg.JWTSecret != "" {
		interceptors = append(interceptors, middleware.RequireAuth(auth.NewJWTManager(cfg.JWTSecret, tokenDuration)))
	} else {
		slog.Warn("JWT_SECRET not set, RPC authentication disabled")
	}
	if cfg.RateLimitRPS > 0 {
		interceptors = append(interceptors, middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Interceptor())
	}
	opt := connect.WithInterceptors(interceptors...)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount(service.NewPaymentService(dispatcher, ctrl).Handler(opt))
	r.Mount(service.NewLedgerService(l).Handler(opt))
	r.Mount(service.NewRepaymentService(worker).Handler(opt))
	r.Mount(service.NewOrderService(ctrl).Handler(opt))

	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Settlement worker exited", "error", err)
		}
	}()

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestLogger logs all incoming requests
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("Request completed",
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, "+service.ShortfallHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
