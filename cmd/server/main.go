package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	creditsconfig "companion/internal/credits/config"
	"companion/internal/credits/handler"
	"companion/internal/credits/metrics"
	"companion/internal/credits/service/fulfillment"
	"companion/internal/credits/service/ledger"
	"companion/internal/credits/service/quota"
	"companion/internal/credits/workers/renewal"
	jwttoken "companion/internal/jwt_token"
	"companion/internal/platform/config"
	"companion/internal/platform/health"
	"companion/internal/platform/logger"
	"companion/pkg/platform/middleware/admin"
	"companion/pkg/platform/middleware/auth"
	request "companion/pkg/platform/middleware/request"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
	accessTokenTTL    = 15 * time.Minute
)

// main wires storage, services, and the HTTP surface, then runs the server
// and the renewal worker until SIGINT or SIGTERM.
func main() {
	if err := config.LoadDotEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing companion credits service",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"ledger_backend", cfg.LedgerBackend,
	)

	stores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	plan := creditsconfig.DefaultConfig()
	plan.Renewal.Interval = cfg.RenewalInterval
	creditMetrics := metrics.New(prometheus.DefaultRegisterer)

	ledgerSvc, err := ledger.New(stores.buckets,
		ledger.WithLogger(log),
		ledger.WithConfig(plan),
		ledger.WithMetrics(creditMetrics),
	)
	if err != nil {
		return err
	}
	quotaSvc, err := quota.New(stores.messages, ledgerSvc, stores.subscriptions,
		quota.WithLogger(log),
		quota.WithConfig(plan),
		quota.WithMetrics(creditMetrics),
	)
	if err != nil {
		return err
	}
	fulfillmentOpts := []fulfillment.Option{
		fulfillment.WithLogger(log),
		fulfillment.WithConfig(plan),
		fulfillment.WithMetrics(creditMetrics),
	}
	if stores.tx != nil {
		fulfillmentOpts = append(fulfillmentOpts, fulfillment.WithTx(stores.tx))
	}
	fulfillmentSvc, err := fulfillment.New(ledgerSvc, stores.keys, stores.subscriptions, fulfillmentOpts...)
	if err != nil {
		return err
	}
	renewalWorker := renewal.New(stores.subscriptions, ledgerSvc, fulfillmentSvc,
		renewal.WithLogger(log),
		renewal.WithInterval(plan.Renewal.Interval),
		renewal.WithBatchSize(plan.Renewal.BatchSize),
		renewal.WithMetrics(creditMetrics),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuerBaseURL, cfg.JWTAudience, accessTokenTTL)
	jwtService.SetEnv(cfg.Environment)
	creditsHandler := handler.New(quotaSvc, ledgerSvc, stores.messages, fulfillmentSvc, log)

	healthHandler := health.New(cfg.Environment)
	stores.registerHealthChecks(healthHandler)

	router := newRouter(cfg, log, creditsHandler, healthHandler, jwttoken.NewJWTServiceAdapter(jwtService))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := renewalWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if stores.redis != nil {
		g.Go(func() error {
			return stores.redis.RunPoolStats(gctx, poolStatsInterval)
		})
	}

	return g.Wait()
}

func newRouter(cfg config.Server, log *slog.Logger, credits *handler.Handler, healthHandler *health.Handler, validator auth.JWTValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.Logger(log))
	r.Use(request.LatencyMiddleware(request.NewMetrics(prometheus.DefaultRegisterer), routePattern))

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(auth.RequireAuth(validator, log))
		credits.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(admin.RequireWebhookSecret(cfg.WebhookSecret, log))
		credits.RegisterWebhooks(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(admin.RequireAdminToken(cfg.AdminAPIToken, log))
		credits.RegisterAdmin(r)
	})

	return r
}

// routePattern labels latency by chi route template so user IDs never
// become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
