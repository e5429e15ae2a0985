package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/vegshop/vegshop-backend/api/routes"
	"github.com/vegshop/vegshop-backend/internal/billing"
	"github.com/vegshop/vegshop-backend/internal/inventory"
	"github.com/vegshop/vegshop-backend/internal/orders"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/internal/reservation"
	"github.com/vegshop/vegshop-backend/internal/stock"
	"github.com/vegshop/vegshop-backend/internal/submission"
	"github.com/vegshop/vegshop-backend/pkg/config"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/env"
	"github.com/vegshop/vegshop-backend/pkg/instance"
	"github.com/vegshop/vegshop-backend/pkg/logger"
	"github.com/vegshop/vegshop-backend/pkg/metrics"
	"github.com/vegshop/vegshop-backend/pkg/migrate"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
	"github.com/vegshop/vegshop-backend/pkg/redis"
	"github.com/vegshop/vegshop-backend/pkg/tracing"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing, "vegshop-api")
	if err != nil {
		logg.Error(context.Background(), "failed to set up tracing", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	reservationMetrics := metrics.NewReservationMetrics(registry)

	deps, err := buildDeps(cfg, logg, dbClient, redisClient, reservationMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.HTTPMetrics = httpMetrics
	deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	addr := ":" + env.Get("PORT", cfg.App.Port)
	id := instance.GetID()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(routes.NewRouter(cfg, logg, deps), "vegshop-api"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server shutting down")
		return multierr.Combine(
			server.Shutdown(shutdownCtx),
			shutdownTracing(shutdownCtx),
		)
	})

	runErr := g.Wait()
	closeErr := multierr.Combine(dbClient.Close(), redisClient.Close())
	if err := multierr.Append(runErr, closeErr); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reservationMetrics *metrics.ReservationMetrics) (routes.Deps, error) {
	resolver := partition.NewResolver(cfg.Orders.Location())
	retry := db.RetryPolicy{
		MaxAttempts: cfg.Orders.MaxAttempts,
		BaseDelay:   cfg.Orders.RetryBaseDelay,
		MaxDelay:    cfg.Orders.RetryMaxDelay,
	}
	policy, err := stock.NewPolicy(cfg.Orders.ReservedBuffer())
	if err != nil {
		return routes.Deps{}, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	items := inventory.NewRepository(dbClient.DB())

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		DB:      dbClient,
		Repo:    items,
		Outbox:  outboxSvc,
		Policy:  policy,
		Retry:   retry,
		Metrics: reservationMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	bills, err := billing.NewGenerator(billing.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Deps{}, err
	}
	engine, err := reservation.NewEngine(reservation.Params{
		DB:      dbClient,
		Items:   items,
		Orders:  reservation.NewRepository(dbClient.DB()),
		Bills:   bills,
		Outbox:  outboxSvc,
		Policy:  policy,
		Retry:   retry,
		Metrics: reservationMetrics,
		Logger:  logg,
		Tracer:  tracing.Tracer("vegshop/reservation"),
	})
	if err != nil {
		return routes.Deps{}, err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Engine:   engine,
		Outbox:   outboxSvc,
		Resolver: resolver,
		Retry:    retry,
		Logger:   logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	gate, err := submission.NewGate(redisClient, cfg.Orders.SubmissionTTL)
	if err != nil {
		return routes.Deps{}, err
	}
	admitter, err := submission.NewAdmitter(cfg.Orders.SubmissionPolicy, submission.NewQueue(cfg.Orders.SubmissionWait), gate)
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		DB:        dbClient,
		Redis:     redisClient,
		Resolver:  resolver,
		Inventory: inventorySvc,
		Orders:    ordersSvc,
		Admitter:  admitter,
	}, nil
}
