package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/vegshop/vegshop-backend/internal/cron"
	"github.com/vegshop/vegshop-backend/internal/inventory"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/internal/stock"
	"github.com/vegshop/vegshop-backend/pkg/config"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/instance"
	"github.com/vegshop/vegshop-backend/pkg/logger"
	"github.com/vegshop/vegshop-backend/pkg/metrics"
	"github.com/vegshop/vegshop-backend/pkg/migrate"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
	"github.com/vegshop/vegshop-backend/pkg/redis"
)

const (
	serviceKind    = "cron-worker"
	lockNameFormat = "cron-worker:%s"
	metricsGrace   = 5 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := buildService(cfg, logg, dbClient, redisClient, reg)
	if err != nil {
		return fmt.Errorf("create cron service: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := service.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.Cron.MetricsAddr != "" {
		group.Go(func() error { return serveMetrics(gctx, cfg.Cron.MetricsAddr, reg, logg) })
	}
	return group.Wait()
}

// serveMetrics exposes the worker's registry until ctx ends.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logg *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: metricsGrace}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logg.Info(logg.WithField(ctx, "addr", addr), "cron metrics listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*cron.Service, error) {
	policy, err := stock.NewPolicy(cfg.Orders.ReservedBuffer())
	if err != nil {
		return nil, err
	}
	outboxRepo := outbox.NewRepository(dbClient.DB())
	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		DB:     dbClient,
		Repo:   inventory.NewRepository(dbClient.DB()),
		Outbox: outbox.NewService(outboxRepo, logg),
		Policy: policy,
		Retry: db.RetryPolicy{
			MaxAttempts: cfg.Orders.MaxAttempts,
			BaseDelay:   cfg.Orders.RetryBaseDelay,
			MaxDelay:    cfg.Orders.RetryMaxDelay,
		},
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	rollover, err := cron.NewCatalogRolloverJob(cron.CatalogRolloverJobParams{
		Logger:    logg,
		Inventory: inventorySvc,
		Resolver:  partition.NewResolver(cfg.Orders.Location()),
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	jobs, err := cron.NewRegistry(rollover, retention)
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
