package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vegshop/vegshop-backend/api/controllers"
	ordercontrollers "github.com/vegshop/vegshop-backend/api/controllers/orders"
	"github.com/vegshop/vegshop-backend/api/middleware"
	"github.com/vegshop/vegshop-backend/internal/inventory"
	"github.com/vegshop/vegshop-backend/internal/orders"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/internal/submission"
	"github.com/vegshop/vegshop-backend/pkg/config"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	"github.com/vegshop/vegshop-backend/pkg/logger"
	"github.com/vegshop/vegshop-backend/pkg/metrics"
	pkgredis "github.com/vegshop/vegshop-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP surface needs:
// idempotency records, rate-limit counters and readiness.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything NewRouter wires into handlers.
type Deps struct {
	DB             db.Pinger
	Redis          RedisStore
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Resolver       *partition.Resolver
	Inventory      inventory.Service
	Orders         orders.Service
	Admitter       submission.Admitter
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	// typed-nil guard: a nil RedisStore must reach the middleware as a nil interface
	var idempotencyStore pkgredis.IdempotencyStore
	var redisPinger pkgredis.Pinger
	var limiter middleware.RateLimiterStore
	if deps.Redis != nil {
		idempotencyStore, redisPinger, limiter = deps.Redis, deps.Redis, deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	rateLimit := middleware.RateLimit(limiter, cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, logg)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(rateLimit)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/stock", controllers.CustomerStock(deps.Inventory, deps.Resolver, logg))
			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.Idempotency(idempotencyStore, middleware.OrderIdempotencyTTL, logg)).
					Post("/", ordercontrollers.Place(deps.Orders, deps.Admitter, logg))
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{billId}", ordercontrollers.Detail(deps.Orders, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
		r.Use(rateLimit)

		idempotent := r.With(middleware.Idempotency(idempotencyStore, middleware.AdminIdempotencyTTL, logg))
		r.Get("/v1/inventory/{date}/items", controllers.AdminListItems(deps.Inventory, deps.Resolver, logg))
		idempotent.Put("/v1/inventory/{date}/items", controllers.AdminUpsertItem(deps.Inventory, deps.Resolver, logg))
		idempotent.Patch("/v1/inventory/{date}/items/{itemId}/stock", controllers.AdminUpdateStock(deps.Inventory, deps.Resolver, logg))
		idempotent.Post("/v1/inventory/{date}/copy-forward", controllers.AdminCopyForward(deps.Inventory, deps.Resolver, logg))
		r.Get("/v1/orders", controllers.AdminListOrders(deps.Orders, deps.Resolver, logg))
		idempotent.Patch("/v1/orders/{billId}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
	})

	return r
}
