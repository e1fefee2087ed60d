package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshfeet/storefront-backend/api/controllers"
	"github.com/freshfeet/storefront-backend/api/middleware"
	"github.com/freshfeet/storefront-backend/pkg/config"
	"github.com/freshfeet/storefront-backend/pkg/logger"
	"github.com/freshfeet/storefront-backend/pkg/metrics"
	"github.com/freshfeet/storefront-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer needs.
type RedisStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisStore
	Checkout controllers.OrderPlacer
	Vouchers controllers.VoucherPreviewer
	Tracking controllers.OrderTracker
	Gatherer prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	// Load already rejected malformed entries.
	proxies, _ := cfg.RateLimit.TrustedProxyPrefixes()
	trackingPolicy := middleware.NewRateLimitPolicy(
		"tracking",
		cfg.RateLimit.TrackingWindow,
		cfg.RateLimit.TrackingIPLimit,
	).WithField("order_number", cfg.RateLimit.TrackingOrderLimit).
		WithTrustedProxies(proxies)
	voucherPolicy := middleware.NewRateLimitPolicy(
		"voucher-apply",
		cfg.RateLimit.VoucherApplyWindow,
		cfg.RateLimit.VoucherApplyIPLimit,
	).WithTrustedProxies(proxies)

	var (
		idempotencyStore redis.IdempotencyStore
		rateStore        middleware.RateLimiterStore
		redisPinger      controllers.Pinger
	)
	if params.Redis != nil {
		idempotencyStore = params.Redis
		rateStore = params.Redis
		redisPinger = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, map[string]controllers.Pinger{
			"db":    params.DB,
			"redis": redisPinger,
		}, logg))
	})

	r.Handle("/metrics", metrics.Handler(params.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Idempotency(idempotencyStore, cfg.Checkout.IdempotencyTTL, logg)).
			Post("/checkout", controllers.Checkout(params.Checkout, logg))
		r.With(middleware.RateLimit(voucherPolicy, rateStore, logg)).
			Post("/vouchers/apply", controllers.ApplyVoucher(params.Vouchers, logg))
		r.With(middleware.RateLimit(trackingPolicy, rateStore, logg)).
			Post("/orders/track", controllers.TrackOrder(params.Tracking, logg))
	})

	return r
}
