package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/freshfeet/storefront-backend/api/routes"
	"github.com/freshfeet/storefront-backend/internal/checkout"
	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/internal/orders"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	"github.com/freshfeet/storefront-backend/pkg/config"
	"github.com/freshfeet/storefront-backend/pkg/db"
	"github.com/freshfeet/storefront-backend/pkg/instance"
	"github.com/freshfeet/storefront-backend/pkg/logger"
	"github.com/freshfeet/storefront-backend/pkg/metrics"
	"github.com/freshfeet/storefront-backend/pkg/migrate"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
	"github.com/freshfeet/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()

	ordersRepo := orders.NewRepository(dbClient.DB())
	voucherRepo := vouchers.NewRepository(dbClient.DB())

	tracker, err := vouchers.NewTracker(voucherRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher tracker", err)
		os.Exit(1)
	}
	ledger, err := customers.NewLedger(customers.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create customer ledger", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Orders:   ordersRepo,
		Vouchers: voucherRepo,
		Tracker:  tracker,
		Ledger:   ledger,
		Outbox:   outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Numbers:  orders.RandomNumberGenerator{},
		Checkout: cfg.Checkout,
		Metrics:  metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	previewService, err := vouchers.NewPreviewService(voucherRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher preview service", err)
		os.Exit(1)
	}
	trackingService, err := orders.NewTrackingService(ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create tracking service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Checkout: checkoutService,
			Vouchers: previewService,
			Tracking: trackingService,
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
