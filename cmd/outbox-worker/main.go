package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/freshfeet/storefront-backend/internal/bookkeeping"
	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	"github.com/freshfeet/storefront-backend/pkg/config"
	"github.com/freshfeet/storefront-backend/pkg/db"
	"github.com/freshfeet/storefront-backend/pkg/instance"
	"github.com/freshfeet/storefront-backend/pkg/kafka"
	"github.com/freshfeet/storefront-backend/pkg/logger"
	"github.com/freshfeet/storefront-backend/pkg/metrics"
	"github.com/freshfeet/storefront-backend/pkg/migrate"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
	"github.com/freshfeet/storefront-backend/pkg/outbox/idempotency"
	"github.com/freshfeet/storefront-backend/pkg/outbox/registry"
	"github.com/freshfeet/storefront-backend/pkg/pubsub"
	"github.com/freshfeet/storefront-backend/pkg/redis"
)

const serviceName = "outbox-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

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
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sink, err := newSink(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap event sink", err)
		os.Exit(1)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logg.Error(context.Background(), "error closing event sink", err)
		}
	}()

	dispatcher, err := newDispatcher(dbClient, redisClient, sink)
	if err != nil {
		logg.Error(context.Background(), "failed to build bookkeeping handlers", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Sink:          sink,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      registry.NewEventRegistry(),
		Dispatcher:    dispatcher,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"sink":        sink.Name(),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting outbox worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return service.Run(groupCtx)
	})
	group.Go(func() error {
		return metrics.Serve(groupCtx, ":"+cfg.App.MetricsPort, prometheus.DefaultGatherer)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox worker shutting down gracefully")
}

func newSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (outbox.Sink, error) {
	switch cfg.Events.Normalized() {
	case config.EventsSinkPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.EventsSinkKafka:
		writer, err := kafka.NewWriter(cfg.Kafka, logg)
		if err != nil {
			return nil, err
		}
		return writer, nil
	case config.EventsSinkNone:
		return outbox.NoopSink{}, nil
	default:
		return nil, fmt.Errorf("unsupported event sink %q", cfg.Events.Sink)
	}
}

func newDispatcher(dbClient *db.Client, redisClient *redis.Client, sink outbox.Sink) (*bookkeeping.Dispatcher, error) {
	ledger, err := customers.NewLedger(customers.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	tracker, err := vouchers.NewTracker(vouchers.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	guard, err := idempotency.NewGuard(redisClient, 0)
	if err != nil {
		return nil, err
	}

	orderPlaced, err := bookkeeping.NewOrderSinkHandler(sink, guard)
	if err != nil {
		return nil, err
	}
	ledgerHandler, err := bookkeeping.NewLedgerHandler(ledger)
	if err != nil {
		return nil, err
	}
	voucherHandler, err := bookkeeping.NewVoucherUsageHandler(tracker)
	if err != nil {
		return nil, err
	}
	return bookkeeping.NewDispatcher(bookkeeping.HandlersParams{
		OrderPlaced:            orderPlaced,
		CustomerLedgerDeferred: ledgerHandler,
		VoucherUsageDeferred:   voucherHandler,
	})
}
