package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/observability"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payments"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	name := cfg.ServiceName + "-reconciler"
	logger, err := observability.NewLogger(name, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// memory store hidup di proses api, reconciler harus berbagi DB
	if cfg.StoreDriver != config.StoreDriverPostgres {
		logger.Fatal("reconciler requires STORE_DRIVER=postgres", zap.String("store", cfg.StoreDriver))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: name,
		Endpoint:    cfg.OtelEndpoint,
		AuthHeader:  cfg.OtelAuthHeader,
	})
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer: order.paid / order.cancelled
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
	prod.Start(ctx)

	svc := &checkout.Service{
		Store:       &postgres.Store{DB: db},
		Locker:      &redisx.Locker{RDB: rdb, TTL: cfg.LockTTL, Logger: logger},
		Events:      prod,
		Statuses:    &redisx.StatusCache{RDB: rdb}, // status yang dibaca API ikut segar
		Logger:      logger,
		Tracer:      otel.Tracer("storefront/checkout"),
		ServiceName: name,
		PendingTTL:  cfg.PendingTTL,
	}
	h := &payments.Handler{
		Service:     svc,
		Dedup:       &redisx.Deduper{RDB: rdb, Service: name},
		Logger:      logger,
		ServiceName: name,
	}

	var wg sync.WaitGroup

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentsGroup, orders.TopicPaymentConfirmed, cfg.PaymentsWorkers, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("payment consumer started",
			zap.String("group", cfg.PaymentsGroup),
			zap.String("topic", orders.TopicPaymentConfirmed),
			zap.Int("workers", cfg.PaymentsWorkers),
		)
		if err := cons.Start(ctx, h.HandlePaymentConfirmed); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// Sweeper: pending yang kelamaan -> unpaid
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep(ctx, svc, cfg.SweepInterval, logger)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down reconciler")
	cancel()
	wg.Wait()
	prod.Close()
	prod.WaitClosed()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func sweep(ctx context.Context, svc *checkout.Service, every time.Duration, logger *zap.Logger) {
	if every <= 0 || svc.PendingTTL <= 0 {
		logger.Info("pending expiry disabled")
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := svc.ExpireStale(ctx); err != nil && ctx.Err() == nil {
				logger.Error("expire stale orders", zap.Error(err))
			}
		}
	}
}
