package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/application/handler"
	"github.com/TemirB/order-desk/internal/application/service"
	"github.com/TemirB/order-desk/internal/cache"
	"github.com/TemirB/order-desk/internal/config"
	"github.com/TemirB/order-desk/internal/database"
	"github.com/TemirB/order-desk/internal/domain"
	"github.com/TemirB/order-desk/internal/httpapi"
	"github.com/TemirB/order-desk/internal/kafka"
	"github.com/TemirB/order-desk/internal/observability"
	"github.com/TemirB/order-desk/internal/pkg/breaker"
	"github.com/TemirB/order-desk/internal/storage/memory"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("order-desk stopped with error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.AppEnv == "local" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("env", cfg.AppEnv)), nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	orderStore, txStore, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	c, err := cache.New(cfg.Cache.Cap)
	if err != nil {
		return err
	}
	metrics := observability.NewPrometheus(prometheus.DefaultRegisterer)

	orders := service.NewOrderService(orderStore, c, cfg.Cache.TTL, logger, metrics)
	transactions := service.NewTransactionService(txStore, c, cfg.Cache.TTL, logger, metrics)

	if cfg.Cache.WarmOrders > 0 {
		n, err := orders.Warm(ctx, cfg.Cache.WarmOrders)
		if err != nil {
			logger.Warn("cache warm-up failed", zap.Error(err))
		} else {
			logger.Info("cache warmed", zap.Int("orders", n))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if cfg.Kafka.Enabled {
		consumer, closeReader, err := newFeed(ctx, cfg, transactions, logger, metrics)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer closeReader()
			consumer.Start(ctx)
		}()
	}

	srv := httpapi.New(orders, transactions, logger, metrics, httpapi.WithGatherer(prometheus.DefaultGatherer))
	err = srv.ListenAndServe(ctx, cfg.HTTPAddr, cfg.ShutdownTimeout)

	// the consumer only stops with ctx, also when the server failed on its own
	cancel()
	wg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("order-desk shut down")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.OrderStore, domain.TransactionStore, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		orders := memory.NewOrderStore()
		for _, p := range demoProducts {
			orders.AddProduct(p)
		}
		return orders, memory.NewTransactionStore(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return database.NewOrderStore(pool, cfg.Tables), database.NewTransactionStore(pool, cfg.Tables), pool.Close, nil
}

var demoProducts = []domain.Product{
	{ID: 1, Name: "Keyboard", Price: 4500},
	{ID: 2, Name: "Mouse", Price: 1900},
	{ID: 3, Name: "Monitor", Price: 32000},
}

func newFeed(ctx context.Context, cfg config.Config, transactions *service.TransactionService, logger *zap.Logger, metrics observability.Metrics) (*kafka.Consumer, func(), error) {
	if cfg.Kafka.EnsureTopic {
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, 1, logger); err != nil {
			return nil, nil, err
		}
	}

	reader := kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group)
	feed := handler.NewTransactionFeed(transactions, breaker.New(cfg.Breaker), cfg.Retry, logger.Named("feed"))
	consumer := kafka.NewConsumer(feed, reader, logger.Named("kafka"), metrics)

	return consumer, func() {
		if err := reader.Close(); err != nil {
			logger.Warn("close kafka reader", zap.Error(err))
		}
	}, nil
}
