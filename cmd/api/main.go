package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/fulfillment"
	"github.com/ariefcatur/go-marketplace-orders/internal/httpx"
	"github.com/ariefcatur/go-marketplace-orders/internal/idempotency"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/remote"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load("order-api", ":8080")
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, orders.Schema); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, log)
	aborted := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderAborted, 1024, log)
	pctx, stopProducers := context.WithCancel(context.Background())
	placed.Start(pctx)
	aborted.Start(pctx)

	// Peers
	opts := remote.Options{
		Timeout:     cfg.RemoteTimeout,
		MaxRetries:  cfg.RemoteMaxRetries,
		BaseBackoff: cfg.RemoteBaseBackoff,
		Log:         log,
	}
	inv := remote.NewInventory(cfg.InventoryURL, opts)
	pay := remote.NewPayment(cfg.PaymentURL, opts)

	store := &orders.Repo{DB: db}
	cache := orders.NewCache(rdb)
	sagaStats := metrics.NewSaga()
	coord := &fulfillment.Coordinator{
		Users:    pay,
		Catalog:  inv,
		Stock:    inv,
		Payments: pay,
		Orders:   store,
		Idem:     idempotency.NewStore(rdb, cfg.IdempotencyTTL),
		Events:   kafkax.Router{orders.TopicOrderPlaced: placed, orders.TopicOrderAborted: aborted},
		Metrics:  sagaStats,
		Log:      log,
		Producer: cfg.ServiceName,
	}

	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{Placer: coord, Store: store, Cache: cache, Metrics: sagaStats, Log: log}).Register(router)

	projector := &orders.Projector{Cache: cache, Redis: rdb, Name: cfg.ConsumerGroup, Log: log}
	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, orders.TopicOrderPlaced, cfg.ConsumerWorkers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpx.Serve(gctx, cfg.HTTPAddr, router, log) })
	g.Go(func() error { return consumer.Start(gctx, projector.Handle) })

	if err := g.Wait(); err != nil {
		log.Error("api stopped", "err", err)
	}

	// flush events queued by the last requests
	placed.Close()
	aborted.Close()
	stopProducers()
	placed.WaitClosed()
	aborted.WaitClosed()
	log.Info("shutdown complete")
}
