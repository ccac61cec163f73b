package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/httpx"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load("inventory", ":8082")
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, inventory.Schema); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}

	svc := &inventory.Service{Store: &inventory.Repo{DB: db}, Log: log}
	router := httpx.NewRouter(log)
	(&httpx.InventoryHandler{Svc: svc}).Register(router)

	if err := httpx.Serve(ctx, cfg.HTTPAddr, router, log); err != nil {
		log.Error("inventory stopped", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
