package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"rideHailing/internal/bootstrap"
	"rideHailing/internal/bus"
	"rideHailing/internal/cache"
	"rideHailing/internal/config"
	"rideHailing/internal/db"
	"rideHailing/internal/logging"
	"rideHailing/internal/orderservice"
	"rideHailing/internal/outbox"
	"rideHailing/internal/userservice"
	"rideHailing/repository"
)

const serviceName = "user-service"

func main() {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel).With("service", serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("close db", "err", err)
		}
	}()

	// Canonical orders live in the order service's store; the read-through
	// serves from it and falls back to the local projection.
	orderDB, err := db.Open(cfg.Peers.OrderDBPath)
	if err != nil {
		log.Fatalf("open order db: %v", err)
	}
	defer func() { _ = orderDB.Close() }()

	var c cache.Cache
	if cfg.Redis.Addr != "" {
		c = cache.NewRedisCache(cfg.Redis.Addr, serviceName)
	} else {
		c = cache.NewMemoryCache(serviceName)
	}

	svc := userservice.New(d, c, logger, userservice.Options{
		Orders:       orderservice.New(orderDB, logger),
		CacheTTL:     cfg.Projection.TTL,
		TopUpCeiling: cfg.Ledger.TopUpCeiling,
	})

	fb := bootstrap.StartFactBus(ctx, cfg.Kafka, serviceName, map[string]bus.Handler{
		bus.TopicOrderUpdate: svc.HandleFact,
	}, logger)
	defer func() { _ = fb.Close() }()
	go fb.Pump(ctx)

	disp := outbox.NewDispatcher(repository.NewOutboxRepository(d), fb.Publisher(), logger, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)
	go func() {
		if err := disp.Run(ctx); err != nil {
			logger.Error("outbox dispatcher stopped", "err", err)
		}
	}()

	go bootstrap.ServeMetrics(ctx, cfg.Metrics.Address, logger)

	logger.Info("up", "db", cfg.Database.Path, "metrics", cfg.Metrics.Address)
	<-ctx.Done()
	logger.Info("shutting down")
}
