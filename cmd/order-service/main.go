package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"rideHailing/internal/bootstrap"
	"rideHailing/internal/bus"
	"rideHailing/internal/config"
	"rideHailing/internal/db"
	"rideHailing/internal/logging"
	"rideHailing/internal/orderservice"
	"rideHailing/internal/outbox"
	"rideHailing/repository"
)

const serviceName = "order-service"

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

	svc := orderservice.New(d, logger)

	// Replicas of both directories plus the order stream itself. The order-add
	// subscription makes replays of our own creations harmless and lets a
	// future second creator converge on the same canonical row.
	fb := bootstrap.StartFactBus(ctx, cfg.Kafka, serviceName, map[string]bus.Handler{
		bus.TopicUserAdd:      svc.HandleFact,
		bus.TopicUserUpdate:   svc.HandleFact,
		bus.TopicDriverAdd:    svc.HandleFact,
		bus.TopicDriverUpdate: svc.HandleFact,
		bus.TopicOrderAdd:     svc.HandleFact,
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
