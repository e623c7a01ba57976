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
	"rideHailing/internal/driverservice"
	"rideHailing/internal/logging"
	"rideHailing/internal/orderservice"
	"rideHailing/internal/outbox"
	"rideHailing/repository"
)

const serviceName = "driver-service"

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

	// Accept, pick-up and finish write through the canonical order store. The
	// transition facts they stage land in the order store's outbox and are
	// published by the order service's dispatcher, not ours.
	orderDB, err := db.Open(cfg.Peers.OrderDBPath)
	if err != nil {
		log.Fatalf("open order db: %v", err)
	}
	defer func() { _ = orderDB.Close() }()

	svc := driverservice.New(d, orderservice.New(orderDB, logger), logger)

	fb := bootstrap.StartFactBus(ctx, cfg.Kafka, serviceName, map[string]bus.Handler{
		bus.TopicOrderAdd:    svc.HandleFact,
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
