// Package bootstrap wires the plumbing the service mains share: the fact-bus
// transport and the metrics listener. Business wiring stays in each main.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rideHailing/internal/bus"
	"rideHailing/internal/config"
)

// FactBus is a service's connection to the fact stream: the publisher its
// outbox dispatcher drains into, plus one running consumer per subscription.
type FactBus struct {
	publisher bus.Publisher
	memory    *bus.MemoryBus
	closers   []func() error
}

// StartFactBus connects to Kafka, or falls back to the in-process bus when no
// brokers are configured. The fallback only loops the service's own facts
// back to its subscriptions; cross-service delivery needs Kafka.
func StartFactBus(ctx context.Context, cfg config.KafkaConfig, serviceName string, subs map[string]bus.Handler, log *slog.Logger) *FactBus {
	if len(cfg.Brokers) == 0 {
		mem := bus.NewMemoryBus()
		for topic, h := range subs {
			mem.Subscribe(topic, h)
		}
		log.Info("no kafka brokers configured, using in-process bus")
		return &FactBus{publisher: mem, memory: mem}
	}

	group := cfg.GroupID
	if group == "" {
		group = serviceName
	}
	pub := bus.NewKafkaPublisher(cfg.Brokers)
	fb := &FactBus{publisher: pub, closers: []func() error{pub.Close}}
	for topic, h := range subs {
		c := bus.NewKafkaConsumer(cfg.Brokers, topic, group, h, log)
		fb.closers = append(fb.closers, c.Close)
		go c.Run(ctx)
		log.Info("consuming", "topic", topic, "group", group)
	}
	return fb
}

// Publisher is where the outbox dispatcher sends staged facts.
func (f *FactBus) Publisher() bus.Publisher { return f.publisher }

// Pump retries parked in-process deliveries until ctx is cancelled. On Kafka
// redelivery is the broker's job and Pump returns immediately.
func (f *FactBus) Pump(ctx context.Context) {
	if f.memory == nil {
		return
	}
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.memory.Redeliver(ctx)
		}
	}
}

func (f *FactBus) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ServeMetrics exposes /metrics on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics listener failed", "addr", addr, "err", err)
	}
}
