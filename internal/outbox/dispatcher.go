// Package outbox drains staged facts to the bus. Facts are written in the
// same transaction as the state change that produced them; the dispatcher
// is the only component that moves them onto the wire.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"rideHailing/internal/bus"
	"rideHailing/internal/observability"
)

// Store is the slice of the outbox repository the dispatcher needs.
type Store interface {
	Pending(ctx context.Context, limit int) ([]bus.Fact, error)
	MarkPublished(ctx context.Context, id string) error
}

// Dispatcher polls the outbox and publishes pending facts in staging order.
// A fact is marked published only after the publisher accepted it, so a
// crash between publish and mark re-sends the fact. Consumers already
// tolerate duplicates.
type Dispatcher struct {
	store     Store
	publisher bus.Publisher
	log       *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewDispatcher(store Store, publisher bus.Publisher, log *slog.Logger, interval time.Duration, batchSize int) *Dispatcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run drains the outbox on a fixed interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				d.log.Warn("outbox drain failed", "error", err)
			}
		}
	}
}

// DrainOnce publishes one batch of pending facts and returns how many were
// handed off. The batch stops at the first publish failure so facts keep
// leaving in staging order; the failed fact is retried on the next tick.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	pending, err := d.store.Pending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, f := range pending {
		if err := d.publisher.Publish(ctx, f); err != nil {
			observability.OutboxRetries.Inc()
			d.log.Warn("fact publish failed, will retry",
				"fact_id", f.ID, "topic", f.Topic, "error", err)
			return published, nil
		}
		if err := d.store.MarkPublished(ctx, f.ID); err != nil {
			// the fact went out but is still staged; the next tick sends a
			// duplicate, which consumers absorb
			return published, err
		}
		published++
	}
	return published, nil
}
