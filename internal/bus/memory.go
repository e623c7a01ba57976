package bus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process bus for tests and single-binary runs. Delivery
// is synchronous; a failed handler keeps the fact in a pending queue until
// Redeliver succeeds, mirroring the at-least-once contract of the real
// transport.
type MemoryBus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	pending  []pendingDelivery
}

type pendingDelivery struct {
	fact    Fact
	handler Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic. Not safe to call concurrently
// with Publish; wire subscriptions up front like the real consumers do.
func (b *MemoryBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers the fact to every subscriber of its topic. Handler
// failures are queued for redelivery rather than returned: the publisher's
// contract is satisfied once the transport has the fact.
func (b *MemoryBus) Publish(ctx context.Context, f Fact) error {
	b.mu.Lock()
	hs := append([]Handler(nil), b.handlers[f.Topic]...)
	b.mu.Unlock()

	for _, h := range hs {
		if err := h(ctx, f); err != nil {
			b.mu.Lock()
			b.pending = append(b.pending, pendingDelivery{fact: f, handler: h})
			b.mu.Unlock()
		}
	}
	return nil
}

// Redeliver retries every pending delivery once. Deliveries that fail again
// stay queued.
func (b *MemoryBus) Redeliver(ctx context.Context) {
	b.mu.Lock()
	queue := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, d := range queue {
		if err := d.handler(ctx, d.fact); err != nil {
			b.mu.Lock()
			b.pending = append(b.pending, d)
			b.mu.Unlock()
		}
	}
}

// Pending reports how many deliveries are waiting for redelivery.
func (b *MemoryBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
