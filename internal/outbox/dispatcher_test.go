package outbox

import (
	"context"
	"errors"
	"testing"

	"rideHailing/internal/bus"
	"rideHailing/internal/db"
	"rideHailing/repository"
)

// flakyPublisher fails the first n publishes, then delegates to a MemoryBus.
type flakyPublisher struct {
	failures int
	inner    *bus.MemoryBus
}

func (p *flakyPublisher) Publish(ctx context.Context, f bus.Fact) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	return p.inner.Publish(ctx, f)
}

func stage(t *testing.T, repo *repository.OutboxRepository, topic, keyPrefix string, entity any) bus.Fact {
	t.Helper()
	f, err := bus.NewFact(topic, keyPrefix, entity)
	if err != nil {
		t.Fatalf("new fact: %v", err)
	}
	if err := repo.Add(context.Background(), f); err != nil {
		t.Fatalf("stage fact: %v", err)
	}
	return f
}

func TestDispatcher_DrainsInOrder(t *testing.T) {
	d, err := db.Open("file:dispatchorder?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := repository.NewOutboxRepository(d)
	mem := bus.NewMemoryBus()
	ctx := context.Background()

	var got []string
	mem.Subscribe(bus.TopicOrderAdd, func(ctx context.Context, f bus.Fact) error {
		got = append(got, f.ID)
		return nil
	})

	f1 := stage(t, repo, bus.TopicOrderAdd, "order-create", map[string]any{"id": "a"})
	f2 := stage(t, repo, bus.TopicOrderAdd, "order-create", map[string]any{"id": "b"})

	disp := NewDispatcher(repo, mem, nil, 0, 0)
	n, err := disp.DrainOnce(ctx)
	if err != nil || n != 2 {
		t.Fatalf("drain: %v n=%d", err, n)
	}
	if len(got) != 2 || got[0] != f1.ID || got[1] != f2.ID {
		t.Fatalf("facts out of order: %v", got)
	}
	if pending, _ := repo.PendingCount(ctx); pending != 0 {
		t.Fatalf("pending=%d after drain, want 0", pending)
	}

	// draining an empty outbox is a no-op
	n, err = disp.DrainOnce(ctx)
	if err != nil || n != 0 {
		t.Fatalf("empty drain: %v n=%d", err, n)
	}
}

func TestDispatcher_RetriesFailedPublish(t *testing.T) {
	d, err := db.Open("file:dispatchretry?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := repository.NewOutboxRepository(d)
	mem := bus.NewMemoryBus()
	flaky := &flakyPublisher{failures: 1, inner: mem}
	ctx := context.Background()

	delivered := 0
	mem.Subscribe(bus.TopicUserAdd, func(ctx context.Context, f bus.Fact) error {
		delivered++
		return nil
	})

	stage(t, repo, bus.TopicUserAdd, "user-create", map[string]any{"id": 1})

	disp := NewDispatcher(repo, flaky, nil, 0, 0)

	// first tick hits the broker failure; the fact stays staged
	n, err := disp.DrainOnce(ctx)
	if err != nil || n != 0 {
		t.Fatalf("failed drain: %v n=%d", err, n)
	}
	if pending, _ := repo.PendingCount(ctx); pending != 1 {
		t.Fatalf("pending=%d after failed publish, want 1", pending)
	}
	if delivered != 0 {
		t.Fatalf("delivered=%d after failed publish, want 0", delivered)
	}

	// next tick succeeds
	n, err = disp.DrainOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("retry drain: %v n=%d", err, n)
	}
	if delivered != 1 {
		t.Fatalf("delivered=%d, want 1", delivered)
	}
	if pending, _ := repo.PendingCount(ctx); pending != 0 {
		t.Fatalf("pending=%d, want 0", pending)
	}
}
