package orderservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"rideHailing/internal/bus"
	"rideHailing/internal/db"
	"rideHailing/models"
)

func openService(t *testing.T, name string) *Service {
	t.Helper()
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return New(d, nil)
}

func fact(t *testing.T, topic, keyPrefix string, entity any) bus.Fact {
	t.Helper()
	f, err := bus.NewFact(topic, keyPrefix, entity)
	if err != nil {
		t.Fatalf("new fact: %v", err)
	}
	return f
}

func seedCustomer(t *testing.T, s *Service, id int64, username string) {
	t.Helper()
	f := fact(t, bus.TopicUserAdd, "user-create", &models.Customer{ID: id, Username: username})
	if err := s.HandleFact(context.Background(), f); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func seedDriver(t *testing.T, s *Service, id int64, username string) {
	t.Helper()
	f := fact(t, bus.TopicDriverAdd, "driver-create", &models.Driver{ID: id, Username: username})
	if err := s.HandleFact(context.Background(), f); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

func seedOrder(t *testing.T, s *Service, orderID string, customerID int64) {
	t.Helper()
	o := &models.Order{
		ID: orderID, CustomerID: customerID, Price: 30_000,
		DistanceTenthsKm: 100, Status: models.OrderStatusCreated,
	}
	if err := s.HandleFact(context.Background(), fact(t, bus.TopicOrderAdd, "order-create", o)); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestService_OrderAddWaitsForCustomer(t *testing.T) {
	s := openService(t, "ordersvcwait")
	ctx := context.Background()

	o := &models.Order{ID: "ord-1", CustomerID: 7, Price: 30_000, DistanceTenthsKm: 100, Status: models.OrderStatusCreated}
	orderFact := fact(t, bus.TopicOrderAdd, "order-create", o)

	// the order fact arrives before the customer fact: error, not a drop
	err := s.HandleFact(ctx, orderFact)
	if !errors.Is(err, models.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound for unseen customer, got %v", err)
	}
	if got, _ := s.orders.GetByID(ctx, "ord-1"); got != nil {
		t.Fatalf("order stored despite unseen customer: %+v", got)
	}

	seedCustomer(t, s, 7, "budi")

	// redelivery now succeeds
	if err := s.HandleFact(ctx, orderFact); err != nil {
		t.Fatalf("redelivered order fact: %v", err)
	}
	got, err := s.Get(ctx, "ord-1")
	if err != nil || got.Price != 30_000 {
		t.Fatalf("get: %v %+v", err, got)
	}

	// a second redelivery is absorbed: still exactly one row
	if err := s.HandleFact(ctx, orderFact); err != nil {
		t.Fatalf("duplicate order fact: %v", err)
	}
	list, err := s.ListByCustomer(ctx, 7)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
}

func TestService_UserFactsUpsertReplica(t *testing.T) {
	s := openService(t, "ordersvcusers")
	ctx := context.Background()

	seedCustomer(t, s, 7, "budi")
	c, err := s.customers.GetByID(ctx, 7)
	if err != nil || c == nil || c.Username != "budi" {
		t.Fatalf("replica: %v %+v", err, c)
	}

	// user-update flips the blocked flag on the replica
	update := fact(t, bus.TopicUserUpdate, "user-update", &models.Customer{ID: 7, Username: "budi", Blocked: true})
	if err := s.HandleFact(ctx, update); err != nil {
		t.Fatalf("user-update: %v", err)
	}
	c, _ = s.customers.GetByID(ctx, 7)
	if !c.Blocked {
		t.Fatalf("replica not updated: %+v", c)
	}
}

func TestService_AcceptFlowEmitsOrderUpdateFacts(t *testing.T) {
	s := openService(t, "ordersvcaccept")
	ctx := context.Background()

	seedCustomer(t, s, 7, "budi")
	seedDriver(t, s, 3, "agus")
	seedOrder(t, s, "ord-1", 7)

	o, err := s.Accept(ctx, "ord-1", 3)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if o.Status != models.OrderStatusAccepted || o.DriverID == nil || *o.DriverID != 3 {
		t.Fatalf("unexpected accepted order: %+v", o)
	}

	// a losing driver gets the conflict error
	seedDriver(t, s, 4, "tono")
	if _, err := s.Accept(ctx, "ord-1", 4); !errors.Is(err, models.ErrOrderAlreadyAccepted) {
		t.Fatalf("expected ErrOrderAlreadyAccepted, got %v", err)
	}

	// only the assigned driver can progress
	if _, err := s.PickUp(ctx, "ord-1", 4); !errors.Is(err, models.ErrNotAssignedDriver) {
		t.Fatalf("expected ErrNotAssignedDriver, got %v", err)
	}
	if _, err := s.PickUp(ctx, "ord-1", 3); err != nil {
		t.Fatalf("pick up: %v", err)
	}
	done, err := s.Finish(ctx, "ord-1", 3)
	if err != nil || done.Status != models.OrderStatusCompleted {
		t.Fatalf("finish: %v %+v", err, done)
	}

	// each committed transition staged an order-update fact
	pending, err := s.outbox.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	var statuses []models.OrderStatus
	for _, f := range pending {
		if f.Topic != bus.TopicOrderUpdate {
			t.Fatalf("unexpected topic %s", f.Topic)
		}
		var snap models.Order
		if err := json.Unmarshal(f.Value, &snap); err != nil {
			t.Fatalf("decode fact: %v", err)
		}
		statuses = append(statuses, snap.Status)
	}
	want := []models.OrderStatus{models.OrderStatusAccepted, models.OrderStatusPickedUp, models.OrderStatusCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("staged %d facts, want %d (%v)", len(statuses), len(want), statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("fact %d status = %s, want %s", i, statuses[i], want[i])
		}
	}
}

func TestService_DriverGates(t *testing.T) {
	s := openService(t, "ordersvcgates")
	ctx := context.Background()

	seedCustomer(t, s, 7, "budi")
	seedOrder(t, s, "ord-1", 7)

	// unknown driver
	if _, err := s.Accept(ctx, "ord-1", 99); !errors.Is(err, models.ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}

	// blocked driver
	blocked := fact(t, bus.TopicDriverAdd, "driver-create", &models.Driver{ID: 5, Username: "blocked", Blocked: true})
	if err := s.HandleFact(ctx, blocked); err != nil {
		t.Fatalf("seed blocked driver: %v", err)
	}
	if _, err := s.Accept(ctx, "ord-1", 5); !errors.Is(err, models.ErrDriverBlocked) {
		t.Fatalf("expected ErrDriverBlocked, got %v", err)
	}

	// no state change leaked
	o, err := s.Get(ctx, "ord-1")
	if err != nil || o.Status != models.OrderStatusCreated || o.DriverID != nil {
		t.Fatalf("order touched by gated accept: %v %+v", err, o)
	}
	if n, _ := s.outbox.PendingCount(ctx); n != 0 {
		t.Fatalf("fact staged by gated accept: %d", n)
	}
}

func TestService_Cancel(t *testing.T) {
	s := openService(t, "ordersvccancel")
	ctx := context.Background()

	seedCustomer(t, s, 7, "budi")
	seedDriver(t, s, 3, "agus")
	seedOrder(t, s, "ord-1", 7)
	seedOrder(t, s, "ord-2", 7)

	o, err := s.Cancel(ctx, "ord-1")
	if err != nil || o.Status != models.OrderStatusCancelled {
		t.Fatalf("cancel: %v %+v", err, o)
	}

	// accepted orders cannot be cancelled
	if _, err := s.Accept(ctx, "ord-2", 3); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := s.Cancel(ctx, "ord-2"); !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if _, err := s.Cancel(ctx, "missing"); !errors.Is(err, models.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	// open listing excludes both the cancelled and the accepted order
	open, err := s.ListOpen(ctx, 10)
	if err != nil || len(open) != 0 {
		t.Fatalf("open: %v %+v", err, open)
	}
}
