package repository

import (
	"context"
	"errors"
	"testing"

	"rideHailing/internal/db"
	"rideHailing/models"
)

func TestDriverRepository_CRUDAndPosition(t *testing.T) {
	d, err := db.Open("file:driverrepo?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := NewDriverRepository(d)
	ctx := context.Background()

	dr := &models.Driver{Username: "agus", FirstName: "Agus"}
	if err := repo.Create(ctx, dr); err != nil {
		t.Fatalf("create: %v", err)
	}
	if dr.ID == 0 {
		t.Fatalf("expected generated id, got %+v", dr)
	}

	g, err := repo.GetByID(ctx, dr.ID)
	if err != nil || g == nil || g.Username != "agus" {
		t.Fatalf("get by id: %v %+v", err, g)
	}
	g2, err := repo.GetByUsername(ctx, "agus")
	if err != nil || g2 == nil || g2.ID != dr.ID {
		t.Fatalf("get by username: %v %+v", err, g2)
	}
	gone, err := repo.GetByID(ctx, 9999)
	if err != nil || gone != nil {
		t.Fatalf("expected nil for missing driver, got %v %+v", err, gone)
	}

	if err := repo.UpdatePosition(ctx, dr.ID, -6.2, 106.8); err != nil {
		t.Fatalf("update position: %v", err)
	}
	g3, _ := repo.GetByID(ctx, dr.ID)
	if g3.Latitude != -6.2 || g3.Longitude != 106.8 {
		t.Fatalf("position not stored: %+v", g3)
	}
	if err := repo.UpdatePosition(ctx, 9999, 0, 0); !errors.Is(err, models.ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}

	if err := repo.SetBlocked(ctx, dr.ID, true); err != nil {
		t.Fatalf("set blocked: %v", err)
	}
	g4, _ := repo.GetByID(ctx, dr.ID)
	if !g4.Blocked {
		t.Fatalf("blocked flag not set: %+v", g4)
	}

	if err := repo.Credit(ctx, dr.ID, 25_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	g5, _ := repo.GetByID(ctx, dr.ID)
	if g5.Balance != 25_000 {
		t.Fatalf("balance = %d, want 25000", g5.Balance)
	}

	list, err := repo.List(ctx, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
}

func TestDriverRepository_UpsertKeepsLocalPosition(t *testing.T) {
	d, err := db.Open("file:driverupsert?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := NewDriverRepository(d)
	ctx := context.Background()

	replica := &models.Driver{ID: 42, Username: "remote", Latitude: -6.1, Longitude: 106.7}
	if err := repo.Upsert(ctx, replica); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}

	// the local service has a fresher position report than the fact
	if err := repo.UpdatePosition(ctx, 42, -6.9, 107.6); err != nil {
		t.Fatalf("update position: %v", err)
	}

	replica.Blocked = true
	if err := repo.Upsert(ctx, replica); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	g, err := repo.GetByID(ctx, 42)
	if err != nil || g == nil {
		t.Fatalf("get: %v %+v", err, g)
	}
	if !g.Blocked {
		t.Fatalf("blocked not refreshed: %+v", g)
	}
	if g.Latitude != -6.9 || g.Longitude != 107.6 {
		t.Fatalf("replayed fact clobbered fresher position: %+v", g)
	}
}
