package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rideHailing/internal/db"
	"rideHailing/internal/testutil"
	"rideHailing/models"
)

func TestCustomerRepository_CRUDAndBlocked(t *testing.T) {
	d, err := db.Open("file:customerrepo?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := NewCustomerRepository(d)
	ctx := context.Background()

	c := &models.Customer{Username: "budi", FirstName: "Budi", Email: "budi@example.com"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == 0 {
		t.Fatalf("expected generated id, got %+v", c)
	}

	g, err := repo.GetByID(ctx, c.ID)
	if err != nil || g == nil || g.Username != "budi" {
		t.Fatalf("get by id: %v %+v", err, g)
	}
	if g.Balance != 0 || g.Blocked {
		t.Fatalf("unexpected defaults: %+v", g)
	}

	g2, err := repo.GetByUsername(ctx, "budi")
	if err != nil || g2 == nil || g2.ID != c.ID {
		t.Fatalf("get by username: %v %+v", err, g2)
	}

	gone, err := repo.GetByID(ctx, 9999)
	if err != nil || gone != nil {
		t.Fatalf("expected nil for missing customer, got %v %+v", err, gone)
	}

	list, err := repo.List(ctx, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}

	if err := repo.SetBlocked(ctx, c.ID, true); err != nil {
		t.Fatalf("set blocked: %v", err)
	}
	g3, _ := repo.GetByID(ctx, c.ID)
	if !g3.Blocked {
		t.Fatalf("blocked flag not set: %+v", g3)
	}
	if err := repo.SetBlocked(ctx, 9999, true); !errors.Is(err, models.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCustomerRepository_TopUpBounds(t *testing.T) {
	d, err := db.Open("file:topupbounds?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := NewCustomerRepository(d)
	ctx := context.Background()

	c := &models.Customer{Username: "sari"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.TopUp(ctx, c.ID, 0); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("zero top-up: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := repo.TopUp(ctx, c.ID, -500); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("negative top-up: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := repo.TopUp(ctx, c.ID, DefaultTopUpCeiling+1); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("over-ceiling top-up: expected ErrInvalidAmount, got %v", err)
	}
	if b, _ := repo.Balance(ctx, c.ID); b != 0 {
		t.Fatalf("rejected top-ups must not change balance, got %d", b)
	}

	// the ceiling itself is accepted
	b, err := repo.TopUp(ctx, c.ID, DefaultTopUpCeiling)
	if err != nil || b != DefaultTopUpCeiling {
		t.Fatalf("ceiling top-up: %v balance=%d", err, b)
	}
	b, err = repo.TopUp(ctx, c.ID, 50_000)
	if err != nil || b != DefaultTopUpCeiling+50_000 {
		t.Fatalf("second top-up: %v balance=%d", err, b)
	}

	if _, err := repo.TopUp(ctx, 9999, 1000); !errors.Is(err, models.ErrCustomerNotFound) {
		t.Fatalf("missing customer: expected ErrCustomerNotFound, got %v", err)
	}

	if err := repo.SetBlocked(ctx, c.ID, true); err != nil {
		t.Fatalf("set blocked: %v", err)
	}
	if _, err := repo.TopUp(ctx, c.ID, 1000); !errors.Is(err, models.ErrCustomerBlocked) {
		t.Fatalf("blocked top-up: expected ErrCustomerBlocked, got %v", err)
	}
}

func TestCustomerRepository_DebitIfSufficient(t *testing.T) {
	d, err := db.Open("file:debitrepo?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := NewCustomerRepository(d)
	ctx := context.Background()

	c := &models.Customer{Username: "wati", Balance: 50_000}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	b, err := repo.DebitIfSufficient(ctx, c.ID, 30_000)
	if err != nil || b != 20_000 {
		t.Fatalf("debit: %v balance=%d", err, b)
	}

	// insufficient: must refuse with the exact deficit and leave the balance alone
	_, err = repo.DebitIfSufficient(ctx, c.ID, 40_000)
	var insufficient *models.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if insufficient.Deficit != 20_000 {
		t.Fatalf("deficit = %d, want 20000", insufficient.Deficit)
	}
	if b, _ := repo.Balance(ctx, c.ID); b != 20_000 {
		t.Fatalf("refused debit must not change balance, got %d", b)
	}

	// exact balance drains to zero
	b, err = repo.DebitIfSufficient(ctx, c.ID, 20_000)
	if err != nil || b != 0 {
		t.Fatalf("exact debit: %v balance=%d", err, b)
	}

	if _, err := repo.DebitIfSufficient(ctx, 9999, 100); !errors.Is(err, models.ErrCustomerNotFound) {
		t.Fatalf("missing customer: expected ErrCustomerNotFound, got %v", err)
	}

	if err := repo.SetBlocked(ctx, c.ID, true); err != nil {
		t.Fatalf("set blocked: %v", err)
	}
	if _, err := repo.DebitIfSufficient(ctx, c.ID, 100); !errors.Is(err, models.ErrCustomerBlocked) {
		t.Fatalf("blocked debit: expected ErrCustomerBlocked, got %v", err)
	}
}

func TestCustomerRepository_ConcurrentDebits(t *testing.T) {
	d := testutil.OpenFileDB(t, "concurrentdebits")

	repo := NewCustomerRepository(d)
	ctx := context.Background()

	// 10 workers race to debit 10,000 each from a 30,000 balance; exactly
	// three may win and the rest must see a deficit, never an overdraw.
	c := &models.Customer{Username: "eko", Balance: 30_000}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.DebitIfSufficient(ctx, c.ID, 10_000)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, deficits int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			var insufficient *models.InsufficientFundsError
			if !errors.As(err, &insufficient) {
				t.Fatalf("unexpected debit error: %v", err)
			}
			deficits++
		}
	}
	if wins != 3 || deficits != 7 {
		t.Fatalf("wins=%d deficits=%d, want 3 and 7", wins, deficits)
	}
	if b, _ := repo.Balance(ctx, c.ID); b != 0 {
		t.Fatalf("final balance = %d, want 0", b)
	}
}

func TestCustomerRepository_CreditAndUpsert(t *testing.T) {
	d, err := db.Open("file:creditrepo?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	repo := NewCustomerRepository(d)
	ctx := context.Background()

	c := &models.Customer{Username: "lina", Balance: 1000}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	// compensating credit lands even on a blocked account
	if err := repo.SetBlocked(ctx, c.ID, true); err != nil {
		t.Fatalf("set blocked: %v", err)
	}
	b, err := repo.Credit(ctx, c.ID, 500)
	if err != nil || b != 1500 {
		t.Fatalf("credit: %v balance=%d", err, b)
	}
	if _, err := repo.Credit(ctx, c.ID, 0); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("zero credit: expected ErrInvalidAmount, got %v", err)
	}

	// upsert from fact: insert with explicit id, then refresh in place
	replica := &models.Customer{ID: 77, Username: "remote", Blocked: false}
	if err := repo.Upsert(ctx, replica); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}
	replica.Blocked = true
	if err := repo.Upsert(ctx, replica); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	g, err := repo.GetByID(ctx, 77)
	if err != nil || g == nil || !g.Blocked {
		t.Fatalf("replica not refreshed: %v %+v", err, g)
	}
}
