// Package orderservice owns the canonical order store and the order state
// machine. Customers and drivers exist here only as replicated projections
// fed by user-add and driver-add facts.
package orderservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"rideHailing/internal/bus"
	"rideHailing/internal/observability"
	"rideHailing/models"
	"rideHailing/repository"
)

type Service struct {
	db        *sql.DB
	orders    *repository.OrderRepository
	customers *repository.CustomerRepository
	drivers   *repository.DriverRepository
	outbox    *repository.OutboxRepository
	log       *slog.Logger
}

func New(db *sql.DB, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:        db,
		orders:    repository.NewOrderRepository(db),
		customers: repository.NewCustomerRepository(db),
		drivers:   repository.NewDriverRepository(db),
		outbox:    repository.NewOutboxRepository(db),
		log:       log,
	}
}

// HandleFact applies one fact to the canonical store. Unknown customers on
// order-add are an error, not a drop: the user-add fact is still in flight
// and redelivery will find it applied. Everything else upserts by entity id
// so replays converge on the same state.
func (s *Service) HandleFact(ctx context.Context, f bus.Fact) error {
	switch f.Topic {
	case bus.TopicUserAdd, bus.TopicUserUpdate:
		var c models.Customer
		if err := json.Unmarshal(f.Value, &c); err != nil {
			return fmt.Errorf("decode %s fact: %w", f.Topic, err)
		}
		return s.customers.Upsert(ctx, &c)

	case bus.TopicDriverAdd, bus.TopicDriverUpdate:
		var d models.Driver
		if err := json.Unmarshal(f.Value, &d); err != nil {
			return fmt.Errorf("decode %s fact: %w", f.Topic, err)
		}
		return s.drivers.Upsert(ctx, &d)

	case bus.TopicOrderAdd:
		var o models.Order
		if err := json.Unmarshal(f.Value, &o); err != nil {
			return fmt.Errorf("decode order-add fact: %w", err)
		}
		c, err := s.customers.GetByID(ctx, o.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("order %s references customer %d not seen yet: %w",
				o.ID, o.CustomerID, models.ErrCustomerNotFound)
		}
		if err := s.orders.CreateIfAbsent(ctx, &o); err != nil {
			return err
		}
		s.log.Info("order recorded", "order_id", o.ID, "customer_id", o.CustomerID)
		return nil

	default:
		return nil
	}
}

// Accept assigns the order to the driver, first claim wins.
func (s *Service) Accept(ctx context.Context, orderID string, driverID int64) (*models.Order, error) {
	if err := s.gateDriver(ctx, driverID); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, orderID, func(tx *sql.Tx) (*models.Order, error) {
		return s.orders.AcceptTx(ctx, tx, orderID, driverID)
	})
	if err != nil {
		if errors.Is(err, models.ErrOrderAlreadyAccepted) {
			observability.AcceptConflicts.Inc()
		}
		return nil, err
	}
	s.log.Info("order accepted", "order_id", orderID, "driver_id", driverID)
	return o, nil
}

// PickUp marks the order picked up by its assigned driver.
func (s *Service) PickUp(ctx context.Context, orderID string, driverID int64) (*models.Order, error) {
	if err := s.gateDriver(ctx, driverID); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, orderID, func(tx *sql.Tx) (*models.Order, error) {
		return s.orders.MarkPickedUpTx(ctx, tx, orderID, driverID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order picked up", "order_id", orderID, "driver_id", driverID)
	return o, nil
}

// Finish completes the order.
func (s *Service) Finish(ctx context.Context, orderID string, driverID int64) (*models.Order, error) {
	if err := s.gateDriver(ctx, driverID); err != nil {
		return nil, err
	}
	o, err := s.transition(ctx, orderID, func(tx *sql.Tx) (*models.Order, error) {
		return s.orders.MarkCompletedTx(ctx, tx, orderID, driverID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order completed", "order_id", orderID, "driver_id", driverID)
	return o, nil
}

// Cancel cancels an order no driver has claimed.
func (s *Service) Cancel(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.transition(ctx, orderID, func(tx *sql.Tx) (*models.Order, error) {
		return s.orders.CancelTx(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order cancelled", "order_id", orderID)
	return o, nil
}

// transition runs one guarded state change and stages the order-update fact
// in the same transaction, so no transition ever commits unannounced.
func (s *Service) transition(ctx context.Context, orderID string, change func(tx *sql.Tx) (*models.Order, error)) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	o, err := change(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	fact, err := bus.NewFact(bus.TopicOrderUpdate, "order-update", o)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := s.outbox.AddTx(ctx, tx, fact); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) gateDriver(ctx context.Context, driverID int64) error {
	d, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if d == nil {
		return models.ErrDriverNotFound
	}
	if d.Blocked {
		return models.ErrDriverBlocked
	}
	return nil
}

// Get returns the canonical order.
func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, models.ErrOrderNotFound
	}
	return o, nil
}

// ListByCustomer lists a customer's orders newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

// ListByDriver lists a driver's orders newest first.
func (s *Service) ListByDriver(ctx context.Context, driverID int64) ([]models.Order, error) {
	return s.orders.ListByDriver(ctx, driverID)
}

// ListOpen lists claimable orders oldest first.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]models.Order, error) {
	return s.orders.ListOpen(ctx, limit)
}

// ListAdmin lists orders with filters and keyset pagination.
func (s *Service) ListAdmin(ctx context.Context, p repository.ListOrdersAdminParams) ([]models.Order, error) {
	return s.orders.ListAdmin(ctx, p)
}
