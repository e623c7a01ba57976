// Package driverservice owns drivers: registration, position reports and
// the driver's view of orders. Transitions are delegated to the Order
// service, which holds the canonical store; this service only keeps an
// advisory projection for browsing.
package driverservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"rideHailing/internal/bus"
	"rideHailing/internal/geo"
	"rideHailing/models"
	"rideHailing/repository"
)

// ErrInvalidCredentials deliberately hides whether the username or the
// password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrTransitionsUnavailable is returned when no transition port is wired,
// e.g. the Order service is unreachable at startup.
var ErrTransitionsUnavailable = errors.New("order transitions unavailable")

// Transitions is the order state-machine port, backed by the Order service.
type Transitions interface {
	Accept(ctx context.Context, orderID string, driverID int64) (*models.Order, error)
	PickUp(ctx context.Context, orderID string, driverID int64) (*models.Order, error)
	Finish(ctx context.Context, orderID string, driverID int64) (*models.Order, error)
}

type Service struct {
	db          *sql.DB
	drivers     *repository.DriverRepository
	projections *repository.ProjectionRepository
	outbox      *repository.OutboxRepository
	transitions Transitions
	log         *slog.Logger
}

func New(db *sql.DB, transitions Transitions, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:          db,
		drivers:     repository.NewDriverRepository(db),
		projections: repository.NewProjectionRepository(db),
		outbox:      repository.NewOutboxRepository(db),
		transitions: transitions,
		log:         log,
	}
}

type RegisterParams struct {
	Username    string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Email       string
}

// Register creates a driver and stages the driver-add fact in the same
// transaction.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*models.Driver, error) {
	if p.Username == "" {
		return nil, errors.New("username is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	d := &models.Driver{
		Username:     p.Username,
		PasswordHash: string(hash),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		PhoneNumber:  p.PhoneNumber,
		Email:        p.Email,
		CreatedAt:    models.Now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := s.drivers.CreateTx(ctx, tx, d); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	fact, err := bus.NewFact(bus.TopicDriverAdd, "driver-create", d)
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

	s.log.Info("driver registered", "driver_id", d.ID, "username", d.Username)
	return d, nil
}

// Authenticate verifies a username/password pair against the stored hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Driver, error) {
	d, err := s.drivers.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return d, nil
}

// Profile returns the driver record.
func (s *Service) Profile(ctx context.Context, driverID int64) (*models.Driver, error) {
	d, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, models.ErrDriverNotFound
	}
	return d, nil
}

// SetPosition records the driver's reported position.
func (s *Service) SetPosition(ctx context.Context, driverID int64, latitude, longitude float64) error {
	if !geo.ValidateCoordinates(latitude, longitude) {
		return models.ErrInvalidCoordinates
	}
	return s.drivers.UpdatePosition(ctx, driverID, latitude, longitude)
}

// SetBlocked toggles the driver's blocked flag and stages the driver-update
// fact in the same transaction.
func (s *Service) SetBlocked(ctx context.Context, driverID int64, blocked bool) error {
	d, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if d == nil {
		return models.ErrDriverNotFound
	}
	d.Blocked = blocked

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.drivers.SetBlockedTx(ctx, tx, driverID, blocked); err != nil {
		_ = tx.Rollback()
		return err
	}
	fact, err := bus.NewFact(bus.TopicDriverUpdate, "driver-update", d)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := s.outbox.AddTx(ctx, tx, fact); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// List pages drivers by id, for the admin directory.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Driver, error) {
	return s.drivers.List(ctx, limit, offset)
}

// AcceptOrder claims an open order through the Order service. The local
// blocked check is advisory; the Order service re-checks against its own
// replica before assigning.
func (s *Service) AcceptOrder(ctx context.Context, driverID int64, orderID string) (*models.Order, error) {
	if err := s.gate(ctx, driverID); err != nil {
		return nil, err
	}
	if s.transitions == nil {
		return nil, ErrTransitionsUnavailable
	}
	o, err := s.transitions.Accept(ctx, orderID, driverID)
	if err != nil {
		return nil, err
	}
	s.refreshProjection(ctx, o)
	return o, nil
}

// PickUpOrder marks the assigned order picked up.
func (s *Service) PickUpOrder(ctx context.Context, driverID int64, orderID string) (*models.Order, error) {
	if err := s.gate(ctx, driverID); err != nil {
		return nil, err
	}
	if s.transitions == nil {
		return nil, ErrTransitionsUnavailable
	}
	o, err := s.transitions.PickUp(ctx, orderID, driverID)
	if err != nil {
		return nil, err
	}
	s.refreshProjection(ctx, o)
	return o, nil
}

// FinishOrder completes the assigned order.
func (s *Service) FinishOrder(ctx context.Context, driverID int64, orderID string) (*models.Order, error) {
	if err := s.gate(ctx, driverID); err != nil {
		return nil, err
	}
	if s.transitions == nil {
		return nil, ErrTransitionsUnavailable
	}
	o, err := s.transitions.Finish(ctx, orderID, driverID)
	if err != nil {
		return nil, err
	}
	s.refreshProjection(ctx, o)
	return o, nil
}

// OpenOrders lists claimable orders from the local projection, oldest first.
func (s *Service) OpenOrders(ctx context.Context) ([]models.OrderProjection, error) {
	return s.projections.ListByStatus(ctx, models.OrderStatusCreated)
}

// Orders lists this driver's orders from the local projection.
func (s *Service) Orders(ctx context.Context, driverID int64) ([]models.OrderProjection, error) {
	return s.projections.ListByDriver(ctx, driverID)
}

// History lists this driver's finished trips.
func (s *Service) History(ctx context.Context, driverID int64) ([]models.OrderProjection, error) {
	all, err := s.projections.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, p := range all {
		if p.Status == models.OrderStatusCompleted {
			out = append(out, p)
		}
	}
	return out, nil
}

// HandleFact applies order facts onto the local projection.
func (s *Service) HandleFact(ctx context.Context, f bus.Fact) error {
	switch f.Topic {
	case bus.TopicOrderAdd, bus.TopicOrderUpdate:
		var o models.Order
		if err := json.Unmarshal(f.Value, &o); err != nil {
			return fmt.Errorf("decode %s fact: %w", f.Topic, err)
		}
		p := o.Projection(models.Now())
		if f.Topic == bus.TopicOrderAdd {
			return s.projections.InsertIfAbsent(ctx, p)
		}
		return s.projections.Apply(ctx, p)
	default:
		return nil
	}
}

func (s *Service) gate(ctx context.Context, driverID int64) error {
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

// refreshProjection applies the transition result locally right away rather
// than waiting for the order-update fact to come back around.
func (s *Service) refreshProjection(ctx context.Context, o *models.Order) {
	if o == nil {
		return
	}
	if err := s.projections.Apply(ctx, o.Projection(models.Now())); err != nil {
		s.log.Warn("projection refresh failed", "order_id", o.ID, "error", err)
	}
}
