// Package userservice owns customers: registration, the balance ledger and
// order creation. It holds the canonical customer store; orders it creates
// become canonical only once the Order service consumes the order-add fact.
package userservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rideHailing/internal/bus"
	"rideHailing/internal/cache"
	"rideHailing/internal/geo"
	"rideHailing/internal/observability"
	"rideHailing/internal/pricing"
	"rideHailing/models"
	"rideHailing/repository"
)

// ErrInvalidCredentials deliberately hides whether the username or the
// password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// OrderReader is the canonical order listing port, backed by the Order
// service. A nil reader (or a failing one) makes Orders fall back to the
// local projection.
type OrderReader interface {
	ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
}

type Service struct {
	db          *sql.DB
	customers   *repository.CustomerRepository
	projections *repository.ProjectionRepository
	outbox      *repository.OutboxRepository
	configs     *repository.ConfigRepository
	cache       cache.Cache
	orders      OrderReader
	log         *slog.Logger
	cacheTTL    time.Duration
}

type Options struct {
	// Orders is the canonical order reader; nil means projection-only reads.
	Orders OrderReader
	// CacheTTL bounds how stale a cached order listing may be.
	CacheTTL time.Duration
	// TopUpCeiling overrides the default top-up upper bound when positive.
	TopUpCeiling int64
}

func New(db *sql.DB, c cache.Cache, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if c == nil {
		c = cache.NewMemoryCache("user-service")
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	customers := repository.NewCustomerRepository(db)
	if opts.TopUpCeiling > 0 {
		customers.SetTopUpCeiling(opts.TopUpCeiling)
	}
	return &Service{
		db:          db,
		customers:   customers,
		projections: repository.NewProjectionRepository(db),
		outbox:      repository.NewOutboxRepository(db),
		configs:     repository.NewConfigRepository(db),
		cache:       c,
		orders:      opts.Orders,
		log:         log,
		cacheTTL:    opts.CacheTTL,
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

// Register creates a customer and stages the user-add fact in the same
// transaction, so a customer either exists with its announcement pending or
// not at all.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*models.Customer, error) {
	if p.Username == "" {
		return nil, errors.New("username is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	c := &models.Customer{
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
	if err := s.customers.CreateTx(ctx, tx, c); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	fact, err := bus.NewFact(bus.TopicUserAdd, "user-create", c)
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

	s.log.Info("customer registered", "customer_id", c.ID, "username", c.Username)
	return c, nil
}

// Authenticate verifies a username/password pair against the stored hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Customer, error) {
	c, err := s.customers.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}

// Profile returns the customer record.
func (s *Service) Profile(ctx context.Context, customerID int64) (*models.Customer, error) {
	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, models.ErrCustomerNotFound
	}
	return c, nil
}

// TopUp credits the balance and returns the new balance.
func (s *Service) TopUp(ctx context.Context, customerID, amount int64) (int64, error) {
	balance, err := s.customers.TopUp(ctx, customerID, amount)
	if err != nil {
		return 0, err
	}
	s.log.Info("balance topped up", "customer_id", customerID, "amount", amount, "balance", balance)
	return balance, nil
}

// SetBlocked toggles the customer's blocked flag and stages the user-update
// fact in the same transaction.
func (s *Service) SetBlocked(ctx context.Context, customerID int64, blocked bool) error {
	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return err
	}
	if c == nil {
		return models.ErrCustomerNotFound
	}
	c.Blocked = blocked

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.customers.SetBlockedTx(ctx, tx, customerID, blocked); err != nil {
		_ = tx.Rollback()
		return err
	}
	fact, err := bus.NewFact(bus.TopicUserUpdate, "user-update", c)
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

// List pages customers by id, for the admin directory.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	return s.customers.List(ctx, limit, offset)
}

type CreateOrderParams struct {
	CustomerID    int64
	UserLatitude  float64
	UserLongitude float64
	DestLatitude  float64
	DestLongitude float64
}

// CreateOrder runs the whole creation flow: distance gate, price, then one
// transaction holding the debit, the local projection row and the order-add
// outbox fact. Nothing is debited for a rejected order, and a committed
// debit always has its fact staged.
func (s *Service) CreateOrder(ctx context.Context, p CreateOrderParams) (*models.Order, error) {
	if !geo.ValidateCoordinates(p.UserLatitude, p.UserLongitude) ||
		!geo.ValidateCoordinates(p.DestLatitude, p.DestLongitude) {
		return nil, models.ErrInvalidCoordinates
	}
	rawKm := geo.HaversineKm(p.UserLatitude, p.UserLongitude, p.DestLatitude, p.DestLongitude)
	if !geo.WithinTripLimit(rawKm) {
		return nil, fmt.Errorf("%w: %.1f km over %.0f km", models.ErrDistanceExceeded, rawKm, geo.MaxTripKm)
	}
	tenths := geo.RoundKmToTenths(rawKm)

	rate, err := s.configs.PricePerKm(ctx)
	if err != nil {
		return nil, err
	}
	price := pricing.Fare(tenths, rate)

	now := models.Now()
	o := &models.Order{
		ID:               uuid.NewString(),
		CustomerID:       p.CustomerID,
		Price:            price,
		DistanceTenthsKm: tenths,
		UserLatitude:     p.UserLatitude,
		UserLongitude:    p.UserLongitude,
		Status:           models.OrderStatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if price > 0 {
		if _, err := s.customers.DebitIfSufficientTx(ctx, tx, p.CustomerID, price); err != nil {
			_ = tx.Rollback()
			var insufficient *models.InsufficientFundsError
			if errors.As(err, &insufficient) {
				observability.DebitShortfalls.Inc()
				return nil, fmt.Errorf("top up %s first: %w", pricing.FormatRupiah(insufficient.Deficit), err)
			}
			return nil, err
		}
	} else {
		// zero-price trips still require an existing, unblocked customer
		c, err := s.customers.GetByID(ctx, p.CustomerID)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if c == nil {
			_ = tx.Rollback()
			return nil, models.ErrCustomerNotFound
		}
		if c.Blocked {
			_ = tx.Rollback()
			return nil, models.ErrCustomerBlocked
		}
	}
	if err := s.projections.ApplyTx(ctx, tx, o.Projection(now)); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	fact, err := bus.NewFact(bus.TopicOrderAdd, "order-create", o)
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

	observability.OrdersCreatedTotal.Inc()
	s.log.Info("order created",
		"order_id", o.ID, "customer_id", o.CustomerID,
		"distance_tenths_km", o.DistanceTenthsKm, "price", o.Price)
	return o, nil
}

// Orders lists the customer's orders. The read is cache first, then the
// canonical Order service, then the local projection as a last resort; a
// canonical read refreshes both the cache and the projection rows. Cached
// and projected listings may trail the canonical store by up to the TTL.
func (s *Service) Orders(ctx context.Context, customerID int64) ([]models.OrderProjection, error) {
	key := s.cache.GenerateKey("orders", fmt.Sprintf("%d", customerID))
	if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
		var out []models.OrderProjection
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out, nil
		}
	}

	if s.orders != nil {
		canonical, err := s.orders.ListByCustomer(ctx, customerID)
		if err == nil {
			now := models.Now()
			out := make([]models.OrderProjection, 0, len(canonical))
			for i := range canonical {
				p := canonical[i].Projection(now)
				if err := s.projections.Apply(ctx, p); err != nil {
					s.log.Warn("projection refresh failed", "order_id", p.OrderID, "error", err)
				}
				out = append(out, *p)
			}
			if raw, err := json.Marshal(out); err == nil {
				if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
					s.log.Warn("cache set failed", "key", key, "error", err)
				}
			}
			return out, nil
		}
		s.log.Warn("canonical order read failed, serving local projection",
			"customer_id", customerID, "error", err)
	}

	return s.projections.ListByCustomer(ctx, customerID)
}

// HandleFact applies order facts onto the local projection. order-add never
// overwrites a newer local state; order-update always wins.
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
		// not ours; committing an unhandled topic is harmless
		return nil
	}
}
