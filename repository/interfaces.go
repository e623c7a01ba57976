package repository

import (
	"context"
	"database/sql"

	"rideHailing/internal/bus"
	"rideHailing/models"
)

// CustomerRepositoryI defines operations on Customer entities and their balances.
type CustomerRepositoryI interface {
	Create(ctx context.Context, c *models.Customer) error
	CreateTx(ctx context.Context, tx *sql.Tx, c *models.Customer) error
	GetByID(ctx context.Context, id int64) (*models.Customer, error)
	GetByUsername(ctx context.Context, username string) (*models.Customer, error)
	List(ctx context.Context, limit, offset int) ([]models.Customer, error)
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	SetBlockedTx(ctx context.Context, tx *sql.Tx, id int64, blocked bool) error
	Balance(ctx context.Context, id int64) (int64, error)
	TopUp(ctx context.Context, id int64, amount int64) (int64, error)
	DebitIfSufficient(ctx context.Context, id int64, amount int64) (int64, error)
	DebitIfSufficientTx(ctx context.Context, tx *sql.Tx, id int64, amount int64) (int64, error)
	Credit(ctx context.Context, id int64, amount int64) (int64, error)
	Upsert(ctx context.Context, c *models.Customer) error
}

// DriverRepositoryI defines operations on Driver entities.
type DriverRepositoryI interface {
	Create(ctx context.Context, d *models.Driver) error
	GetByID(ctx context.Context, id int64) (*models.Driver, error)
	GetByUsername(ctx context.Context, username string) (*models.Driver, error)
	List(ctx context.Context, limit, offset int) ([]models.Driver, error)
	UpdatePosition(ctx context.Context, id int64, latitude, longitude float64) error
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	SetBlockedTx(ctx context.Context, tx *sql.Tx, id int64, blocked bool) error
	Credit(ctx context.Context, id int64, amount int64) error
	Upsert(ctx context.Context, d *models.Driver) error
}

// OrderRepositoryI defines operations on the canonical order store.
type OrderRepositoryI interface {
	CreateIfAbsent(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	AcceptTx(ctx context.Context, tx *sql.Tx, orderID string, driverID int64) (*models.Order, error)
	MarkPickedUpTx(ctx context.Context, tx *sql.Tx, orderID string, driverID int64) (*models.Order, error)
	MarkCompletedTx(ctx context.Context, tx *sql.Tx, orderID string, driverID int64) (*models.Order, error)
	CancelTx(ctx context.Context, tx *sql.Tx, orderID string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
	ListByDriver(ctx context.Context, driverID int64) ([]models.Order, error)
	ListOpen(ctx context.Context, limit int) ([]models.Order, error)
	ListAdmin(ctx context.Context, p ListOrdersAdminParams) ([]models.Order, error)
}

// ProjectionRepositoryI defines operations on the local order read model.
type ProjectionRepositoryI interface {
	InsertIfAbsent(ctx context.Context, p *models.OrderProjection) error
	Apply(ctx context.Context, p *models.OrderProjection) error
	ApplyTx(ctx context.Context, tx *sql.Tx, p *models.OrderProjection) error
	Get(ctx context.Context, orderID string) (*models.OrderProjection, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]models.OrderProjection, error)
	ListByDriver(ctx context.Context, driverID int64) ([]models.OrderProjection, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.OrderProjection, error)
}

// OutboxRepositoryI defines operations on the fact outbox.
type OutboxRepositoryI interface {
	AddTx(ctx context.Context, tx *sql.Tx, f bus.Fact) error
	Add(ctx context.Context, f bus.Fact) error
	Pending(ctx context.Context, limit int) ([]bus.Fact, error)
	MarkPublished(ctx context.Context, id string) error
	PendingCount(ctx context.Context) (int, error)
}
