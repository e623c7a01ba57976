package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rideHailing/models"
)

// ProjectionRepository stores the local read model of orders carried by
// non-owning services. Rows are advisory; the canonical orders table in
// the Order service always wins on disagreement.
type ProjectionRepository struct {
	db *sql.DB
}

func NewProjectionRepository(db *sql.DB) *ProjectionRepository {
	return &ProjectionRepository{db: db}
}

// InsertIfAbsent applies an order-creation fact. Creation facts never
// overwrite an existing row: an update fact for the same order may have
// arrived first on another topic, and its newer status must survive the
// replayed creation.
func (r *ProjectionRepository) InsertIfAbsent(ctx context.Context, p *models.OrderProjection) error {
	if p == nil {
		return errors.New("projection is nil")
	}
	if p.RefreshedAt == "" {
		p.RefreshedAt = nowUTC()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
INSERT INTO order_projections (order_id, customer_id, driver_id, price, distance_tenths_km, status, refreshed_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(order_id) DO NOTHING`,
		p.OrderID, p.CustomerID, p.DriverID, p.Price, p.DistanceTenthsKm, string(p.Status), p.RefreshedAt)
	return err
}

// Apply upserts the row from an order-update fact or a read-through refresh.
func (r *ProjectionRepository) Apply(ctx context.Context, p *models.OrderProjection) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.applyContext(ctx, r.db, p)
}

// ApplyTx is Apply inside a caller-owned transaction.
func (r *ProjectionRepository) ApplyTx(ctx context.Context, tx *sql.Tx, p *models.OrderProjection) error {
	return r.applyContext(ctx, tx, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *ProjectionRepository) applyContext(ctx context.Context, ex execer, p *models.OrderProjection) error {
	if p == nil {
		return errors.New("projection is nil")
	}
	if p.RefreshedAt == "" {
		p.RefreshedAt = nowUTC()
	}
	_, err := ex.ExecContext(ctx, `
INSERT INTO order_projections (order_id, customer_id, driver_id, price, distance_tenths_km, status, refreshed_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(order_id) DO UPDATE SET
    driver_id = excluded.driver_id,
    status = excluded.status,
    refreshed_at = excluded.refreshed_at`,
		p.OrderID, p.CustomerID, p.DriverID, p.Price, p.DistanceTenthsKm, string(p.Status), p.RefreshedAt)
	return err
}

func (r *ProjectionRepository) Get(ctx context.Context, orderID string) (*models.OrderProjection, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p models.OrderProjection
	var driverID sql.NullInt64
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT order_id, customer_id, driver_id, price, distance_tenths_km, status, refreshed_at FROM order_projections WHERE order_id = ?`, orderID).
		Scan(&p.OrderID, &p.CustomerID, &driverID, &p.Price, &p.DistanceTenthsKm, &status, &p.RefreshedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Status = models.OrderStatus(status)
	if driverID.Valid {
		v := driverID.Int64
		p.DriverID = &v
	}
	return &p, nil
}

func (r *ProjectionRepository) ListByCustomer(ctx context.Context, customerID int64) ([]models.OrderProjection, error) {
	return r.list(ctx, `customer_id = ?`, customerID)
}

func (r *ProjectionRepository) ListByDriver(ctx context.Context, driverID int64) ([]models.OrderProjection, error) {
	return r.list(ctx, `driver_id = ?`, driverID)
}

// ListByStatus returns projections in the given status oldest first, used
// by drivers browsing claimable orders.
func (r *ProjectionRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.OrderProjection, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, customer_id, driver_id, price, distance_tenths_km, status, refreshed_at FROM order_projections WHERE status = ? ORDER BY refreshed_at ASC, order_id ASC`,
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjectionRows(rows)
}

func (r *ProjectionRepository) list(ctx context.Context, where string, arg any) ([]models.OrderProjection, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, customer_id, driver_id, price, distance_tenths_km, status, refreshed_at FROM order_projections WHERE `+where+` ORDER BY refreshed_at DESC, order_id DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjectionRows(rows)
}

func scanProjectionRows(rows *sql.Rows) ([]models.OrderProjection, error) {
	var out []models.OrderProjection
	for rows.Next() {
		var p models.OrderProjection
		var driverID sql.NullInt64
		var status string
		if err := rows.Scan(&p.OrderID, &p.CustomerID, &driverID, &p.Price, &p.DistanceTenthsKm, &status, &p.RefreshedAt); err != nil {
			return nil, err
		}
		p.Status = models.OrderStatus(status)
		if driverID.Valid {
			v := driverID.Int64
			p.DriverID = &v
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
