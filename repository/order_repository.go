package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"rideHailing/models"
)

func nowUTC() string {
	return models.Now()
}

// OrderRepository is the canonical store for orders. Every state change is
// a guarded UPDATE whose WHERE clause encodes the allowed transition, so a
// lost race surfaces as zero affected rows instead of a clobbered write.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateIfAbsent records an order keyed by its carried ID. A duplicate
// delivery of the same order fact hits the primary key and is dropped,
// which is what makes applying order facts idempotent.
func (r *OrderRepository) CreateIfAbsent(ctx context.Context, o *models.Order) error {
	if o == nil {
		return errors.New("order is nil")
	}
	if o.Status == "" {
		o.Status = models.OrderStatusCreated
	}
	if o.CreatedAt == "" {
		o.CreatedAt = nowUTC()
	}
	if o.UpdatedAt == "" {
		o.UpdatedAt = o.CreatedAt
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (id, customer_id, driver_id, price, distance_tenths_km, user_latitude, user_longitude, status, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO NOTHING`,
		o.ID, o.CustomerID, o.DriverID, o.Price, o.DistanceTenthsKm, o.UserLatitude, o.UserLongitude, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, customer_id, driver_id, price, distance_tenths_km, user_latitude, user_longitude, status, created_at, updated_at FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

// AcceptTx assigns the order to a driver, first claim wins. The compare
// and the assignment are one UPDATE; a second driver's claim affects zero
// rows and is reported as models.ErrOrderAlreadyAccepted.
func (r *OrderRepository) AcceptTx(ctx context.Context, tx *sql.Tx, orderID string, driverID int64) (*models.Order, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET driver_id = ?, status = ?, updated_at = ? WHERE id = ? AND status = ? AND driver_id IS NULL`,
		driverID, string(models.OrderStatusAccepted), nowUTC(), orderID, string(models.OrderStatusCreated))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, r.diagnoseAccept(ctx, tx, orderID)
	}
	return getOrderTx(ctx, tx, orderID)
}

func (r *OrderRepository) diagnoseAccept(ctx context.Context, tx *sql.Tx, orderID string) error {
	var status string
	var driverID sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT status, driver_id FROM orders WHERE id = ?`, orderID).Scan(&status, &driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if models.OrderStatus(status) == models.OrderStatusAccepted || driverID.Valid {
		return models.ErrOrderAlreadyAccepted
	}
	return models.ErrIllegalTransition
}

// MarkPickedUpTx advances accepted -> picked_up for the assigned driver only.
func (r *OrderRepository) MarkPickedUpTx(ctx context.Context, tx *sql.Tx, orderID string, driverID int64) (*models.Order, error) {
	return r.advanceTx(ctx, tx, orderID, driverID, models.OrderStatusAccepted, models.OrderStatusPickedUp)
}

// MarkCompletedTx advances picked_up -> completed for the assigned driver only.
func (r *OrderRepository) MarkCompletedTx(ctx context.Context, tx *sql.Tx, orderID string, driverID int64) (*models.Order, error) {
	return r.advanceTx(ctx, tx, orderID, driverID, models.OrderStatusPickedUp, models.OrderStatusCompleted)
}

func (r *OrderRepository) advanceTx(ctx context.Context, tx *sql.Tx, orderID string, driverID int64, from, to models.OrderStatus) (*models.Order, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ? AND driver_id = ?`,
		string(to), nowUTC(), orderID, string(from), driverID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, r.diagnoseAdvance(ctx, tx, orderID, driverID, from)
	}
	return getOrderTx(ctx, tx, orderID)
}

func (r *OrderRepository) diagnoseAdvance(ctx context.Context, tx *sql.Tx, orderID string, driverID int64, from models.OrderStatus) error {
	var status string
	var assigned sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT status, driver_id FROM orders WHERE id = ?`, orderID).Scan(&status, &assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if models.OrderStatus(status) == from && (!assigned.Valid || assigned.Int64 != driverID) {
		return models.ErrNotAssignedDriver
	}
	return models.ErrIllegalTransition
}

// CancelTx cancels an order that no driver has claimed yet.
func (r *OrderRepository) CancelTx(ctx context.Context, tx *sql.Tx, orderID string) (*models.Order, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ? AND driver_id IS NULL`,
		string(models.OrderStatusCancelled), nowUTC(), orderID, string(models.OrderStatusCreated))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, models.ErrIllegalTransition
	}
	return getOrderTx(ctx, tx, orderID)
}

// ListByCustomer returns a customer's orders newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, driver_id, price, distance_tenths_km, user_latitude, user_longitude, status, created_at, updated_at FROM orders WHERE customer_id = ? ORDER BY created_at DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// ListByDriver returns a driver's orders newest first.
func (r *OrderRepository) ListByDriver(ctx context.Context, driverID int64) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, driver_id, price, distance_tenths_km, user_latitude, user_longitude, status, created_at, updated_at FROM orders WHERE driver_id = ? ORDER BY created_at DESC, id DESC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// ListOpen returns claimable orders oldest first, so waiting customers are
// served in placement order.
func (r *OrderRepository) ListOpen(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, driver_id, price, distance_tenths_km, user_latitude, user_longitude, status, created_at, updated_at FROM orders WHERE status = ? AND driver_id IS NULL ORDER BY created_at ASC, id ASC LIMIT ?`,
		string(models.OrderStatusCreated), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// ListOrdersAdminParams represents filters and pagination for ListAdmin.
type ListOrdersAdminParams struct {
	Statuses    []models.OrderStatus
	CustomerID  *int64
	DriverID    *int64
	CreatedFrom *string // optional inclusive lower bound on created_at
	CreatedTo   *string // optional inclusive upper bound on created_at
	PageSize    int
	AfterAt     string // keyset cursor: created_at of the last seen row
	AfterID     string // keyset cursor: id of the last seen row
}

// ListAdmin returns orders matching filters ordered by created_at desc,
// id desc with keyset pagination.
func (r *OrderRepository) ListAdmin(ctx context.Context, p ListOrdersAdminParams) ([]models.Order, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any

	if len(p.Statuses) > 0 {
		placeholders := make([]string, len(p.Statuses))
		for i, s := range p.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if p.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *p.CustomerID)
	}
	if p.DriverID != nil {
		where = append(where, "driver_id = ?")
		args = append(args, *p.DriverID)
	}
	if p.CreatedFrom != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *p.CreatedFrom)
	}
	if p.CreatedTo != nil {
		where = append(where, "created_at <= ?")
		args = append(args, *p.CreatedTo)
	}
	if p.AfterAt != "" && p.AfterID != "" {
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, p.AfterAt, p.AfterAt, p.AfterID)
	}

	query := `SELECT id, customer_id, driver_id, price, distance_tenths_km, user_latitude, user_longitude, status, created_at, updated_at FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, p.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

func getOrderTx(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, customer_id, driver_id, price, distance_tenths_km, user_latitude, user_longitude, status, created_at, updated_at FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderFrom(s rowScanner) (*models.Order, error) {
	var o models.Order
	var driverID sql.NullInt64
	var status string
	if err := s.Scan(&o.ID, &o.CustomerID, &driverID, &o.Price, &o.DistanceTenthsKm, &o.UserLatitude, &o.UserLongitude, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if driverID.Valid {
		v := driverID.Int64
		o.DriverID = &v
	}
	return &o, nil
}

func scanOrder(row *sql.Row) (*models.Order, error) {
	o, err := scanOrderFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

func scanOrderRows(rows *sql.Rows) ([]models.Order, error) {
	var out []models.Order
	for rows.Next() {
		o, err := scanOrderFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
