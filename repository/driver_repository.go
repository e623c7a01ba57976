package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rideHailing/models"
)

type DriverRepository struct {
	db *sql.DB
}

func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// Create inserts a new driver and fills in its generated ID.
func (r *DriverRepository) Create(ctx context.Context, d *models.Driver) error {
	if d == nil {
		return errors.New("driver is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO drivers (username, password_hash, first_name, last_name, phone_number, email, latitude, longitude, balance, blocked) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.Username, d.PasswordHash, d.FirstName, d.LastName, d.PhoneNumber, d.Email, d.Latitude, d.Longitude, d.Balance, boolToInt(d.Blocked))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// CreateTx is Create inside a caller-owned transaction.
func (r *DriverRepository) CreateTx(ctx context.Context, tx *sql.Tx, d *models.Driver) error {
	if d == nil {
		return errors.New("driver is nil")
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO drivers (username, password_hash, first_name, last_name, phone_number, email, latitude, longitude, balance, blocked) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.Username, d.PasswordHash, d.FirstName, d.LastName, d.PhoneNumber, d.Email, d.Latitude, d.Longitude, d.Balance, boolToInt(d.Blocked))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

func (r *DriverRepository) GetByID(ctx context.Context, id int64) (*models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, first_name, last_name, phone_number, email, latitude, longitude, balance, blocked, created_at FROM drivers WHERE id = ?`, id)
	return scanDriver(row)
}

func (r *DriverRepository) GetByUsername(ctx context.Context, username string) (*models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, first_name, last_name, phone_number, email, latitude, longitude, balance, blocked, created_at FROM drivers WHERE username = ?`, username)
	return scanDriver(row)
}

func (r *DriverRepository) List(ctx context.Context, limit, offset int) ([]models.Driver, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, password_hash, first_name, last_name, phone_number, email, latitude, longitude, balance, blocked, created_at FROM drivers ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Driver
	for rows.Next() {
		var d models.Driver
		var blocked int
		if err := rows.Scan(&d.ID, &d.Username, &d.PasswordHash, &d.FirstName, &d.LastName, &d.PhoneNumber, &d.Email, &d.Latitude, &d.Longitude, &d.Balance, &blocked, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Blocked = blocked != 0
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePosition records the driver's last reported position.
func (r *DriverRepository) UpdatePosition(ctx context.Context, id int64, latitude, longitude float64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET latitude = ?, longitude = ? WHERE id = ?`, latitude, longitude, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrDriverNotFound
	}
	return nil
}

// SetBlocked toggles the blocked flag. A blocked driver cannot accept or
// progress orders.
func (r *DriverRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET blocked = ? WHERE id = ?`, boolToInt(blocked), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrDriverNotFound
	}
	return nil
}

// SetBlockedTx is SetBlocked inside a caller-owned transaction.
func (r *DriverRepository) SetBlockedTx(ctx context.Context, tx *sql.Tx, id int64, blocked bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE drivers SET blocked = ? WHERE id = ?`, boolToInt(blocked), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrDriverNotFound
	}
	return nil
}

// Credit adds amount to the driver's earnings balance.
func (r *DriverRepository) Credit(ctx context.Context, id int64, amount int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET balance = balance + ? WHERE id = ?`, amount, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrDriverNotFound
	}
	return nil
}

// Upsert applies a driver replicated from a fact. Position is not
// overwritten on replay because the consuming service may hold a fresher
// report than the fact carries.
func (r *DriverRepository) Upsert(ctx context.Context, d *models.Driver) error {
	if d == nil {
		return errors.New("driver is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
INSERT INTO drivers (id, username, password_hash, first_name, last_name, phone_number, email, latitude, longitude, balance, blocked)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
    username = excluded.username,
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    phone_number = excluded.phone_number,
    email = excluded.email,
    blocked = excluded.blocked`,
		d.ID, d.Username, d.PasswordHash, d.FirstName, d.LastName, d.PhoneNumber, d.Email, d.Latitude, d.Longitude, d.Balance, boolToInt(d.Blocked))
	return err
}

func scanDriver(row *sql.Row) (*models.Driver, error) {
	var d models.Driver
	var blocked int
	err := row.Scan(&d.ID, &d.Username, &d.PasswordHash, &d.FirstName, &d.LastName, &d.PhoneNumber, &d.Email, &d.Latitude, &d.Longitude, &d.Balance, &blocked, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d.Blocked = blocked != 0
	return &d, nil
}
