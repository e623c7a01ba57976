package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rideHailing/models"
)

// DefaultTopUpCeiling is the largest single top-up accepted, in rupiah.
const DefaultTopUpCeiling int64 = 100_000_000

// CustomerRepository handles customer rows and the balance ledger.
// All balance mutations go through guarded UPDATE statements so the
// balance can never be observed mid-change.
type CustomerRepository struct {
	db           *sql.DB
	topUpCeiling int64
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db, topUpCeiling: DefaultTopUpCeiling}
}

// SetTopUpCeiling overrides the top-up upper bound. Intended for configuration wiring.
func (r *CustomerRepository) SetTopUpCeiling(ceiling int64) {
	if ceiling > 0 {
		r.topUpCeiling = ceiling
	}
}

// Create inserts a new customer and fills in its generated ID.
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	if c == nil {
		return errors.New("customer is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (username, password_hash, first_name, last_name, phone_number, email, balance, blocked) VALUES (?,?,?,?,?,?,?,?)`,
		c.Username, c.PasswordHash, c.FirstName, c.LastName, c.PhoneNumber, c.Email, c.Balance, boolToInt(c.Blocked))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// CreateTx is Create inside a caller-owned transaction, used when the
// insert must commit together with an outbox record.
func (r *CustomerRepository) CreateTx(ctx context.Context, tx *sql.Tx, c *models.Customer) error {
	if c == nil {
		return errors.New("customer is nil")
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO customers (username, password_hash, first_name, last_name, phone_number, email, balance, blocked) VALUES (?,?,?,?,?,?,?,?)`,
		c.Username, c.PasswordHash, c.FirstName, c.LastName, c.PhoneNumber, c.Email, c.Balance, boolToInt(c.Blocked))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, first_name, last_name, phone_number, email, balance, blocked, created_at FROM customers WHERE id = ?`, id)
	return scanCustomer(row)
}

func (r *CustomerRepository) GetByUsername(ctx context.Context, username string) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, first_name, last_name, phone_number, email, balance, blocked, created_at FROM customers WHERE username = ?`, username)
	return scanCustomer(row)
}

func (r *CustomerRepository) List(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, password_hash, first_name, last_name, phone_number, email, balance, blocked, created_at FROM customers ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		var c models.Customer
		var blocked int
		if err := rows.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.FirstName, &c.LastName, &c.PhoneNumber, &c.Email, &c.Balance, &blocked, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Blocked = blocked != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetBlocked toggles the blocked flag. A blocked customer cannot top up,
// be debited, or create orders.
func (r *CustomerRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE customers SET blocked = ? WHERE id = ?`, boolToInt(blocked), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCustomerNotFound
	}
	return nil
}

// SetBlockedTx is SetBlocked inside a caller-owned transaction, used when
// the flag change must commit together with an outbox record.
func (r *CustomerRepository) SetBlockedTx(ctx context.Context, tx *sql.Tx, id int64, blocked bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE customers SET blocked = ? WHERE id = ?`, boolToInt(blocked), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCustomerNotFound
	}
	return nil
}

// Balance returns the current balance in rupiah.
func (r *CustomerRepository) Balance(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var balance int64
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM customers WHERE id = ?`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrCustomerNotFound
		}
		return 0, err
	}
	return balance, nil
}

// TopUp credits the customer's balance and returns the new balance.
// Amounts must be positive and at most the configured ceiling; the
// whole request is rejected otherwise, nothing is partially applied.
func (r *CustomerRepository) TopUp(ctx context.Context, id int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: top-up amount must be positive, got %d", models.ErrInvalidAmount, amount)
	}
	if amount > r.topUpCeiling {
		return 0, fmt.Errorf("%w: top-up amount %d exceeds ceiling %d", models.ErrInvalidAmount, amount, r.topUpCeiling)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE customers SET balance = balance + ? WHERE id = ? AND blocked = 0`, amount, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var blocked int
		err := r.db.QueryRowContext(ctx, `SELECT blocked FROM customers WHERE id = ?`, id).Scan(&blocked)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrCustomerNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, models.ErrCustomerBlocked
	}
	return r.Balance(ctx, id)
}

// DebitIfSufficient is DebitIfSufficientTx on an implicit single-statement transaction.
func (r *CustomerRepository) DebitIfSufficient(ctx context.Context, id int64, amount int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	balance, err := r.DebitIfSufficientTx(ctx, tx, id, amount)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// DebitIfSufficientTx atomically debits amount if the balance covers it,
// returning the remaining balance. The guard and the subtraction are one
// UPDATE, so two concurrent debits can never overdraw the account. On a
// refused debit the reason is diagnosed with a follow-up read inside the
// same transaction.
func (r *CustomerRepository) DebitIfSufficientTx(ctx context.Context, tx *sql.Tx, id int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive, got %d", models.ErrInvalidAmount, amount)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE customers SET balance = balance - ? WHERE id = ? AND blocked = 0 AND balance >= ?`, amount, id, amount)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		var balance int64
		var blocked int
		err := tx.QueryRowContext(ctx, `SELECT balance, blocked FROM customers WHERE id = ?`, id).Scan(&balance, &blocked)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrCustomerNotFound
		}
		if err != nil {
			return 0, err
		}
		if blocked != 0 {
			return 0, models.ErrCustomerBlocked
		}
		return 0, &models.InsufficientFundsError{Deficit: amount - balance}
	}
	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM customers WHERE id = ?`, id).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit adds amount back to the balance. Used as the compensating entry
// when a debited order cannot be recorded; it ignores the blocked flag so
// a refund still lands.
func (r *CustomerRepository) Credit(ctx context.Context, id int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive, got %d", models.ErrInvalidAmount, amount)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE customers SET balance = balance + ? WHERE id = ?`, amount, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, models.ErrCustomerNotFound
	}
	return r.Balance(ctx, id)
}

// Upsert applies a customer replicated from a fact. The consuming service
// keeps only the identity fields it needs; an existing row is refreshed in
// place so replays are harmless.
func (r *CustomerRepository) Upsert(ctx context.Context, c *models.Customer) error {
	if c == nil {
		return errors.New("customer is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
INSERT INTO customers (id, username, password_hash, first_name, last_name, phone_number, email, balance, blocked)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
    username = excluded.username,
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    phone_number = excluded.phone_number,
    email = excluded.email,
    blocked = excluded.blocked`,
		c.ID, c.Username, c.PasswordHash, c.FirstName, c.LastName, c.PhoneNumber, c.Email, c.Balance, boolToInt(c.Blocked))
	return err
}

func scanCustomer(row *sql.Row) (*models.Customer, error) {
	var c models.Customer
	var blocked int
	err := row.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.FirstName, &c.LastName, &c.PhoneNumber, &c.Email, &c.Balance, &blocked, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Blocked = blocked != 0
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
