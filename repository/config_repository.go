package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rideHailing/models"
)

// configAppID is the single settings row; the table never grows past it.
const configAppID = 1

// ConfigRepository reads and updates application settings. PricePerKm is
// fetched fresh on every price computation rather than cached, so an admin
// change takes effect on the next order.
type ConfigRepository struct {
	db *sql.DB
}

func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// PricePerKm returns the current fare rate in rupiah per kilometer.
func (r *ConfigRepository) PricePerKm(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rate int64
	err := r.db.QueryRowContext(ctx, `SELECT price_per_km FROM config_apps WHERE id = ?`, configAppID).Scan(&rate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.New("config_apps row missing, database not seeded")
		}
		return 0, err
	}
	return rate, nil
}

// SetPricePerKm updates the fare rate. Rates must be positive.
func (r *ConfigRepository) SetPricePerKm(ctx context.Context, rate int64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: price per km must be positive, got %d", models.ErrInvalidAmount, rate)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE config_apps SET price_per_km = ? WHERE id = ?`, rate, configAppID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("config_apps row missing, database not seeded")
	}
	return nil
}
