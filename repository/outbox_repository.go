package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"rideHailing/internal/bus"
)

// OutboxRepository persists facts in the same transaction as the state
// change that produced them. A background dispatcher drains unpublished
// rows; a fact row is marked published only after the broker accepted it,
// so the worst case is a duplicate delivery, never a lost one.
type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// AddTx stages a fact inside the caller's transaction.
func (r *OutboxRepository) AddTx(ctx context.Context, tx *sql.Tx, f bus.Fact) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (id, topic, key, value, created_at) VALUES (?,?,?,?,?)`,
		f.ID, f.Topic, f.Key, string(f.Value), nowUTC())
	return err
}

// Add stages a fact outside any larger transaction.
func (r *OutboxRepository) Add(ctx context.Context, f bus.Fact) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox (id, topic, key, value, created_at) VALUES (?,?,?,?,?)`,
		f.ID, f.Topic, f.Key, string(f.Value), nowUTC())
	return err
}

// Pending returns up to limit unpublished facts in staging order. The
// autoincrement seq, not the wall clock, decides order so two facts staged
// in the same second still drain in the order they were written.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]bus.Fact, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, topic, key, value FROM outbox WHERE published_at IS NULL ORDER BY seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bus.Fact
	for rows.Next() {
		var f bus.Fact
		var value string
		if err := rows.Scan(&f.ID, &f.Topic, &f.Key, &value); err != nil {
			return nil, err
		}
		f.Value = json.RawMessage(value)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPublished stamps the fact as handed to the broker.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = ? WHERE id = ? AND published_at IS NULL`, nowUTC(), id)
	return err
}

// PendingCount reports the unpublished backlog size.
func (r *OutboxRepository) PendingCount(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&n)
	return n, err
}
