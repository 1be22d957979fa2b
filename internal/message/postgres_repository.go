package message

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL message repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert persists a new pending message.
func (r *PostgresRepository) Insert(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, user_id, text, created_at, delivered)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`

	return r.pool.QueryRow(ctx, query,
		msg.ID,
		msg.UserID,
		msg.Text,
		msg.CreatedAt,
		msg.Delivered,
	).Scan(&msg.Seq)
}

// Drain removes and returns the user's undelivered messages, newest first.
// A transaction-scoped advisory lock on the user ID serializes drains for
// the same user; the DELETE ... RETURNING makes read and removal one step.
func (r *PostgresRepository) Drain(ctx context.Context, userID string) ([]*Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin drain: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, fmt.Errorf("lock user messages: %w", err)
	}

	query := `
		WITH drained AS (
			DELETE FROM messages
			WHERE user_id = $1 AND delivered = FALSE
			RETURNING seq, id, user_id, text, created_at, delivered
		)
		SELECT seq, id, user_id, text, created_at, delivered
		FROM drained
		ORDER BY created_at DESC, seq DESC
	`

	rows, err := tx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("drain messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.UserID,
			&msg.Text,
			&msg.CreatedAt,
			&msg.Delivered,
		); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit drain: %w", err)
	}

	return messages, nil
}

// Ping checks connectivity to the database.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
