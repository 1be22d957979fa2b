package message

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteRepository is a SQLite implementation of Repository. The database
// handle must be limited to one open connection (database.OpenSQLite does
// this), which makes every drain transaction exclusive.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite message repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert persists a new pending message.
func (r *SQLiteRepository) Insert(ctx context.Context, msg *Message) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, text, created_at, delivered) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.Text, msg.CreatedAt.UnixNano(), msg.Delivered,
	)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	msg.Seq = seq
	return nil
}

// Drain removes and returns the user's undelivered messages, newest first.
func (r *SQLiteRepository) Drain(ctx context.Context, userID string) ([]*Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin drain: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.QueryContext(ctx, `
		SELECT seq, id, user_id, text, created_at, delivered
		FROM messages
		WHERE user_id = ? AND delivered = 0
		ORDER BY created_at DESC, seq DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("drain messages: %w", err)
	}

	messages := make([]*Message, 0)
	var maxSeq int64
	for rows.Next() {
		var (
			msg       Message
			createdAt int64
		)
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.UserID, &msg.Text, &createdAt, &msg.Delivered); err != nil {
			_ = rows.Close()
			return nil, err
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		if msg.Seq > maxSeq {
			maxSeq = msg.Seq
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(messages) == 0 {
		return messages, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE user_id = ? AND delivered = 0 AND seq <= ?`,
		userID, maxSeq,
	); err != nil {
		return nil, fmt.Errorf("delete drained messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drain: %w", err)
	}

	return messages, nil
}

// Ping checks connectivity to the database.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Ensure SQLiteRepository implements Repository interface.
var _ Repository = (*SQLiteRepository)(nil)
