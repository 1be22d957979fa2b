package device

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteRepository is a SQLite implementation of Repository for
// single-node deployments. Timestamps are stored as Unix nanoseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves the device registered for a user.
func (r *SQLiteRepository) Get(ctx context.Context, userID string) (*Device, error) {
	return r.get(ctx, r.db, userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) get(ctx context.Context, q queryRower, userID string) (*Device, error) {
	var (
		device             Device
		createdAt, updated int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT user_id, contact_address, push_token, created_at, updated_at FROM devices WHERE user_id = ?`,
		userID,
	).Scan(&device.UserID, &device.ContactAddress, &device.PushToken, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	device.CreatedAt = time.Unix(0, createdAt).UTC()
	device.UpdatedAt = time.Unix(0, updated).UTC()
	return &device, nil
}

// Upsert creates or merges the record for a user inside one transaction.
func (r *SQLiteRepository) Upsert(ctx context.Context, params UpsertParams) (*Device, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := params.Now.UnixNano()
	_, err = r.get(ctx, tx, params.UserID)
	created := errors.Is(err, ErrDeviceNotFound)
	if err != nil && !created {
		return nil, false, err
	}

	if created {
		token := ""
		if params.PushToken != nil {
			token = *params.PushToken
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO devices (user_id, contact_address, push_token, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			params.UserID, params.ContactAddress, token, now, now,
		)
	} else if params.PushToken != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE devices SET contact_address = ?, push_token = ?, updated_at = ? WHERE user_id = ?`,
			params.ContactAddress, *params.PushToken, now, params.UserID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE devices SET contact_address = ?, updated_at = ? WHERE user_id = ?`,
			params.ContactAddress, now, params.UserID,
		)
	}
	if err != nil {
		return nil, false, err
	}

	device, err := r.get(ctx, tx, params.UserID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return device, created, nil
}

// Ensure SQLiteRepository implements Repository interface.
var _ Repository = (*SQLiteRepository)(nil)
