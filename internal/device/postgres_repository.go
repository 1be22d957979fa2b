package device

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves the device registered for a user.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Device, error) {
	query := `
		SELECT user_id, contact_address, push_token, created_at, updated_at
		FROM devices
		WHERE user_id = $1
	`

	var device Device
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&device.UserID,
		&device.ContactAddress,
		&device.PushToken,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return &device, nil
}

// Upsert creates or merges the record for a user.
// A NULL token parameter leaves the stored token untouched.
func (r *PostgresRepository) Upsert(ctx context.Context, params UpsertParams) (*Device, bool, error) {
	query := `
		INSERT INTO devices (user_id, contact_address, push_token, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3::text, ''), $4, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			contact_address = EXCLUDED.contact_address,
			push_token = COALESCE($3::text, devices.push_token),
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, contact_address, push_token, created_at, updated_at, (xmax = 0) AS inserted
	`

	var (
		device   Device
		inserted bool
	)
	err := r.pool.QueryRow(ctx, query,
		params.UserID,
		params.ContactAddress,
		params.PushToken,
		params.Now,
	).Scan(
		&device.UserID,
		&device.ContactAddress,
		&device.PushToken,
		&device.CreatedAt,
		&device.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}

	return &device, inserted, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
