//go:build integration

package device_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/database"
	"github.com/pushrelay/pushrelay/internal/device"
)

// Run with: PUSHRELAY_TEST_POSTGRES_URL=postgres://... go test -tags integration ./internal/device/

func newPostgresRepository(t *testing.T) *device.PostgresRepository {
	t.Helper()
	url := os.Getenv("PUSHRELAY_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("PUSHRELAY_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))

	return device.NewPostgresRepository(pool)
}

func TestPostgresRepository_UpsertMergesToken(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()
	created := time.Now().UTC().Truncate(time.Millisecond)
	token := "token-1"

	dev, inserted, err := repo.Upsert(ctx, device.UpsertParams{
		UserID:         userID,
		ContactAddress: "+15551234567",
		PushToken:      &token,
		Now:            created,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "token-1", dev.PushToken)

	updated := created.Add(time.Minute)
	dev, inserted, err = repo.Upsert(ctx, device.UpsertParams{
		UserID:         userID,
		ContactAddress: "+15550000000",
		Now:            updated,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "token-1", dev.PushToken, "nil token keeps the stored one")
	assert.Equal(t, "+15550000000", dev.ContactAddress)
	assert.True(t, created.Equal(dev.CreatedAt))
	assert.True(t, updated.Equal(dev.UpdatedAt))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "token-1", got.PushToken)
}

func TestPostgresRepository_Get_NotFound(t *testing.T) {
	repo := newPostgresRepository(t)

	_, err := repo.Get(context.Background(), "it-"+uuid.NewString())
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}
