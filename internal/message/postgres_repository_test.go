//go:build integration

package message_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/database"
	"github.com/pushrelay/pushrelay/internal/message"
)

// Run with: PUSHRELAY_TEST_POSTGRES_URL=postgres://... go test -tags integration ./internal/message/

func newPostgresRepository(t *testing.T) *message.PostgresRepository {
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

	return message.NewPostgresRepository(pool)
}

func TestPostgresRepository_Drain(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)

	insert(t, repo, message.NewID(), userID, base)
	second := message.NewID()
	insert(t, repo, second, userID, base.Add(time.Second))
	third := message.NewID()
	insert(t, repo, third, userID, base.Add(time.Second))

	drained, err := repo.Drain(ctx, userID)
	require.NoError(t, err)
	require.Len(t, drained, 3)
	assert.Equal(t, third, drained[0].ID)
	assert.Equal(t, second, drained[1].ID)

	again, err := repo.Drain(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPostgresRepository_Drain_ConcurrentCallsAreDisjoint(t *testing.T) {
	repo := newPostgresRepository(t)
	userID := "it-" + uuid.NewString()
	base := time.Now().UTC()

	const total = 25
	for i := 0; i < total; i++ {
		insert(t, repo, message.NewID(), userID, base.Add(time.Duration(i)*time.Millisecond))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drained, err := repo.Drain(context.Background(), userID)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, m := range drained {
				seen[m.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %s drained more than once", id)
	}
}
