package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/app"
	"github.com/pushrelay/pushrelay/internal/config"
)

func TestBuild_Stores(t *testing.T) {
	tests := []struct {
		name      string
		configure func(cfg *config.Config)
	}{
		{
			name:      "memory",
			configure: func(cfg *config.Config) { cfg.Store.Driver = config.DriverMemory },
		},
		{
			name: "sqlite",
			configure: func(cfg *config.Config) {
				cfg.Store.Driver = config.DriverSQLite
				cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "relay.db")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.configure(&cfg)

			a, err := app.Build(context.Background(), &cfg, zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, a.Close()) })

			ctx := context.Background()
			require.NoError(t, a.Messages.Ping(ctx))

			_, err = a.Relay.RegisterDevice(ctx, &models.RegisterRequest{UserID: "u1", ContactAddress: "+15551234567"})
			require.NoError(t, err)

			sent, err := a.Relay.SendMessage(ctx, &models.SendRequest{UserID: "u1", Text: "hello"})
			require.NoError(t, err)
			assert.False(t, sent.NotificationSent)

			fetched, err := a.Relay.FetchMessages(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 1, fetched.Count)
			assert.Equal(t, 0, a.Channels.ChannelCount())
		})
	}
}

func TestBuild_FCMCredentialsMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	cfg.Push.Provider = config.ProviderFCM
	cfg.Push.FCM.ProjectID = "relay-test"
	cfg.Push.FCM.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := app.Build(context.Background(), &cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "cassandra"

	_, err := app.Build(context.Background(), &cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown store driver")
}
