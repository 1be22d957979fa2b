// Package app assembles the relay from configuration. It is shared by the
// API server and the Pub/Sub worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/database"
	"github.com/pushrelay/pushrelay/internal/device"
	"github.com/pushrelay/pushrelay/internal/message"
	"github.com/pushrelay/pushrelay/internal/push"
	"github.com/pushrelay/pushrelay/internal/push/fcm"
	"github.com/pushrelay/pushrelay/internal/relay"
	"github.com/pushrelay/pushrelay/internal/resilience"
)

// App holds the wired relay and the resources it owns.
type App struct {
	Relay    *relay.Service
	Messages *message.Service
	Channels *resilience.Registry

	closers []func() error
}

// Close releases database connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build opens the configured store, selects the push channel and wires the
// relay service.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Channels: resilience.NewRegistry()}

	deviceRepo, messageRepo, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sender, err := a.newSender(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	metrics, err := push.NewMetrics()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init push metrics: %w", err)
	}

	devices := device.NewService(device.ServiceConfig{
		Repository: deviceRepo,
		Logger:     logger,
	})
	a.Messages = message.NewService(message.ServiceConfig{
		Repository: messageRepo,
		Logger:     logger,
	})
	dispatcher := push.NewDispatcher(push.DispatcherConfig{
		Devices:       devices,
		Sender:        sender,
		Logger:        logger,
		Metrics:       metrics,
		Title:         cfg.Push.Title,
		Timeout:       cfg.Push.Timeout,
		RatePerSecond: cfg.Push.RatePerSecond,
		Burst:         cfg.Push.Burst,
	})
	a.Relay = relay.NewService(relay.ServiceConfig{
		Devices:    devices,
		Messages:   a.Messages,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (device.Repository, message.Repository, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Store.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		logger.Info().
			Str("host", cfg.Store.Postgres.Host).
			Int("port", cfg.Store.Postgres.Port).
			Str("database", cfg.Store.Postgres.Database).
			Msg("database connected")
		return device.NewPostgresRepository(pool), message.NewPostgresRepository(pool), nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Store.SQLite)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		logger.Info().Str("path", cfg.Store.SQLite.Path).Msg("sqlite store opened")
		return device.NewSQLiteRepository(db), message.NewSQLiteRepository(db), nil

	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, messages are lost on restart")
		return device.NewInMemoryRepository(), message.NewInMemoryRepository(), nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (a *App) newSender(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (push.Sender, error) {
	switch cfg.Push.Provider {
	case config.ProviderFCM:
		account, err := fcm.LoadServiceAccount(cfg.Push.FCM.CredentialsFile)
		if err != nil {
			return nil, err
		}
		tokens, err := fcm.NewTokenSource(ctx, account, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}

		clientCfg := resilience.DefaultClientConfig(fcm.ChannelName)
		clientCfg.Registry = a.Channels

		logger.Info().Str("project_id", cfg.Push.FCM.ProjectID).Msg("fcm push channel configured")
		return fcm.NewClient(fcm.ClientConfig{
			ProjectID:  cfg.Push.FCM.ProjectID,
			Tokens:     tokens,
			BaseURL:    cfg.Push.FCM.BaseURL,
			HTTPClient: resilience.NewClient(clientCfg),
			Logger:     logger,
		}), nil

	case config.ProviderLog:
		logger.Warn().Msg("push provider is log, notifications are not delivered")
		return push.NewLogSender(logger), nil

	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Push.Provider)
	}
}
