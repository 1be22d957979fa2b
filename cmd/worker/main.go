// Package main provides the entrypoint for the Pub/Sub send worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/handler"
	"github.com/pushrelay/pushrelay/internal/app"
	"github.com/pushrelay/pushrelay/internal/config"
	"github.com/pushrelay/pushrelay/internal/telemetry"
	"github.com/pushrelay/pushrelay/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pushrelay-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.Subscription == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION are required")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("subscription", cfg.PubSub.Subscription).
		Msg("starting push relay worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	relayApp, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize relay")
		return
	}
	defer func() {
		if closeErr := relayApp.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close store")
		}
	}()

	subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		MaxOutstanding:   cfg.PubSub.MaxOutstanding,
		Worker:           worker.NewSendWorker(relayApp.Relay, log),
		Logger:           log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler")
		return
	}
	defer subscriber.Close() //nolint:errcheck // shutdown path

	// Cloud Run needs an HTTP endpoint to consider the worker healthy.
	ops := handler.NewOpsHandler(handler.OpsConfig{
		ServiceName: serviceName,
		Version:     Version,
		BuildTime:   BuildTime,
		Store:       relayApp.Messages,
		Channels:    relayApp.Channels,
	})
	mux := chi.NewRouter()
	mux.Get("/health", ops.HealthCheck)
	mux.Get("/ready", ops.ReadinessCheck)
	mux.Get("/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	receiveErr := make(chan error, 1)
	go func() {
		receiveErr <- subscriber.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
	case err := <-receiveErr:
		if err != nil {
			log.Error().Err(err).Msg("pubsub receive stopped")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
