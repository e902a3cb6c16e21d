package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skycast/internal/config"
	"skycast/internal/httpapi"
	"skycast/internal/mqtt"
	"skycast/internal/store"
)

// Run starts the server process: MongoDB store, background MQTT subscriber,
// and HTTP API. It blocks until ctx is cancelled, then shuts down in reverse
// order.
func Run(ctx context.Context, cfg config.Server) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel,
		"httpHost", cfg.HTTPHost,
		"httpPort", cfg.HTTPPort,
		"mqttBroker", cfg.MQTTBrokerHost,
		"mqttPort", cfg.MQTTBrokerPort,
		"mqttTopic", cfg.MQTTTopic,
		"mongoDatabase", cfg.MongoDatabase,
	)

	storeCtx, storeCancel := context.WithTimeout(ctx, 10*time.Second)
	mongoStore, err := store.NewMongo(storeCtx, cfg.MongoURI, cfg.MongoDatabase)
	storeCancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := mongoStore.Close(closeCtx); closeErr != nil {
			slog.Error("mongo close", "error", closeErr)
		}
	}()
	slog.Info("store connection successful")

	// Handler must be set before Connect so messages queued behind CONNACK
	// are not lost.
	subscriber := mqtt.NewSubscriber(cfg, slog.Default())
	subscriber.SetReadingHandler(func(r store.Reading) error {
		insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		id, err := mongoStore.InsertReading(insertCtx, r)
		if err != nil {
			return err
		}
		slog.Debug("reading stored", "id", id, "timestamp", r.Timestamp)
		return nil
	})

	// Short timeout for the initial MQTT connect so a down broker does not
	// block startup; the HTTP API still serves and paho retries behind it.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = subscriber.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}
	defer subscriber.Disconnect()

	srv := httpapi.New(mongoStore)
	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", addr)
		errCh <- srv.Listen(addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return ctx.Err()
}
