package sensor

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"skycast/internal/config"
	"skycast/internal/mqtt"
	"skycast/internal/owm"
	"skycast/internal/telemetry"
)

// Fetcher produces one current-weather observation.
type Fetcher interface {
	Current(ctx context.Context) (owm.Observation, error)
}

// Publisher sends one telemetry message to the broker.
type Publisher interface {
	Publish(msg telemetry.Message) error
}

// Loop is one fetch-and-publish cycle. Every failure is logged and skipped;
// the next scheduled tick gets a fresh attempt.
type Loop struct {
	fetcher   Fetcher
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewLoop(fetcher Fetcher, publisher Publisher, timeout time.Duration, logger *slog.Logger) *Loop {
	return &Loop{
		fetcher:   fetcher,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

// Tick fetches the current conditions and publishes them stamped with the
// capture time. It never returns an error and never panics the scheduler.
func (l *Loop) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	obs, err := l.fetcher.Current(ctx)
	if err != nil {
		l.logger.Warn("weather fetch failed, skipping tick", "error", err)
		return
	}

	msg := telemetry.Message{
		Timestamp: time.Now().UnixMilli(),
		Temp:      obs.Temp,
		Humidity:  obs.Humidity,
		Pressure:  obs.Pressure,
		WindSpeed: obs.WindSpeed,
		Weather:   obs.Weather,
	}

	if err := l.publisher.Publish(msg); err != nil {
		l.logger.Warn("publish failed, reading dropped", "timestamp", msg.Timestamp, "error", err)
		return
	}

	l.logger.Info("published reading",
		"timestamp", msg.Timestamp,
		"temp", msg.Temp,
		"weather", msg.Weather,
	)
}

// Run wires the OWM client, the MQTT publisher, and the scheduler, then
// blocks until ctx is cancelled.
func Run(ctx context.Context, cfg config.Sensor) error {
	logger := slog.Default()

	client := owm.NewClient(cfg.OWMAPIKey, cfg.Lat, cfg.Lon, cfg.Units, cfg.FetchTimeout)

	publisher := mqtt.NewPublisher(cfg, logger)
	defer publisher.Disconnect()

	// Bounded initial connect; paho keeps retrying in the background, and a
	// disconnected broker just means dropped publishes until it returns.
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := publisher.Connect(connectCtx); err != nil {
		logger.Warn("mqtt connection failed (continuing, publishes will be dropped)", "error", err)
	}
	cancel()

	loop := NewLoop(client, publisher, cfg.FetchTimeout, logger)

	sched := gocron.NewScheduler(time.UTC)
	if _, err := sched.Every(cfg.FetchInterval).Do(loop.Tick); err != nil {
		return err
	}
	sched.StartAsync()
	defer sched.Stop()

	logger.Info("sensor loop started",
		"interval", cfg.FetchInterval,
		"topic", cfg.MQTTTopic,
		"lat", cfg.Lat,
		"lon", cfg.Lon,
		"units", cfg.Units,
	)

	<-ctx.Done()
	return ctx.Err()
}
