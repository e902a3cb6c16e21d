package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Server holds configuration for the API server process (HTTP, MQTT
// subscriber, MongoDB). Credentials are required; everything else has
// defaults suitable for local development.
type Server struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPHost string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8000"`

	MQTTBrokerHost string `envconfig:"MQTT_BROKER_HOST" default:"localhost"`
	MQTTBrokerPort int    `envconfig:"MQTT_BROKER_PORT" default:"1883"`
	MQTTTopic      string `envconfig:"MQTT_TOPIC" default:"weather/data"`
	MQTTClientID   string `envconfig:"MQTT_CLIENT_ID"`

	MongoURI      string `envconfig:"MONGO_URI" required:"true"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"skycast"`
}

// Sensor holds configuration for the sensor process (OpenWeatherMap fetcher
// and MQTT publisher).
type Sensor struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	MQTTBrokerHost string `envconfig:"MQTT_BROKER_HOST" default:"localhost"`
	MQTTBrokerPort int    `envconfig:"MQTT_BROKER_PORT" default:"1883"`
	MQTTTopic      string `envconfig:"MQTT_TOPIC" default:"weather/data"`
	MQTTClientID   string `envconfig:"MQTT_CLIENT_ID"`

	OWMAPIKey string  `envconfig:"OWM_API_KEY" required:"true"`
	Lat       float64 `envconfig:"LAT" required:"true"`
	Lon       float64 `envconfig:"LON" required:"true"`
	Units     string  `envconfig:"UNITS" default:"metric"`

	FetchInterval time.Duration `envconfig:"FETCH_INTERVAL" default:"60s"`
	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
}

// LoadServer reads server configuration from a .env file (if present) and the
// environment. A missing required value or an invalid one is a startup error.
func LoadServer() (Server, error) {
	loadDotenv()

	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return Server{}, fmt.Errorf("load server config: %w", err)
	}
	if err := validateCommon(cfg.AppEnv, cfg.LogLevel); err != nil {
		return Server{}, err
	}
	// envconfig treats a present-but-empty variable as set.
	if cfg.MongoURI == "" {
		return Server{}, fmt.Errorf("MONGO_URI not set")
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return Server{}, fmt.Errorf("invalid HTTP_PORT %d", cfg.HTTPPort)
	}
	return cfg, nil
}

// LoadSensor reads sensor configuration. Coordinate and unit-system problems
// are caught here rather than at fetch time, so a misconfigured sensor
// refuses to start instead of failing every tick.
func LoadSensor() (Sensor, error) {
	loadDotenv()

	var cfg Sensor
	if err := envconfig.Process("", &cfg); err != nil {
		return Sensor{}, fmt.Errorf("load sensor config: %w", err)
	}
	if err := validateCommon(cfg.AppEnv, cfg.LogLevel); err != nil {
		return Sensor{}, err
	}
	if cfg.OWMAPIKey == "" {
		return Sensor{}, fmt.Errorf("OWM_API_KEY not set")
	}
	if cfg.Lat < -90 || cfg.Lat > 90 {
		return Sensor{}, fmt.Errorf("LAT %v out of range [-90, 90]", cfg.Lat)
	}
	if cfg.Lon < -180 || cfg.Lon > 180 {
		return Sensor{}, fmt.Errorf("LON %v out of range [-180, 180]", cfg.Lon)
	}
	switch cfg.Units {
	case "standard", "metric", "imperial":
	default:
		return Sensor{}, fmt.Errorf("invalid UNITS %q (allowed: standard, metric, imperial)", cfg.Units)
	}
	if cfg.FetchInterval <= 0 {
		return Sensor{}, fmt.Errorf("FETCH_INTERVAL must be positive, got %v", cfg.FetchInterval)
	}
	if cfg.FetchTimeout <= 0 {
		return Sensor{}, fmt.Errorf("FETCH_TIMEOUT must be positive, got %v", cfg.FetchTimeout)
	}
	return cfg, nil
}

func validateCommon(appEnv, logLevel string) error {
	switch appEnv {
	case "dev", "prod":
	default:
		return fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}
	if _, err := ParseLogLevel(logLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a LOG_LEVEL string to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func loadDotenv() {
	// Optional; real deployments set environment variables directly.
	_ = godotenv.Load()
}
