package config

import (
	"os"
	"testing"
	"time"
)

// unsetEnv clears keys for the duration of the test. t.Setenv registers the
// restore; os.Unsetenv makes the variable truly absent rather than empty.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func setServerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	unsetEnv(t, "APP_ENV", "LOG_LEVEL", "HTTP_HOST", "HTTP_PORT",
		"MQTT_BROKER_HOST", "MQTT_BROKER_PORT", "MQTT_TOPIC", "MONGO_DATABASE")
}

func setSensorEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OWM_API_KEY", "k")
	t.Setenv("LAT", "52.52")
	t.Setenv("LON", "13.405")
	unsetEnv(t, "APP_ENV", "LOG_LEVEL", "UNITS", "FETCH_INTERVAL", "FETCH_TIMEOUT",
		"MQTT_BROKER_HOST", "MQTT_BROKER_PORT", "MQTT_TOPIC")
}

func TestLoadServer_Defaults(t *testing.T) {
	setServerEnv(t)

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.HTTPPort != 8000 {
		t.Errorf("HTTPPort = %d; want 8000", cfg.HTTPPort)
	}
	if cfg.MQTTBrokerHost != "localhost" || cfg.MQTTBrokerPort != 1883 {
		t.Errorf("broker = %s:%d; want localhost:1883", cfg.MQTTBrokerHost, cfg.MQTTBrokerPort)
	}
	if cfg.MQTTTopic != "weather/data" {
		t.Errorf("MQTTTopic = %q; want weather/data", cfg.MQTTTopic)
	}
	if cfg.MongoDatabase != "skycast" {
		t.Errorf("MongoDatabase = %q; want skycast", cfg.MongoDatabase)
	}
}

func TestLoadServer_RequiresMongoURI(t *testing.T) {
	setServerEnv(t)
	t.Setenv("MONGO_URI", "")

	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error for missing MONGO_URI")
	}
}

func TestLoadServer_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad app env", "APP_ENV", "staging"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad http port", "HTTP_PORT", "99999"},
		{"non-numeric port", "HTTP_PORT", "eighty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setServerEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadServer(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadSensor_Defaults(t *testing.T) {
	setSensorEnv(t)

	cfg, err := LoadSensor()
	if err != nil {
		t.Fatalf("LoadSensor: %v", err)
	}
	if cfg.Units != "metric" {
		t.Errorf("Units = %q; want metric", cfg.Units)
	}
	if cfg.FetchInterval != 60*time.Second {
		t.Errorf("FetchInterval = %v; want 60s", cfg.FetchInterval)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeout = %v; want 5s", cfg.FetchTimeout)
	}
	if cfg.Lat != 52.52 || cfg.Lon != 13.405 {
		t.Errorf("coordinates = %v,%v; want 52.52,13.405", cfg.Lat, cfg.Lon)
	}
}

func TestLoadSensor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"missing api key", "OWM_API_KEY", ""},
		{"non-numeric lat", "LAT", "north"},
		{"lat out of range", "LAT", "91"},
		{"lon out of range", "LON", "-181"},
		{"bad units", "UNITS", "kelvin"},
		{"bad interval", "FETCH_INTERVAL", "soon"},
		{"zero interval", "FETCH_INTERVAL", "0s"},
		{"zero timeout", "FETCH_TIMEOUT", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setSensorEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadSensor(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "warning", "error", "  INFO "} {
		if _, err := ParseLogLevel(s); err != nil {
			t.Errorf("ParseLogLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}
