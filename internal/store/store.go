package store

import (
	"context"
	"errors"
)

// DefaultRecentLimit is used whenever a caller asks for recent readings
// without a usable limit.
const DefaultRecentLimit = 24

// ErrNotFound is returned when no settings document exists for an identity.
var ErrNotFound = errors.New("not found")

// Reading is one stored weather observation. The store assigns ID on insert;
// a reading is never updated or deleted afterwards.
type Reading struct {
	ID               string  `bson:"-" json:"id,omitempty"`
	Timestamp        int64   `bson:"timestamp" json:"timestamp"`
	Temp             float64 `bson:"owm_temp" json:"owm_temp"`
	Humidity         float64 `bson:"owm_humidity" json:"owm_humidity"`
	Pressure         float64 `bson:"owm_pressure" json:"owm_pressure"`
	WindSpeed        float64 `bson:"owm_wind_speed" json:"owm_wind_speed"`
	Weather          string  `bson:"owm_weather" json:"owm_weather"`
	ServerReceivedTS int64   `bson:"server_received_ts" json:"server_received_ts"`
}

// Store persists readings and per-user settings. Implementations must be safe
// for concurrent use; the subscriber inserts while HTTP handlers query.
type Store interface {
	// InsertReading persists one reading atomically and returns its assigned id.
	InsertReading(ctx context.Context, r Reading) (string, error)

	// RecentReadings returns up to limit readings ordered by capture timestamp
	// descending. A limit <= 0 is coerced to DefaultRecentLimit; it never fails
	// on a bad limit.
	RecentReadings(ctx context.Context, limit int) ([]Reading, error)

	// UserSettings returns the settings map for identity, or ErrNotFound.
	UserSettings(ctx context.Context, identity string) (map[string]any, error)

	// UpsertUserSettings merges patch into the identity's settings document,
	// creating it if absent, and stamps updated_ts with the current server
	// time in epoch milliseconds. Fields absent from patch are left untouched.
	UpsertUserSettings(ctx context.Context, identity string, patch map[string]any) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
