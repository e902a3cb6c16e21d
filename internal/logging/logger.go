package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"skycast/internal/config"
)

// New builds the process logger: a colorized tint handler for dev builds and
// a JSON handler for released binaries.
func New(appEnv, logLevel, version, appName string) *slog.Logger {
	level, err := config.ParseLogLevel(logLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	if version == "dev" {
		h := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", appEnv,
	)
}
