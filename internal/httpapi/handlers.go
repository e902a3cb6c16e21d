package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"skycast/internal/store"
)

// RegisterRoutes wires the readings and settings endpoints into the app.
func RegisterRoutes(app *fiber.App, st store.Store) {
	api := app.Group("/api")

	api.Get("/readings/recent", handleRecentReadings(st))
	api.Get("/users/:id/settings", handleGetSettings(st))
	api.Post("/users/:id/settings", handleUpdateSettings(st))
	api.Put("/users/:id/settings", handleUpdateSettings(st))
}

// handleRecentReadings returns the last `limit` readings in ascending
// chronological order. An absent or non-numeric limit falls back to the
// default rather than erroring.
func handleRecentReadings(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := store.DefaultRecentLimit
		if s := c.Query("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				limit = n
			}
		}

		readings, err := st.RecentReadings(c.Context(), limit)
		if err != nil {
			slog.Error("recent readings query failed", "limit", limit, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch readings")
		}

		// The store returns newest first; the API contract is oldest first.
		for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
			readings[i], readings[j] = readings[j], readings[i]
		}
		if readings == nil {
			readings = []store.Reading{}
		}

		return c.JSON(fiber.Map{"status": "success", "data": readings})
	}
}

func handleGetSettings(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := c.Params("id")

		settings, err := st.UserSettings(c.Context(), identity)
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		if err != nil {
			slog.Error("get settings failed", "user", identity, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch settings")
		}

		return c.JSON(fiber.Map{"status": "success", "data": settings})
	}
}

// handleUpdateSettings merges the JSON body into the user's settings
// document. An empty or undecodable body is a client error, never a crash.
func handleUpdateSettings(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := c.Params("id")

		var patch map[string]any
		if err := json.Unmarshal(c.Body(), &patch); err != nil || len(patch) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON payload")
		}

		if err := st.UpsertUserSettings(c.Context(), identity, patch); err != nil {
			slog.Error("upsert settings failed", "user", identity, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to update settings")
		}

		return c.JSON(fiber.Map{"status": "success", "message": "Settings updated"})
	}
}
