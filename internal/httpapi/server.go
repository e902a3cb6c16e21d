package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"skycast/internal/store"
)

// New builds the API server. Every response, including errors, is the uniform
// {status, data|message} envelope; the recover middleware keeps a panicking
// handler from taking the process down.
func New(st store.Store) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "skycast-server",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          errorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/healthz", handleHealthz(st))
	RegisterRoutes(app, st)

	// Fallback for unmatched routes so 404s use the envelope too.
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not found")
	})

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": err.Error(),
	})
}

func handleHealthz(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := st.Ping(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "store unreachable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
