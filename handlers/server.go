package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"lookingglass/pkg/mirror"
)

// NewApp wires the Fiber application: a health check, the query-param
// endpoint, and a catch-all wildcard so /https://site/page works too.
func NewApp(eng *mirror.Engine, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/mirror", MirrorSite(eng, log))
	app.Get("/*", MirrorSite(eng, log))

	return app
}
