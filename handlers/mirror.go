package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"lookingglass/pkg/mirror"
	"lookingglass/pkg/urlnorm"
)

// MirrorSite is a Fiber handler that validates the raw target URL,
// normalizes it, and hands it to the engine.
func MirrorSite(eng *mirror.Engine, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := extractURL(c)
		if err != nil {
			log.Warn().Err(err).Str("path", c.Path()).Msg("could not extract URL")
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}

		target, err := urlnorm.Normalize(raw)
		if err != nil {
			log.Warn().Err(err).Str("raw", raw).Msg("rejected target URL")
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}

		// Convert Fiber headers to http.Header for the engine.
		headers := make(http.Header)
		c.Request().Header.VisitAll(func(key, value []byte) {
			headers.Add(string(key), string(value))
		})

		body, err := eng.Mirror(target, headers)
		if err != nil {
			log.Error().Err(err).Str("url", target).Msg("mirror failed")
			return c.Status(statusFor(err)).SendString(err.Error())
		}

		c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
		return c.SendString(body)
	}
}

// extractURL pulls the raw target out of the request: the "url" query
// parameter when present, otherwise the wildcard path (so a page can
// also be addressed as /https://site/page).
func extractURL(c *fiber.Ctx) (string, error) {
	if q := c.Query("url"); q != "" {
		return q, nil
	}
	raw := c.Params("*")
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}
	if raw == "" {
		return "", fmt.Errorf("missing target URL")
	}
	return raw, nil
}

func statusFor(err error) int {
	var fe *mirror.FetchError
	switch {
	case errors.Is(err, urlnorm.ErrInvalid):
		return fiber.StatusBadRequest
	case errors.Is(err, mirror.ErrDomainNotAllowed):
		return fiber.StatusForbidden
	case errors.As(err, &fe):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
