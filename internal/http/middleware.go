package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"scriptd/internal/metrics"
)

// requestLogMiddleware assigns a request id, records request metrics and
// emits one structured log line per request.
func requestLogMiddleware(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		c.Set("X-Request-Id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		// Route templates keep script ids out of metric labels.
		path := c.Route().Path

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", c.Path(),
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	}
}

// servicesMiddleware injects shared dependencies into the request context.
func servicesMiddleware(scripts ScriptService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("scripts", scripts)
		return c.Next()
	}
}
