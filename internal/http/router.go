package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"scriptd/internal/config"
	"scriptd/internal/metrics"
)

// Deps are the collaborators the HTTP server is wired to. DB and Redis
// are optional and only used by deep health checks.
type Deps struct {
	Scripts ScriptService
	DB      *sql.DB
	Redis   *redis.Client
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(servicesMiddleware(deps.Scripts))
	app.Use(requestLogMiddleware(logger))

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check DB and Redis connectivity when configured.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "disabled"
		if deps.DB != nil {
			dbStatus = "ok"
			if err := deps.DB.PingContext(ctx); err != nil {
				dbStatus = "error"
			}
		}

		redisStatus := "disabled"
		if deps.Redis != nil {
			redisStatus = "ok"
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			}
		}

		status := "ok"
		if dbStatus == "error" || redisStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status":  status,
			"db":      dbStatus,
			"redis":   redisStatus,
			"backend": cfg.Backend.Kind,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	registerScriptRoutes(app.Group("/scripts"))

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

// App exposes the underlying fiber app (used by tests).
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	if s.logger != nil {
		s.logger.Info("http_listen", "addr", addr)
	}
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerScriptRoutes(group fiber.Router) {
	group.Post("/execute", scriptExecuteHandler)
	group.Get("/", scriptListHandler)
	group.Get("/:id", scriptDetailHandler)
	group.Post("/:id/stop", scriptStopHandler)
	group.Delete("/:id", scriptDeleteHandler)
}
