package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/internship-approval-api/internal/config"
	"github.com/noah-isme/internship-approval-api/internal/handler"
	"github.com/noah-isme/internship-approval-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ApprovalHandler  *handler.ApprovalHandler
	CommitteeHandler *handler.CommitteeHandler
	ScoreHandler     *handler.ScoreHandler
	RealtimeHandler  *handler.RealtimeHandler
	JWTMiddleware    fiber.Handler
	MetricsHandler   fiber.Handler
	// RealtimeTransport names the cross-node event transport reported by the health check.
	RealtimeTransport string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	if deps.MetricsHandler != nil {
		app.Get("/metrics", deps.MetricsHandler)
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.RealtimeTransport))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	applications := api.Group("/applications", jwtMiddleware, middleware.RequireUser())

	// The websocket route goes first so "/ws" is not captured by "/:id".
	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(applications)
	}
	if deps.ApprovalHandler != nil {
		deps.ApprovalHandler.Register(applications)
	}
	if deps.CommitteeHandler != nil {
		deps.CommitteeHandler.Register(applications)
	}

	if deps.ScoreHandler != nil {
		scores := api.Group("/scores", jwtMiddleware, middleware.RequireUser())
		deps.ScoreHandler.Register(scores)
	}
}
