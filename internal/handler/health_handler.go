package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/internship-approval-api/internal/config"
	"github.com/noah-isme/internship-approval-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Realtime    string    `json:"realtime"`
}

// HealthCheck returns a handler that reports application health information. realtime names
// the transport carrying status-change events across nodes.
func HealthCheck(cfg config.Config, realtime string) fiber.Handler {
	if realtime == "" {
		realtime = "local"
	}

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Realtime:    realtime,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
