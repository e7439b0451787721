package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internship-approval-api/internal/dto"
	"github.com/noah-isme/internship-approval-api/internal/middleware"
	"github.com/noah-isme/internship-approval-api/internal/service"
	"github.com/noah-isme/internship-approval-api/internal/utils"
)

// ScoreHandler serves rubric score batch updates.
type ScoreHandler struct {
	workflow service.ApprovalWorkflow
	logger   zerolog.Logger
}

// NewScoreHandler constructs the handler.
func NewScoreHandler(workflow service.ApprovalWorkflow, logger zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		workflow: workflow,
		logger:   logger.With().Str("component", "score_handler").Logger(),
	}
}

// Register wires score routes under the provided group.
func (h *ScoreHandler) Register(router fiber.Router) {
	router.Patch("/batch",
		middleware.RequireRole(middleware.RoleAdvisor, middleware.RoleCommittee, middleware.RoleVisitor, middleware.RoleAdmin),
		h.batch,
	)
}

func (h *ScoreHandler) batch(c *fiber.Ctx) error {
	var payload dto.ScoreBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.workflow.ScoreBatch(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update scores")
	}

	message := "scores updated"
	if result.Aborted {
		message = "score update aborted"
	}
	return utils.SendSuccess(c, message, result)
}
