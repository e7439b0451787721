package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internship-approval-api/internal/dto"
	"github.com/noah-isme/internship-approval-api/internal/middleware"
	"github.com/noah-isme/internship-approval-api/internal/service"
	"github.com/noah-isme/internship-approval-api/internal/utils"
)

// ApprovalHandler exposes the application lifecycle endpoints.
type ApprovalHandler struct {
	workflow service.ApprovalWorkflow
	logger   zerolog.Logger
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(workflow service.ApprovalWorkflow, logger zerolog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		workflow: workflow,
		logger:   logger.With().Str("component", "approval_handler").Logger(),
	}
}

// Register wires application routes under the provided group.
func (h *ApprovalHandler) Register(router fiber.Router) {
	router.Post("", middleware.RequireRole(middleware.RoleStudent, middleware.RoleAdmin), h.register)
	router.Get("", middleware.RequireRole(middleware.RoleAdvisor, middleware.RoleCommittee, middleware.RoleAdmin), h.list)
	router.Get("/:id", h.status)
	router.Get("/:id/history", h.history)
	router.Post("/:id/conflict-check", h.conflictCheck)
	router.Post("/:id/transitions", middleware.RequireRole(middleware.RoleAdvisor, middleware.RoleAdmin), h.transition)
	router.Post("/:id/advisor-review", middleware.RequireRole(middleware.RoleAdvisor, middleware.RoleAdmin), h.advisorReview)
}

func (h *ApprovalHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterApplicationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.workflow.Register(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to register application")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "application registered", created)
}

func (h *ApprovalHandler) list(c *fiber.Ctx) error {
	var query dto.ApplicationListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.workflow.List(c.UserContext(), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list applications")
	}

	return utils.SendSuccessWithMeta(c, "applications retrieved", result.Items, result.Pagination)
}

func (h *ApprovalHandler) status(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.workflow.Status(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load approval status")
	}

	return utils.SendSuccess(c, "approval status retrieved", view)
}

func (h *ApprovalHandler) history(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.workflow.History(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load status history")
	}

	return utils.SendSuccess(c, "status history retrieved", entries)
}

func (h *ApprovalHandler) conflictCheck(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ConflictCheckRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.workflow.CheckConflict(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to check for conflicts")
	}

	return utils.SendSuccess(c, "conflict check completed", result)
}

func (h *ApprovalHandler) transition(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ApplyTransitionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.workflow.Transition(c.UserContext(), id, actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to apply status transition")
	}

	message := "status transition applied"
	if result.Aborted {
		message = "status transition aborted"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *ApprovalHandler) advisorReview(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AdvisorReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.workflow.AdvisorReview(c.UserContext(), id, actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record advisor review")
	}

	return utils.SendSuccess(c, "advisor review recorded", result)
}
