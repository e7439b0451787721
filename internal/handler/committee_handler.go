package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internship-approval-api/internal/dto"
	"github.com/noah-isme/internship-approval-api/internal/middleware"
	"github.com/noah-isme/internship-approval-api/internal/service"
	"github.com/noah-isme/internship-approval-api/internal/utils"
)

// CommitteeHandler serves committee voting endpoints.
type CommitteeHandler struct {
	workflow  service.ApprovalWorkflow
	voteLimit fiber.Handler
	logger    zerolog.Logger
}

// NewCommitteeHandler constructs the handler. voteLimit guards vote submission and may be nil.
func NewCommitteeHandler(workflow service.ApprovalWorkflow, voteLimit fiber.Handler, logger zerolog.Logger) *CommitteeHandler {
	if voteLimit == nil {
		voteLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &CommitteeHandler{
		workflow:  workflow,
		voteLimit: voteLimit,
		logger:    logger.With().Str("component", "committee_handler").Logger(),
	}
}

// Register wires vote routes under the applications group.
func (h *CommitteeHandler) Register(router fiber.Router) {
	router.Get("/:id/votes", middleware.RequireRole(middleware.RoleCommittee, middleware.RoleAdmin), h.snapshot)
	router.Post("/:id/votes", middleware.RequireRole(middleware.RoleCommittee), h.voteLimit, h.submit)
}

func (h *CommitteeHandler) snapshot(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	snapshot, err := h.workflow.Votes(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load committee votes")
	}

	return utils.SendSuccess(c, "committee votes retrieved", snapshot)
}

func (h *CommitteeHandler) submit(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitVoteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	snapshot, err := h.workflow.SubmitVote(c.UserContext(), id, actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record committee vote")
	}

	message := "vote recorded"
	if snapshot.Transition != nil {
		message = "vote recorded, committee decision applied"
	}
	return utils.SendSuccess(c, message, snapshot)
}
