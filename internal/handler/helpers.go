package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internship-approval-api/internal/middleware"
	"github.com/noah-isme/internship-approval-api/internal/service"
	"github.com/noah-isme/internship-approval-api/internal/utils"
)

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(role))
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	raw := strings.TrimSpace(c.Params(key))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return uint(id), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// respondError maps workflow errors onto HTTP responses. Anything unrecognised is logged and
// reported with the generic fallback message.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	var (
		conflictErr   *service.ConflictError
		concurrentErr *service.ConcurrentModificationError
		transitionErr *service.InvalidTransitionError
	)

	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &conflictErr):
		payload := service.NewConflictResponse(conflictErr.Conflict, conflictErr.Conflict.ClientObservedVersion)
		return utils.SendErrorWithData(c, fiber.StatusConflict, err.Error(), payload)
	case errors.As(err, &concurrentErr):
		return utils.SendErrorWithData(c, fiber.StatusConflict, err.Error(), fiber.Map{
			"application_id":   concurrentErr.ApplicationID,
			"expected_version": concurrentErr.Expected,
			"current_version":  concurrentErr.Actual,
		})
	case errors.As(err, &transitionErr):
		return utils.SendErrorWithData(c, fiber.StatusBadRequest, err.Error(), fiber.Map{
			"from_status": transitionErr.From,
			"to_status":   transitionErr.To,
		})
	case errors.Is(err, service.ErrApplicationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrVotingClosed), errors.Is(err, service.ErrConcurrentModification):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotCommitteeMember), errors.Is(err, service.ErrNotAssignedAdvisor):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrObservedVersionRequired),
		errors.Is(err, service.ErrBatchShapeMismatch),
		errors.Is(err, service.ErrScoreOutOfRange),
		errors.Is(err, service.ErrInvalidVote),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrUnknownResolution):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}
