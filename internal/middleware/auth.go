package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/internship-approval-api/internal/utils"
)

// Roles carried in the JWT role claim.
const (
	RoleAdmin     = "admin"
	RoleAdvisor   = "advisor"
	RoleCommittee = "committee"
	RoleStudent   = "student"
	RoleVisitor   = "visitor"
)

// RequireUser rejects requests whose token did not identify a user. Votes, reviews and
// transitions are attributed to that id.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok || userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}

// RequireRole admits only callers whose user_role local is one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRole(c.Locals("user_role"))
		if _, ok := allowed[role]; !ok {
			if role == "" {
				return utils.SendError(c, fiber.StatusForbidden, "role required")
			}
			return utils.SendError(c, fiber.StatusForbidden, fmt.Sprintf("role %s may not %s %s", role, strings.ToLower(c.Method()), c.Path()))
		}
		return c.Next()
	}
}
