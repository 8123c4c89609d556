package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/quizdeck/quizdeck-api/internal/utils"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny       = "any"
	AuthRoleAdmin     = "admin"
	AuthRoleCandidate = "candidate"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and role guards. Callers must
// have JWTProtected ahead of it in the chain.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if role == AuthRoleAny {
			if !requireUser || userID != nil {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		currentRole := ""
		if v, ok := c.Locals("user_role").(string); ok {
			currentRole = strings.ToLower(strings.TrimSpace(v))
		}

		if currentRole != role {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		return handler(c)
	}
}
