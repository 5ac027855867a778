// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity and roles set by the
// Gateway. Applied to every /api/v1 route; handlers read the Locals.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/api/v1/")
		if isSecured && userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		// Highest-privilege role wins when the gateway forwards several.
		role := "team_member"
		for _, candidate := range []string{"admin", "project_lead", "reviewer"} {
			if containsRole(roles, candidate) {
				role = candidate
				break
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		c.Locals("user_roles", roles)

		return c.Next()
	}
}

func containsRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// ActorID returns the authenticated account id set by UserContextMiddleware.
func ActorID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// ActorRole returns the effective role set by UserContextMiddleware.
func ActorRole(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	if role == "" {
		return "team_member"
	}
	return role
}
