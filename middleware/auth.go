package middleware

import (
	"strings"

	"bounty-platform/logging"
	"bounty-platform/models"
	"bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

const actorLocalsKey = "actor"

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// UserContextMiddleware reads the identity the gateway forwarded and stores it
// as a services.Actor for the handlers.
func UserContextMiddleware(log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(HeaderUserID))
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}
		role, ok := models.ParseRole(c.Get(HeaderUserRole))
		if !ok {
			log.Warn(c.UserContext(), "unknown role in user context", "user_id", userID, "role", c.Get(HeaderUserRole))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "unknown user role",
			})
		}

		SetActor(c, services.Actor{UserID: userID, Role: role})
		return c.Next()
	}
}

func SetActor(c *fiber.Ctx, a services.Actor) {
	c.Locals(actorLocalsKey, a)
}

// ActorFrom returns the caller set by UserContextMiddleware or SSEAuthMiddleware.
func ActorFrom(c *fiber.Ctx) (services.Actor, bool) {
	a, ok := c.Locals(actorLocalsKey).(services.Actor)
	return a, ok
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, ok := ActorFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
		}
		for _, r := range roles {
			if a.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	}
}

// RequireActor rejects callers for whom allowed returns false.
func RequireActor(allowed func(services.Actor) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, ok := ActorFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
		}
		if !allowed(a) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
		}
		return c.Next()
	}
}
