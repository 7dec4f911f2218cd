package handlers

import (
	"bounty-platform/middleware"
	"bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(r fiber.Router, progression *services.ProgressionService) {
	r.Get("/user/progress", func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return respondError(c, err)
		}
		view, err := progression.GetProgress(c.UserContext(), a.UserID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	admin := r.Group("/admin", middleware.RequireActor(services.CanReconcile))

	admin.Post("/gamify/recalc", func(c *fiber.Ctx) error {
		n, err := progression.RecalculateAll(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "xp recalculated", "users": n})
	})

	admin.Post("/gamify/recalc/:userId", func(c *fiber.Ctx) error {
		user, err := progression.RecalculateFromHistory(c.UserContext(), c.Params("userId"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": "xp recalculated",
			"user_id": user.ID,
			"xp":      user.XP,
			"level":   user.Level,
			"tier":    user.Tier,
		})
	})
}
