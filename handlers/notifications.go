package handlers

import (
	"time"

	"bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(r fiber.Router, notes *services.NotificationService) {
	r.Get("/notifications", func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return respondError(c, err)
		}
		list, err := notes.List(c.UserContext(), a.UserID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Post("/notifications/read-all", func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return respondError(c, err)
		}
		n, err := notes.MarkAllRead(c.UserContext(), a.UserID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"updated": n})
	})

	r.Post("/notifications/read/:id", func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return respondError(c, err)
		}
		if err := notes.MarkRead(c.UserContext(), a.UserID, c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "notification marked as read"})
	})
}

// NotificationStream serves GET /notifications/stream. It expects the caller to be
// set by SSEAuthMiddleware.
func NotificationStream(notes *services.NotificationService, keepAlive time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return respondError(c, err)
		}
		return notes.StreamSSE(c, a.UserID, keepAlive)
	}
}
