package handlers

import (
	"errors"

	"bounty-platform/middleware"
	"bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service error kinds onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	switch {
	case errors.Is(err, services.ErrValidation):
		status, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrForbidden):
		status, msg = fiber.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrNotFound):
		status, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrConflict):
		status, msg = fiber.StatusConflict, err.Error()
	case errors.As(err, &fe):
		status, msg = fe.Code, fe.Message
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// actor returns the caller or aborts with 401.
func actor(c *fiber.Ctx) (services.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return services.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "missing user context")
	}
	return a, nil
}
