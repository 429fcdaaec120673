package handlers

import (
	"errors"

	"content-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// errorResponse maps engine errors onto HTTP statuses. The reason string is
// safe for direct display; raw internals never cross the boundary.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrAlreadyAwarded),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrSettlementFailed):
		status = fiber.StatusBadGateway
	}
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
