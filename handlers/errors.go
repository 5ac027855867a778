// handlers/errors.go
package handlers

import (
	"errors"
	"log"

	"block-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors to HTTP responses. Expected domain
// errors get their proper status; anything else is a 500 and gets logged.
func respondError(c *fiber.Ctx, err error) error {
	var transition *services.InvalidTransitionError
	var funds *services.InsufficientFundsError
	var capacity *services.CapacityError

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, services.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrSelfTarget),
		errors.Is(err, services.ErrUnsupportedMetric):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNoActiveRound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadySettled),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrNoTickets),
		errors.Is(err, services.ErrRoundNotEnded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &transition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": transition.Error()})
	case errors.As(err, &capacity):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": capacity.Error()})
	case errors.As(err, &funds):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "insufficient balance",
			"required":  funds.Required,
			"available": funds.Available,
		})
	}

	log.Printf("❌ [HTTP] Unexpected error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
