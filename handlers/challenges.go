// handlers/challenges.go
package handlers

import (
	"time"

	"block-engage-system/middleware"
	"block-engage-system/models"
	"block-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

type ChallengeHandler struct {
	Challenges *services.ChallengeService
}

func SetupChallengeRoutes(app *fiber.App, challenges *services.ChallengeService) {
	h := &ChallengeHandler{Challenges: challenges}

	secured := app.Group("/api/v1", middleware.UserContextMiddleware())

	secured.Post("/challenges", h.CreateChallenge)
	secured.Get("/challenges", h.ListChallenges)
	secured.Get("/challenges/:id", h.GetChallenge)
	secured.Post("/challenges/:id/accept", h.AcceptChallenge)
	secured.Post("/challenges/:id/decline", h.DeclineChallenge)
	secured.Post("/challenges/:id/cancel", h.CancelChallenge)

	admin := secured.Group("/admin")
	admin.Post("/challenges/:id/finalize", h.FinalizeChallenge)
}

func (h *ChallengeHandler) CreateChallenge(c *fiber.Ctx) error {
	var req struct {
		OpponentID   string `json:"opponent_id"`
		Stake        int64  `json:"stake"`
		Metric       string `json:"metric"`
		TargetValue  int64  `json:"target_value"`
		DurationDays int    `json:"duration_days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	duration := time.Duration(req.DurationDays) * 24 * time.Hour
	ch, err := h.Challenges.CreateChallenge(
		middleware.ActorID(c), req.OpponentID, req.Stake,
		models.ChallengeMetric(req.Metric), req.TargetValue, duration,
	)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ch)
}

func (h *ChallengeHandler) ListChallenges(c *fiber.Ctx) error {
	status := models.ChallengeStatus(c.Query("status"))
	list, err := h.Challenges.ListChallenges(middleware.ActorID(c), status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"challenges": list})
}

func (h *ChallengeHandler) GetChallenge(c *fiber.Ctx) error {
	ch, err := h.Challenges.GetChallenge(c.Params("id"), middleware.ActorID(c), middleware.ActorRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ch)
}

func (h *ChallengeHandler) AcceptChallenge(c *fiber.Ctx) error {
	ch, err := h.Challenges.AcceptChallenge(c.Params("id"), middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ch)
}

func (h *ChallengeHandler) DeclineChallenge(c *fiber.Ctx) error {
	ch, err := h.Challenges.DeclineChallenge(c.Params("id"), middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ch)
}

func (h *ChallengeHandler) CancelChallenge(c *fiber.Ctx) error {
	ch, err := h.Challenges.CancelChallenge(c.Params("id"), middleware.ActorID(c), middleware.ActorRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ch)
}

// FinalizeChallenge settles a challenge immediately instead of waiting for
// the expiry sweep. Admin only: settlement is normally scheduler-driven.
func (h *ChallengeHandler) FinalizeChallenge(c *fiber.Ctx) error {
	if middleware.ActorRole(c) != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	}
	ch, err := h.Challenges.FinalizeChallenge(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ch)
}
