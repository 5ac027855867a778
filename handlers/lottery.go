// handlers/lottery.go
package handlers

import (
	"block-engage-system/middleware"
	"block-engage-system/models"
	"block-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

type LotteryHandler struct {
	Lottery *services.LotteryService
}

func SetupLotteryRoutes(app *fiber.App, lottery *services.LotteryService) {
	h := &LotteryHandler{Lottery: lottery}

	secured := app.Group("/api/v1", middleware.UserContextMiddleware())

	secured.Get("/lottery/current", h.GetCurrentRound)
	secured.Get("/lottery/history", h.GetHistory)
	secured.Get("/lottery/current/tickets", h.GetMyTickets)
	secured.Post("/lottery/tickets", h.BuyTickets)

	admin := secured.Group("/admin")
	admin.Post("/lottery/draw", h.Draw)
	admin.Post("/lottery/tickets/grant", h.GrantTicket)
}

func (h *LotteryHandler) GetCurrentRound(c *fiber.Ctx) error {
	round, err := h.Lottery.CurrentRound()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(round)
}

func (h *LotteryHandler) GetHistory(c *fiber.Ctx) error {
	rounds, err := h.Lottery.History(c.QueryInt("limit", 10))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"rounds": rounds})
}

func (h *LotteryHandler) GetMyTickets(c *fiber.Ctx) error {
	round, err := h.Lottery.CurrentRound()
	if err != nil {
		return respondError(c, err)
	}
	tickets, err := h.Lottery.TicketsFor(round.ID, middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"round": round, "tickets": tickets})
}

func (h *LotteryHandler) BuyTickets(c *fiber.Ctx) error {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	tickets, err := h.Lottery.BuyTickets(middleware.ActorID(c), req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"tickets": tickets})
}

// Draw settles the current round out of schedule. Admin only; the weekly
// job runs the same procedure.
func (h *LotteryHandler) Draw(c *fiber.Ctx) error {
	if middleware.ActorRole(c) != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	}
	round, err := h.Lottery.Draw()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(round)
}

func (h *LotteryHandler) GrantTicket(c *fiber.Ctx) error {
	if middleware.ActorRole(c) != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	}
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.Lottery.IssueTicket(req.AccountID, models.TicketFromAdmin); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "granted"})
}
