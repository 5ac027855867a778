// handlers/tokens.go
package handlers

import (
	"block-engage-system/middleware"
	"block-engage-system/models"
	"block-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

type TokenHandler struct {
	Ledger *services.LedgerService
}

func SetupTokenRoutes(app *fiber.App, ledger *services.LedgerService) {
	h := &TokenHandler{Ledger: ledger}

	secured := app.Group("/api/v1", middleware.UserContextMiddleware())

	secured.Get("/accounts/me", h.GetMyAccount)
	secured.Get("/accounts/me/activities", h.GetMyActivities)
	secured.Get("/accounts/:id", h.GetAccount)
	secured.Get("/leaderboard", h.GetLeaderboard)
	secured.Post("/tokens/gift", h.GiftTokens)
	secured.Post("/tokens/recognize", h.RecognizePeer)

	admin := secured.Group("/admin")
	admin.Post("/tokens/award", h.AdminAward)
}

func (h *TokenHandler) GetMyAccount(c *fiber.Ctx) error {
	account, err := h.Ledger.GetAccount(middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

func (h *TokenHandler) GetAccount(c *fiber.Ctx) error {
	account, err := h.Ledger.GetAccount(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(account)
}

func (h *TokenHandler) GetMyActivities(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	acts, err := h.Ledger.GetActivities(middleware.ActorID(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"activities": acts})
}

func (h *TokenHandler) GetLeaderboard(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	accounts, err := h.Ledger.Leaderboard(limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"leaderboard": accounts})
}

func (h *TokenHandler) GiftTokens(c *fiber.Ctx) error {
	var req struct {
		RecipientID string `json:"recipient_id"`
		Amount      int64  `json:"amount"`
		Message     string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.Ledger.GiftTokens(middleware.ActorID(c), req.RecipientID, req.Amount, req.Message); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "gifted"})
}

func (h *TokenHandler) RecognizePeer(c *fiber.Ctx) error {
	var req struct {
		RecipientID string `json:"recipient_id"`
		Amount      int64  `json:"amount"`
		Message     string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.Ledger.RecognizePeer(middleware.ActorID(c), req.RecipientID, req.Amount, req.Message); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "recognized"})
}

// AdminAward credits tokens outside the normal lifecycles, e.g. one-off
// engagement rewards. Admin only.
func (h *TokenHandler) AdminAward(c *fiber.Ctx) error {
	if middleware.ActorRole(c) != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	}
	var req struct {
		AccountID string `json:"account_id"`
		Amount    int64  `json:"amount"`
		Detail    string `json:"detail"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	act, err := h.Ledger.Credit(req.AccountID, req.Amount, models.ActivityAdminAward, req.Detail)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(act)
}
