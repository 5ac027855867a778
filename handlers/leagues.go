// handlers/leagues.go
package handlers

import (
	"time"

	"block-engage-system/middleware"
	"block-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

type LeagueHandler struct {
	Leagues *services.LeagueService
}

func SetupLeagueRoutes(app *fiber.App, leagues *services.LeagueService) {
	h := &LeagueHandler{Leagues: leagues}

	secured := app.Group("/api/v1", middleware.UserContextMiddleware())

	secured.Post("/leagues", h.CreateLeague)
	secured.Get("/leagues", h.ListLeagues)
	secured.Get("/leagues/:id/standings", h.GetStandings)
	secured.Get("/leagues/:id/weeks/:week/scores", h.GetWeeklyScores)
	secured.Post("/leagues/:id/join", h.JoinLeague)
	secured.Post("/leagues/:id/leave", h.LeaveLeague)

	admin := secured.Group("/admin")
	admin.Post("/leagues/:id/score-week", h.ScoreWeek)
	admin.Post("/leagues/:id/end-season", h.EndSeason)
}

func (h *LeagueHandler) CreateLeague(c *fiber.Ctx) error {
	var req struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Tier         int    `json:"tier"`
		MaxMembers   int    `json:"max_members"`
		DurationDays int    `json:"duration_days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	league, err := h.Leagues.CreateLeague(middleware.ActorID(c), middleware.ActorRole(c), services.CreateLeagueInput{
		Name:        req.Name,
		Description: req.Description,
		Tier:        req.Tier,
		MaxMembers:  req.MaxMembers,
		Duration:    time.Duration(req.DurationDays) * 24 * time.Hour,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(league)
}

func (h *LeagueHandler) ListLeagues(c *fiber.Ctx) error {
	leagues, err := h.Leagues.ListLeagues()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"leagues": leagues})
}

func (h *LeagueHandler) GetStandings(c *fiber.Ctx) error {
	standings, err := h.Leagues.Standings(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"standings": standings})
}

func (h *LeagueHandler) GetWeeklyScores(c *fiber.Ctx) error {
	week, err := c.ParamsInt("week")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "week must be a number"})
	}
	year := c.QueryInt("year", time.Now().UTC().Year())
	scores, err := h.Leagues.WeeklyScores(c.Params("id"), week, year)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"scores": scores})
}

func (h *LeagueHandler) JoinLeague(c *fiber.Ctx) error {
	membership, err := h.Leagues.JoinLeague(c.Params("id"), middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(membership)
}

func (h *LeagueHandler) LeaveLeague(c *fiber.Ctx) error {
	if err := h.Leagues.LeaveLeague(c.Params("id"), middleware.ActorID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "left"})
}

// ScoreWeek recomputes one week's scores out of schedule. Admin only;
// the weekly job runs the same procedure.
func (h *LeagueHandler) ScoreWeek(c *fiber.Ctx) error {
	if middleware.ActorRole(c) != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	}
	var req struct {
		Week int `json:"week"`
		Year int `json:"year"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.Leagues.ScoreWeek(c.Params("id"), req.Week, req.Year); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "scored"})
}

func (h *LeagueHandler) EndSeason(c *fiber.Ctx) error {
	league, err := h.Leagues.EndSeason(c.Params("id"), middleware.ActorRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(league)
}
