// handlers/tasks.go
package handlers

import (
	"time"

	"block-engage-system/middleware"
	"block-engage-system/models"
	"block-engage-system/services"

	"github.com/gofiber/fiber/v2"
)

type TaskHandler struct {
	Tasks *services.TaskService
}

func SetupTaskRoutes(app *fiber.App, tasks *services.TaskService) {
	h := &TaskHandler{Tasks: tasks}

	secured := app.Group("/api/v1", middleware.UserContextMiddleware())

	secured.Post("/tasks", h.CreateTask)
	secured.Get("/tasks", h.ListTasks)
	secured.Get("/tasks/:id", h.GetTask)
	secured.Post("/tasks/:id/start", h.StartTask)
	secured.Post("/tasks/:id/complete", h.CompleteTask)
	secured.Post("/tasks/:id/verify", h.VerifyTask)
	secured.Post("/tasks/:id/cancel", h.CancelTask)
}

func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		AssigneeID  string `json:"assignee_id"`
		TokenReward int64  `json:"token_reward"`
		DueDate     string `json:"due_date,omitempty"` // RFC3339
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "due_date must be RFC3339"})
		}
		dueDate = &parsed
	}

	task, err := h.Tasks.CreateTask(middleware.ActorID(c), middleware.ActorRole(c), services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.TaskPriority(req.Priority),
		AssigneeID:  req.AssigneeID,
		TokenReward: req.TokenReward,
		DueDate:     dueDate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	accountID := c.Query("assignee_id", middleware.ActorID(c))
	status := models.TaskStatus(c.Query("status"))
	tasks, err := h.Tasks.ListTasks(accountID, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	task, err := h.Tasks.GetTask(c.Params("id"), middleware.ActorID(c), middleware.ActorRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

func (h *TaskHandler) StartTask(c *fiber.Ctx) error {
	task, err := h.Tasks.StartTask(c.Params("id"), middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

func (h *TaskHandler) CompleteTask(c *fiber.Ctx) error {
	task, err := h.Tasks.CompleteTask(c.Params("id"), middleware.ActorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

func (h *TaskHandler) VerifyTask(c *fiber.Ctx) error {
	task, err := h.Tasks.VerifyTask(c.Params("id"), middleware.ActorID(c), middleware.ActorRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

func (h *TaskHandler) CancelTask(c *fiber.Ctx) error {
	task, err := h.Tasks.CancelTask(c.Params("id"), middleware.ActorID(c), middleware.ActorRole(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}
