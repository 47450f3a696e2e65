package structured

import (
	"context"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/types"
	"hkboard/internal/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func (h Handler) registerTasks() {
	tasks := h.router.Group("/tasks")
	tasks.Get("/", h.getTasks)
	tasks.Post("/", h.createTask)
	tasks.Put("/", h.replaceTasks)
	tasks.Put("/:id/complete", h.completeTask)
	tasks.Put("/:id/reopen", h.reopenTask)
}

func (h Handler) getTasks(c *fiber.Ctx) error {
	tasks, err := h.repos.Task.GetAll(c.UserContext(), h.read(c.UserContext()))
	if err != nil {
		return h.fail(c, "getTasks", err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return c.JSON(tasks)
}

// createTask keeps the client's id so a retried create is a no-op.
func (h Handler) createTask(c *fiber.Ctx) error {
	var task models.Task
	if err := c.BodyParser(&task); err != nil {
		return badRequest(c, err)
	}
	if task.ID == "" {
		task.ID = models.NewTaskID()
	}
	if task.Timestamp.IsZero() {
		task.Timestamp = time.Now()
	}
	if err := task.Validate(); err != nil {
		return badRequest(c, err)
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Task.Create(ctx, tx, &task)
	})
	if err != nil {
		return h.fail(c, "createTask", err)
	}

	return c.Status(fiber.StatusCreated).JSON(types.TaskResponse{Success: true, Task: task})
}

func (h Handler) completeTask(c *fiber.Ctx) error {
	var req types.CompleteTaskRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	at := time.Now()
	if req.CompletedAt != nil {
		at = *req.CompletedAt
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Task.Complete(ctx, tx, c.Params("id"), req.CompletedBy, at)
	})
	if err != nil {
		return h.fail(c, "completeTask", err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h Handler) reopenTask(c *fiber.Ctx) error {
	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Task.Reopen(ctx, tx, c.Params("id"))
	})
	if err != nil {
		return h.fail(c, "reopenTask", err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h Handler) replaceTasks(c *fiber.Ctx) error {
	var tasks []models.Task
	if err := c.BodyParser(&tasks); err != nil {
		return badRequest(c, err)
	}
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return badRequest(c, err)
		}
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Task.ReplaceAll(ctx, tx, tasks)
	})
	if err != nil {
		return h.fail(c, "replaceTasks", err)
	}

	return c.JSON(fiber.Map{"success": true, "count": len(tasks)})
}
