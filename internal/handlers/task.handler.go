package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/handlers/middleware"
	"hkboard/internal/services"
	"hkboard/internal/types"
	"hkboard/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type TaskHandler struct {
	Handler
	board *services.BoardService
}

func NewTaskHandler(app app.App, router fiber.Router) *TaskHandler {
	return &TaskHandler{
		Handler: newHandler(app, router, "task.handler"),
		board:   app.Services.Board,
	}
}

func (h *TaskHandler) Register() {
	tasks := h.router.Group("/tasks", h.middleware.RequireSession())
	tasks.Get("/", h.getTasks)
	tasks.Post("/", h.addTask)
	tasks.Put("/:id/complete", h.completeTask)
	tasks.Put("/:id/reopen", h.reopenTask)
}

func (h *TaskHandler) getTasks(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tasks": h.board.Tasks()})
}

func (h *TaskHandler) addTask(c *fiber.Ctx) error {
	log := h.log.Function("addTask")
	session, _ := middleware.GetSession(c)

	var req types.AddTaskRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	task, err := h.board.AddTask(c.UserContext(), session.Actor(), req.RoomNumber, req.Message)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) completeTask(c *fiber.Ctx) error {
	session, _ := middleware.GetSession(c)

	task, err := h.board.CompleteTask(c.UserContext(), session.Actor(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log.Function("completeTask"), err)
	}
	return c.JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) reopenTask(c *fiber.Ctx) error {
	session, _ := middleware.GetSession(c)

	task, err := h.board.ReopenTask(c.UserContext(), session.Actor(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log.Function("reopenTask"), err)
	}
	return c.JSON(fiber.Map{"task": task})
}
