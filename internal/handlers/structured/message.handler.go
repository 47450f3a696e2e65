package structured

import (
	"context"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/types"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func (h Handler) registerMessages() {
	messages := h.router.Group("/messages")
	messages.Get("/", h.getMessages)
	messages.Post("/", h.createMessage)
	messages.Put("/", h.replaceMessages)
	messages.Put("/:id", h.updateMessage)
}

func (h Handler) getMessages(c *fiber.Ctx) error {
	messages, err := h.repos.Message.GetAll(c.UserContext(), h.read(c.UserContext()))
	if err != nil {
		return h.fail(c, "getMessages", err)
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return c.JSON(messages)
}

func (h Handler) createMessage(c *fiber.Ctx) error {
	var message models.ChatMessage
	if err := c.BodyParser(&message); err != nil {
		return badRequest(c, err)
	}
	if message.ID == "" {
		message.ID = models.NewMessageID()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	if err := message.Validate(); err != nil {
		return badRequest(c, err)
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Message.Create(ctx, tx, &message)
	})
	if err != nil {
		return h.fail(c, "createMessage", err)
	}

	return c.Status(fiber.StatusCreated).JSON(types.MessageResponse{Success: true, Message: message})
}

// updateMessage rewrites the content and task snapshot of a task notice.
func (h Handler) updateMessage(c *fiber.Ctx) error {
	var message models.ChatMessage
	if err := c.BodyParser(&message); err != nil {
		return badRequest(c, err)
	}
	message.ID = c.Params("id")
	if err := message.Validate(); err != nil {
		return badRequest(c, err)
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Message.Update(ctx, tx, &message)
	})
	if err != nil {
		return h.fail(c, "updateMessage", err)
	}

	return c.JSON(types.MessageResponse{Success: true, Message: message})
}

func (h Handler) replaceMessages(c *fiber.Ctx) error {
	var messages []models.ChatMessage
	if err := c.BodyParser(&messages); err != nil {
		return badRequest(c, err)
	}
	for _, message := range messages {
		if err := message.Validate(); err != nil {
			return badRequest(c, err)
		}
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Message.ReplaceAll(ctx, tx, messages)
	})
	if err != nil {
		return h.fail(c, "replaceMessages", err)
	}

	return c.JSON(fiber.Map{"success": true, "count": len(messages)})
}
