package structured

import (
	"context"
	"fmt"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/types"
	"hkboard/internal/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func (h Handler) registerArchives() {
	h.router.Post("/archive", h.createArchive)

	archives := h.router.Group("/archives")
	archives.Get("/", h.getArchives)
	archives.Put("/", h.replaceArchives)
	archives.Delete("/:date", h.deleteArchive)
}

func (h Handler) getArchives(c *fiber.Ctx) error {
	archives, err := h.repos.Archive.GetAll(c.UserContext(), h.read(c.UserContext()))
	if err != nil {
		return h.fail(c, "getArchives", err)
	}
	if archives == nil {
		archives = []models.Archive{}
	}
	return c.JSON(archives)
}

func validArchiveDate(date string) error {
	if _, err := utils.ParseCalendarDate(date); err != nil {
		return fmt.Errorf("invalid archive date %q: %w", date, err)
	}
	return nil
}

// createArchive is idempotent per date: an existing archive is kept and reported as not created.
func (h Handler) createArchive(c *fiber.Ctx) error {
	var archive models.Archive
	if err := c.BodyParser(&archive); err != nil {
		return badRequest(c, err)
	}
	if err := validArchiveDate(archive.Date); err != nil {
		return badRequest(c, err)
	}
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = time.Now()
	}

	var created bool
	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		var err error
		created, err = h.repos.Archive.Create(ctx, tx, &archive)
		return err
	})
	if err != nil {
		return h.fail(c, "createArchive", err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(types.ArchiveResponse{Success: true, Created: created, Archive: archive})
}

func (h Handler) deleteArchive(c *fiber.Ctx) error {
	date := c.Params("date")
	if err := validArchiveDate(date); err != nil {
		return badRequest(c, err)
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Archive.Delete(ctx, tx, date)
	})
	if err != nil {
		return h.fail(c, "deleteArchive", err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h Handler) replaceArchives(c *fiber.Ctx) error {
	var archives []models.Archive
	if err := c.BodyParser(&archives); err != nil {
		return badRequest(c, err)
	}
	for _, archive := range archives {
		if err := validArchiveDate(archive.Date); err != nil {
			return badRequest(c, err)
		}
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Archive.ReplaceAll(ctx, tx, archives)
	})
	if err != nil {
		return h.fail(c, "replaceArchives", err)
	}

	return c.JSON(fiber.Map{"success": true, "count": len(archives)})
}
