package utils

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var Validate = validator.New()

// BindRequest parses and validates the JSON body into req. A non-nil result is the 400 body.
func BindRequest(c *fiber.Ctx, req any) fiber.Map {
	if err := c.BodyParser(req); err != nil {
		return fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		}
	}

	if err := Validate.Struct(req); err != nil {
		return fiber.Map{
			"error":   "Validation failed",
			"details": err.Error(),
		}
	}
	return nil
}
