package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/config"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dto"
)

const IntakeKeyHeader = "X-Intake-Key"

// IntakeKeyRequired guards report intake with the shared INTAKE_KEY. With no
// key configured every request is refused.
func IntakeKeyRequired(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IntakeKeyHeader)
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Key is required",
			})
		}
		if cfg.IntakeKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(cfg.IntakeKey)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized request",
			})
		}
		return c.Next()
	}
}
