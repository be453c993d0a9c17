package middleware

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/config"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dto"
)

// AdminRequired admits tokens whose "sub" claim is listed in ADMIN_USER_IDS.
// It must run after JWTProtected.
func AdminRequired(cfg *config.Config) fiber.Handler {
	admins := cfg.AdminUserIDs

	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid claims",
			})
		}

		if !slices.Contains(admins, sub) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}
