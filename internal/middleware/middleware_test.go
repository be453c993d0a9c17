package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/config"
)

const testSecret = "test-secret"

func signed(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func adminApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/admin", JWTProtected(cfg), AdminRequired(cfg), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAdminRequired(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret, AdminUserIDs: []string{"U1", "U2"}}
	app := adminApp(cfg)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"no token", "", fiber.StatusUnauthorized},
		{"garbage token", "Bearer nope", fiber.StatusUnauthorized},
		{"not an admin", "Bearer " + signed(t, "U9"), fiber.StatusForbidden},
		{"admin", "Bearer " + signed(t, "U2"), fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestIntakeKeyRequired(t *testing.T) {
	app := fiber.New()
	app.Post("/intake", IntakeKeyRequired(&config.Config{IntakeKey: "k1"}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for key, status := range map[string]int{
		"":      fiber.StatusBadRequest,
		"wrong": fiber.StatusForbidden,
		"k1":    fiber.StatusNoContent,
	} {
		req := httptest.NewRequest("POST", "/intake", nil)
		if key != "" {
			req.Header.Set(IntakeKeyHeader, key)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, "key %q", key)
	}
}

func TestIntakeKeyRequired_UnsetKeyRefusesAll(t *testing.T) {
	app := fiber.New()
	app.Post("/intake", IntakeKeyRequired(&config.Config{}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest("POST", "/intake", nil)
	req.Header.Set(IntakeKeyHeader, "anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
