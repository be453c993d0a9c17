package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/config"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	domainHandler *handlers.DomainHandler,
	slackHandler *handlers.SlackHandler,
	adminHandler *handlers.AdminHandler,
) {
	app.Get("/", healthHandler.Index)
	app.Get("/ping", healthHandler.Ping)
	app.Get("/up", healthHandler.Ping)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Intake: 30 req/min per IP
	intakeLimit := limiter.New(limiter.Config{
		Max:               30,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
	app.Get("/newDomain", intakeLimit, domainHandler.NewDomain)

	// Slack interactions are signed, no JWT
	app.Post("/slack/actions", slackHandler.Interactions)

	api := app.Group("/api")
	api.Get("/health", healthHandler.Check)
	api.Post("/domains", intakeLimit, middleware.IntakeKeyRequired(cfg), domainHandler.Submit)

	// Admin (JWT + ADMIN_USER_IDS)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(cfg))
	admin.Get("/dispatch/stats", adminHandler.DispatchStats)
}
