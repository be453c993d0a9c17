package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/config"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/database"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dispatch"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dto"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/intake"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/logging"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/routes"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.SlackBotToken == "" {
		slog.Error("SLACK_BOT_TOKEN environment variable is required")
		os.Exit(1)
	}
	if cfg.SlackSigningSecret == "" {
		slog.Error("SLACK_SIGNING_SECRET environment variable is required")
		os.Exit(1)
	}

	// Database (optional, ERROR+ log sink)
	var extraLogHandlers []slog.Handler
	var pgLogHandler *logging.PGHandler
	cleanupDone := make(chan struct{})
	if cfg.DatabaseEnabled() {
		if err := database.Connect(cfg); err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		pgLogHandler = logging.NewPGHandler(database.DB)
		extraLogHandlers = append(extraLogHandlers, pgLogHandler)
		logging.StartCleanup(database.DB, logging.DefaultRetention, cleanupDone)
	}

	// Dispatch queue
	memStats := dispatch.NewMemoryStatsStore()
	queueOpts := []dispatch.Option{dispatch.WithStats(memStats)}

	var rdb *redis.Client
	var redisStats *dispatch.RedisStatsStore
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		redisStats = dispatch.NewRedisStatsStore(rdb)
		queueOpts = append(queueOpts, dispatch.WithStats(redisStats))
	}

	gw := gateway.NewSlackGateway(cfg.SlackBotToken, cfg.SlackTimeout, cfg.SlackAPIURL)
	queue := dispatch.New(gw, cfg.DispatchInterval, queueOpts...)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	queue.Start(queueCtx)

	// Log channel mirror
	build := logging.ReadBuildInfo()
	if cfg.LogChannel != "" {
		extraLogHandlers = append(extraLogHandlers,
			logging.NewSlackHandler(queue, cfg.LogChannel, cfg.LogMirrorLevel, cfg.Env, build))
	}
	logging.Attach(extraLogHandlers...)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Env,
			Release:          build.GitSHA,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Services
	verdict := services.NewVerdictClient(cfg.VerdictAPIURL, cfg.VerdictAPIKey, cfg.VerdictTimeout)
	if cfg.VerdictAPIURL == "" {
		slog.Warn("VERDICT_API_URL not set; every classification will be reported as not recorded")
	}
	scanner := services.NewScanClient(cfg.ScanAPIURL, cfg.ScanAPIKey, cfg.ScanPerMinute, 0)
	reviewService := services.NewReviewService(queue, verdict, scanner, services.ReviewConfig{
		ReviewChannel:      cfg.ReviewChannel,
		FeedChannel:        cfg.FeedChannel,
		VerdictSuccessBody: cfg.VerdictSuccessBody,
		ReviewerEmojis:     cfg.ReviewerEmojis,
	}, slog.Default())

	// Kafka intake (optional)
	var consumer *intake.Consumer
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumerDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		consumer = intake.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, reviewService)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(consumerCtx); err != nil {
				slog.Error("intake consumer stopped", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler(database.DB, rdb, queue)
	domainHandler := handlers.NewDomainHandler(reviewService, cfg.IntakeKey)
	slackHandler := handlers.NewSlackHandler(reviewService, cfg.SlackSigningSecret)
	adminHandler := handlers.NewAdminHandler(queue, memStats, redisStats)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	routes.Setup(app, cfg, healthHandler, domainHandler, slackHandler, adminHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "git_sha", build.GitSHA)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("app starting", "environment", cfg.Env)

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	stopConsumer()
	<-consumerDone
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			slog.Warn("intake consumer close error", "error", err)
		}
	}

	// Jobs still queued (including the log mirror's) get their chance to run.
	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := queue.Close(drainCtx); err != nil {
		slog.Warn("dispatch queue did not drain", "error", err)
	}
	cancel()
	stopQueue()

	close(cleanupDone)
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
