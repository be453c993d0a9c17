package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dto"
)

// QueueInfo is the read-only view of the dispatch queue.
type QueueInfo interface {
	Depth() int
	Interval() time.Duration
}

// HealthHandler reports liveness. The database and Redis are optional and
// only checked when configured.
type HealthHandler struct {
	db    *gorm.DB
	rdb   *redis.Client
	queue QueueInfo
}

func NewHealthHandler(db *gorm.DB, rdb *redis.Client, queue QueueInfo) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, queue: queue}
}

func (h *HealthHandler) Index(c *fiber.Ctx) error {
	return c.SendString("phish-review is running")
}

func (h *HealthHandler) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status:     "ok",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		QueueDepth: h.queue.Depth(),
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if h.db != nil {
		resp.DB = "ok"
		if sqlDB, err := h.db.DB(); err != nil {
			resp.DB = "unhealthy: " + err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			resp.DB = "unhealthy: " + err.Error()
		}
	}
	if h.rdb != nil {
		resp.Redis = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			resp.Redis = "unhealthy: " + err.Error()
		}
	}

	return c.JSON(resp)
}
