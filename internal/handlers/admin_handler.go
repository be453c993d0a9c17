package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dispatch"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dto"
)

type AdminHandler struct {
	queue QueueInfo
	stats *dispatch.MemoryStatsStore
	// redisStats is nil when Redis is not configured.
	redisStats *dispatch.RedisStatsStore
}

func NewAdminHandler(queue QueueInfo, stats *dispatch.MemoryStatsStore, redisStats *dispatch.RedisStatsStore) *AdminHandler {
	return &AdminHandler{queue: queue, stats: stats, redisStats: redisStats}
}

// DispatchStats serves GET /api/admin/dispatch/stats.
func (h *AdminHandler) DispatchStats(c *fiber.Ctx) error {
	resp := dto.DispatchStatsResponse{
		QueueDepth: h.queue.Depth(),
		IntervalMs: h.queue.Interval().Milliseconds(),
		Total:      h.stats.Total(),
		ByKind:     h.stats.ByKind(),
	}
	if last := h.stats.LastExecuted(); !last.IsZero() {
		resp.LastExecutedAt = &last
	}

	if h.redisStats != nil {
		persisted, err := h.redisStats.Totals(c.UserContext())
		if err != nil {
			slog.Warn("failed to read persisted dispatch stats", "component", "admin", "error", err)
		} else {
			resp.Persisted = persisted
		}
	}

	return c.JSON(resp)
}
