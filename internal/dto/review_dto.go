package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dispatch"
)

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	DB         string `json:"db,omitempty"`
	Redis      string `json:"redis,omitempty"`
	QueueDepth int    `json:"queue_depth"`
}

type SubmitDomainRequest struct {
	Domain      string `json:"domain"`
	RequestedBy string `json:"requested_by"`
}

type SubmitDomainResponse struct {
	Message         string `json:"message"`
	ReviewMessageID string `json:"review_message_id,omitempty"`
}

type DispatchStatsResponse struct {
	QueueDepth     int                                 `json:"queue_depth"`
	IntervalMs     int64                               `json:"interval_ms"`
	Total          dispatch.Counters                   `json:"total"`
	ByKind         map[dispatch.Kind]dispatch.Counters `json:"by_kind"`
	LastExecutedAt *time.Time                          `json:"last_executed_at,omitempty"`
	// Persisted holds the Redis counters, which survive restarts.
	Persisted map[dispatch.Kind]dispatch.Counters `json:"persisted,omitempty"`
}
