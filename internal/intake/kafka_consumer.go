// Package intake consumes reported domains from a Kafka topic and submits
// them for review.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/services"
)

// ReportMessage is the topic payload. A value that is not a JSON object is
// read as a bare domain.
type ReportMessage struct {
	Domain      string `json:"domain"`
	RequestedBy string `json:"requested_by"`
}

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

type Submitter interface {
	SubmitReport(ctx context.Context, domain, requestedBy string) (string, error)
}

type Consumer struct {
	reader  Reader
	review  Submitter
	backoff time.Duration
	logger  *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, review Submitter) *Consumer {
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits
	})
	return newConsumer(r, review)
}

func newConsumer(r Reader, review Submitter) *Consumer {
	return &Consumer{
		reader:  r,
		review:  review,
		backoff: 500 * time.Millisecond,
		logger:  slog.Default().With("component", "intake"),
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// Run consumes until ctx is cancelled. Every message is committed once
// handled, including ones that fail: a resubmitted report would post a
// second review message.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("intake consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("intake fetch failed", "error", err)
			select {
			case <-time.After(c.backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		c.handle(ctx, m)

		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := c.reader.CommitMessages(cctx, m); err != nil {
			c.logger.Warn("intake commit failed", "offset", m.Offset, "error", err)
		}
		cancel()
	}
}

func (c *Consumer) handle(ctx context.Context, m kgo.Message) {
	report, err := parseReport(m.Value)
	if err != nil {
		c.logger.Warn("intake message dropped", "offset", m.Offset, "error", err)
		return
	}

	id, err := c.review.SubmitReport(ctx, report.Domain, report.RequestedBy)
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.logger.Warn("intake domain rejected", "domain", report.Domain, "error", err)
	case err != nil:
		c.logger.Error("intake submit failed", "domain", report.Domain, "error", err)
	default:
		c.logger.Info("intake domain submitted", "domain", report.Domain, "review_message_id", id)
	}
}

func parseReport(value []byte) (ReportMessage, error) {
	raw := strings.TrimSpace(string(value))
	if raw == "" {
		return ReportMessage{}, errors.New("empty message")
	}

	var r ReportMessage
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return ReportMessage{}, err
		}
	} else {
		r.Domain = raw
	}
	r.Domain = strings.TrimSpace(r.Domain)
	if r.Domain == "" {
		return ReportMessage{}, errors.New("missing domain")
	}
	if r.RequestedBy == "" {
		r.RequestedBy = "kafka"
	}
	return r, nil
}
