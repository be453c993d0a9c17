package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dto"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/services"
)

// ReportSubmitter starts the review of a reported domain.
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, domain, requestedBy string) (string, error)
}

type DomainHandler struct {
	review    ReportSubmitter
	intakeKey string
}

func NewDomainHandler(review ReportSubmitter, intakeKey string) *DomainHandler {
	return &DomainHandler{review: review, intakeKey: intakeKey}
}

// NewDomain serves GET /newDomain?domain=&key=, the query-string intake
// used by existing reporters.
func (h *DomainHandler) NewDomain(c *fiber.Ctx) error {
	slog.Info("new domain endpoint hit", "component", "intake")

	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Key is required",
		})
	}
	if h.intakeKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.intakeKey)) != 1 {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized request",
		})
	}

	return h.submit(c, c.Query("domain"), "newDomain")
}

// Submit serves POST /api/domains. The intake key is checked by middleware.
func (h *DomainHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	requestedBy := strings.TrimSpace(req.RequestedBy)
	if requestedBy == "" {
		requestedBy = "api"
	}
	return h.submit(c, req.Domain, requestedBy)
}

func (h *DomainHandler) submit(c *fiber.Ctx, domain, requestedBy string) error {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Domain is required",
		})
	}

	id, err := h.review.SubmitReport(c.UserContext(), domain, requestedBy)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: verr.Error(),
			})
		}
		slog.Error("failed to submit domain for review", "component", "intake", "domain", domain, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal Server Error",
		})
	}

	return c.JSON(dto.SubmitDomainResponse{
		Message:         "Message sent",
		ReviewMessageID: id,
	})
}
