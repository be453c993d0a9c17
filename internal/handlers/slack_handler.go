package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/slack-go/slack"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dto"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/token"
)

// ActionHandler applies one reviewer interaction.
type ActionHandler interface {
	HandleAction(ctx context.Context, actionID, value, user string) error
}

// SlackHandler receives interactive component callbacks.
type SlackHandler struct {
	actions       ActionHandler
	signingSecret string
	timeout       time.Duration
	// run executes acknowledged work; tests replace it to run inline.
	run func(func())
}

func NewSlackHandler(actions ActionHandler, signingSecret string) *SlackHandler {
	return &SlackHandler{
		actions:       actions,
		signingSecret: signingSecret,
		timeout:       2 * time.Minute,
		run:           func(f func()) { go f() },
	}
}

// Interactions serves POST /slack/actions. Slack expects an answer within
// three seconds, so the request is acknowledged before the actions run.
func (h *SlackHandler) Interactions(c *fiber.Ctx) error {
	if err := h.verify(c); err != nil {
		slog.Warn("slack signature rejected", "component", "interactions", "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid signature",
		})
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(c.FormValue("payload")), &cb); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid interaction payload",
		})
	}

	if cb.Type != slack.InteractionTypeBlockActions {
		slog.Debug("ignoring interaction", "component", "interactions", "type", string(cb.Type))
		return c.SendStatus(fiber.StatusOK)
	}

	user := cb.User.ID
	actions := cb.ActionCallback.BlockActions
	hub := sentry.CurrentHub().Clone()
	h.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		for _, a := range actions {
			h.dispatch(ctx, hub, a, user)
		}
	})
	return c.SendStatus(fiber.StatusOK)
}

func (h *SlackHandler) dispatch(ctx context.Context, hub *sentry.Hub, a *slack.BlockAction, user string) {
	defer func() {
		if r := recover(); r != nil {
			hub.RecoverWithContext(ctx, r)
			slog.Error("action handler panicked", "component", "interactions", "action_id", a.ActionID, "user", user, "panic", r)
		}
	}()

	value := a.Value
	if a.SelectedOption.Value != "" {
		value = a.SelectedOption.Value
	}

	err := h.actions.HandleAction(ctx, a.ActionID, value, user)
	if err == nil {
		return
	}
	// Bad tokens are logged by the workflow and are not worth an alert.
	if errors.Is(err, token.ErrMalformed) || errors.Is(err, token.ErrMissingField) {
		return
	}
	slog.Error("action failed", "component", "interactions", "action_id", a.ActionID, "user", user, "error", err)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("action_id", a.ActionID)
		scope.SetUser(sentry.User{ID: user})
		hub.CaptureException(err)
	})
}

func (h *SlackHandler) verify(c *fiber.Ctx) error {
	header := http.Header{}
	for k, vs := range c.GetReqHeaders() {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	sv, err := slack.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(c.Body()); err != nil {
		return err
	}
	return sv.Ensure()
}
