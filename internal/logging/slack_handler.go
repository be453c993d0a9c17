package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dispatch"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/gateway"
)

// Enqueuer accepts outbound chat jobs. *dispatch.Queue implements it.
type Enqueuer interface {
	Enqueue(job dispatch.Job) *dispatch.Future
}

// mutedComponent is never mirrored: its records describe the queue the
// mirror posts through.
const mutedComponent = "dispatch"

// SlackHandler mirrors log records into a chat channel through the dispatch
// queue, so log posts share the rate limit and ordering of everything else.
type SlackHandler struct {
	queue   Enqueuer
	channel string
	level   slog.Leveler
	env     string
	build   BuildInfo
	muted   bool
}

func NewSlackHandler(queue Enqueuer, channel string, level slog.Leveler, env string, build BuildInfo) *SlackHandler {
	return &SlackHandler{
		queue:   queue,
		channel: channel,
		level:   level,
		env:     env,
		build:   build,
	}
}

func (h *SlackHandler) Enabled(_ context.Context, level slog.Level) bool {
	return !h.muted && h.channel != "" && level >= h.level.Level()
}

func (h *SlackHandler) Handle(_ context.Context, record slog.Record) error {
	if h.muted {
		return nil
	}
	muted := false
	var errText string
	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "component":
			muted = a.Value.String() == mutedComponent
		case "error":
			errText = a.Value.String()
		}
		return true
	})
	if muted {
		return nil
	}

	text := record.Message
	if errText != "" {
		text += "\n" + errText
	}
	// Fire and forget; a failed post is logged by the queue itself.
	h.queue.Enqueue(dispatch.Post(gateway.Message{
		Channel: h.channel,
		Text:    text,
		Blocks:  h.blocks(record.Level, text, record.Time),
	}))
	return nil
}

func (h *SlackHandler) blocks(level slog.Level, text string, at time.Time) []slack.Block {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	if at.IsZero() {
		at = time.Now()
	}
	mrkdwn := func(s string) slack.MixedElement {
		return slack.NewTextBlockObject(slack.MarkdownType, s, false, false)
	}

	return []slack.Block{
		slack.NewDividerBlock(),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines, "\n"), false, false), nil, nil),
		slack.NewContextBlock("",
			mrkdwn(fmt.Sprintf("*Level:* _%s_", level)),
			mrkdwn(fmt.Sprintf("*Running environment:* _%s_", h.env)),
			mrkdwn(fmt.Sprintf("*Git SHA:* _%s_", h.build.GitSHA)),
			mrkdwn(fmt.Sprintf("*Version:* _%s_", h.build.Version)),
		),
		slack.NewContextBlock("", mrkdwn(at.Format(time.RFC1123Z))),
		slack.NewDividerBlock(),
	}
}

func (h *SlackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	for _, a := range attrs {
		if a.Key == "component" && a.Value.String() == mutedComponent {
			c.muted = true
		}
	}
	return &c
}

func (h *SlackHandler) WithGroup(name string) slog.Handler {
	return h
}
