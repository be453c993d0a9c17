package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// SlackGateway implements Gateway against the Slack Web API.
type SlackGateway struct {
	api *slack.Client
}

// NewSlackGateway builds a client for the bot token. apiURL overrides the
// Slack endpoint and is only set by tests.
func NewSlackGateway(botToken string, timeout time.Duration, apiURL string) *SlackGateway {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: timeout})}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackGateway{api: slack.New(botToken, opts...)}
}

func (g *SlackGateway) Post(ctx context.Context, msg Message) (string, error) {
	_, ts, err := g.api.PostMessageContext(ctx, msg.Channel, msgOptions(msg)...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage: %w", err)
	}
	return ts, nil
}

func (g *SlackGateway) Update(ctx context.Context, id string, msg Message) error {
	if _, _, _, err := g.api.UpdateMessageContext(ctx, msg.Channel, id, msgOptions(msg)...); err != nil {
		return fmt.Errorf("chat.update: %w", err)
	}
	return nil
}

func (g *SlackGateway) Delete(ctx context.Context, channel, id string) error {
	if _, _, err := g.api.DeleteMessageContext(ctx, channel, id); err != nil {
		return fmt.Errorf("chat.delete: %w", err)
	}
	return nil
}

func (g *SlackGateway) React(ctx context.Context, channel, id, emoji string) error {
	if err := g.api.AddReactionContext(ctx, emoji, slack.NewRefToMessage(channel, id)); err != nil {
		return fmt.Errorf("reactions.add: %w", err)
	}
	return nil
}

func msgOptions(msg Message) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}
	if msg.ThreadID != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadID))
	}
	return opts
}
