// Package gateway emits chat messages, edits, deletions and reactions.
//
// The dispatch queue is the only caller in production; everything that talks
// to the chat workspace goes through it so the rate limit and ordering hold.
package gateway

import (
	"context"

	"github.com/slack-go/slack"
)

// Message is one chat message. ThreadID makes it a threaded reply.
type Message struct {
	Channel  string
	ThreadID string
	Text     string
	Blocks   []slack.Block
}

type Gateway interface {
	// Post sends msg and returns the id (Slack "ts") assigned to it.
	Post(ctx context.Context, msg Message) (string, error)
	// Update replaces text and blocks of the message id in msg.Channel.
	Update(ctx context.Context, id string, msg Message) error
	Delete(ctx context.Context, channel, id string) error
	React(ctx context.Context, channel, id, emoji string) error
}
