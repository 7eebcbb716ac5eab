package alert

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"
)

// ChatChannel posts a notification to a Slack channel.
type ChatChannel struct {
	api       *goslack.Client
	channelID string
	timeout   time.Duration
}

func NewChatChannel(token, channelID string) *ChatChannel {
	return &ChatChannel{
		api:       goslack.New(token),
		channelID: channelID,
		timeout:   10 * time.Second,
	}
}

func (c *ChatChannel) Send(ctx context.Context, d Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*%s*\n%s", d.Subject, d.Body), false, false), nil, nil),
	}
	_, _, err := c.api.PostMessageContext(ctx, c.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}
