package channels

import (
	"context"

	"github.com/amberlynx/amberlynx/internal/bus"
)

// CLIChannel backs the interactive terminal chat. Outbound messages are
// pushed onto Replies for the REPL to print.
type CLIChannel struct {
	Base
	replies chan string
}

func NewCLIChannel(b bus.Bus) *CLIChannel {
	return &CLIChannel{Base: NewBase(b, nil), replies: make(chan string, 16)}
}

func (c *CLIChannel) Name() bus.ChannelType { return bus.ChannelCLI }

// Start blocks until ctx is cancelled; input arrives via PublishText.
func (c *CLIChannel) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// PublishText feeds one line of terminal input into the engine.
func (c *CLIChannel) PublishText(senderID, text string) {
	c.Publish(bus.NewInboundMessage(bus.ChannelCLI, senderID, senderID, text))
}

// Replies exposes the stream of assistant responses.
func (c *CLIChannel) Replies() <-chan string { return c.replies }

func (c *CLIChannel) Send(ctx context.Context, msg bus.OutboundMessage) (string, error) {
	select {
	case c.replies <- msg.Content():
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "", nil
}
