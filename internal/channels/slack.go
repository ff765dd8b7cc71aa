package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/config"
)

// SlackChannel connects over Socket Mode and listens for DMs and mentions.
type SlackChannel struct {
	Base
	api       *slack.Client
	socket    *socketmode.Client
	botUserID string
}

func NewSlackChannel(b bus.Bus, cfg config.SlackConfig) *SlackChannel {
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &SlackChannel{
		Base:   NewBase(b, cfg.AllowFrom),
		api:    api,
		socket: socketmode.New(api),
	}
}

func (c *SlackChannel) Name() bus.ChannelType { return bus.ChannelSlack }

func (c *SlackChannel) Start(ctx context.Context) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	c.botUserID = auth.UserID
	slog.Info("slack channel started", "bot_user", auth.User)

	go func() {
		for evt := range c.socket.Events {
			c.handleEvent(evt)
		}
	}()
	return c.socket.RunContext(ctx)
}

func (c *SlackChannel) handleEvent(evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	c.socket.Ack(*evt.Request)

	inner := apiEvent.InnerEvent
	switch ev := inner.Data.(type) {
	case *slackevents.MessageEvent:
		c.handleMessageEvent(ev.User, ev.Channel, ev.Text, ev.SubType, ev.ChannelType, ev.TimeStamp)
	case *slackevents.AppMentionEvent:
		c.handleMessageEvent(ev.User, ev.Channel, ev.Text, "", "channel", ev.TimeStamp)
	}
}

func (c *SlackChannel) handleMessageEvent(user, channel, text, subtype, channelType, ts string) {
	// Skip our own echoes, edits, and bot traffic.
	if user == "" || user == c.botUserID || subtype != "" {
		return
	}
	// In channels, only respond when mentioned; DMs always go through.
	mention := "<@" + c.botUserID + ">"
	if channelType != "im" && !strings.Contains(text, mention) {
		return
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, mention, ""))
	if text == "" {
		return
	}
	if !c.IsAllowed(user, "") {
		slog.Debug("slack sender not in allowlist", "user", user)
		return
	}

	in := bus.NewInboundMessage(bus.ChannelSlack, user, channel, text)
	in.SetMetadata(map[string]any{"message_id": ts})
	c.Publish(in)
}

// Send posts a message; replies thread under the original message.
func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content(), false)}
	if msg.ReplyTo() != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyTo()))
	}
	_, ts, err := c.api.PostMessageContext(ctx, msg.ChatID(), opts...)
	if err != nil {
		return "", fmt.Errorf("slack send: %w", err)
	}
	return ts, nil
}
