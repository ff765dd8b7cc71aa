package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/schema"
)

// Channel is a single chat surface (Telegram, Slack, ...). Start blocks
// until ctx is cancelled. Send delivers one message and returns the
// platform message id when the platform has one.
type Channel interface {
	Name() bus.ChannelType
	Start(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) (string, error)
}

// typingSender is implemented by channels that can show a typing indicator.
type typingSender interface {
	SendTyping(ctx context.Context, chatID string)
}

// markerSender is implemented by channels that can post and remove
// ephemeral progress markers (Telegram stickers).
type markerSender interface {
	SendMarker(ctx context.Context, chatID string, kind schema.MarkerKind) (string, error)
	DeleteMarker(ctx context.Context, chatID, markerID string)
}

// Manager owns the registered channels and routes by conversation id
// prefix. It implements schema.Messenger for the session engine side and
// drains the outbound bus for fire-and-forget deliveries.
type Manager struct {
	bus      bus.Bus
	channels map[bus.ChannelType]Channel
}

func NewManager(b bus.Bus) *Manager {
	return &Manager{bus: b, channels: make(map[bus.ChannelType]Channel)}
}

func (m *Manager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
}

func (m *Manager) Channel(name bus.ChannelType) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll runs every registered channel plus the outbound drain until ctx
// is cancelled or a channel fails.
func (m *Manager) StartAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range m.channels {
		ch := ch
		g.Go(func() error {
			if err := ch.Start(ctx); err != nil {
				return fmt.Errorf("channel %s: %w", ch.Name(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		m.drainOutbound(ctx)
		return nil
	})
	return g.Wait()
}

func (m *Manager) drainOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.bus.OutboundChan():
			ch, ok := m.channels[msg.Channel()]
			if !ok {
				slog.Warn("outbound message for unknown channel", "channel", msg.Channel())
				continue
			}
			if _, err := ch.Send(ctx, msg); err != nil {
				slog.Error("outbound delivery failed", "channel", msg.Channel(), "chat_id", msg.ChatID(), "error", err)
			}
		}
	}
}

// SendMessage implements schema.Messenger.
func (m *Manager) SendMessage(ctx context.Context, conversationID, text string, opts schema.SendOptions) (string, error) {
	ch, chatID, err := m.resolve(conversationID)
	if err != nil {
		return "", err
	}
	out := bus.NewOutboundMessage(ch.Name(), chatID, text)
	out.SetMarkdown(opts.Markdown)
	out.SetReplyTo(opts.ReplyTo)
	return ch.Send(ctx, out)
}

// SendTyping implements schema.Messenger. Channels without a typing
// indicator silently ignore it.
func (m *Manager) SendTyping(ctx context.Context, conversationID string) {
	ch, chatID, err := m.resolve(conversationID)
	if err != nil {
		return
	}
	if ts, ok := ch.(typingSender); ok {
		ts.SendTyping(ctx, chatID)
	}
}

// SendMarker implements schema.Messenger. Returns an empty id on channels
// that cannot show markers.
func (m *Manager) SendMarker(ctx context.Context, conversationID string, kind schema.MarkerKind) (string, error) {
	ch, chatID, err := m.resolve(conversationID)
	if err != nil {
		return "", err
	}
	ms, ok := ch.(markerSender)
	if !ok {
		return "", nil
	}
	return ms.SendMarker(ctx, chatID, kind)
}

// DeleteMarker implements schema.Messenger.
func (m *Manager) DeleteMarker(ctx context.Context, conversationID, markerID string) {
	if markerID == "" {
		return
	}
	ch, chatID, err := m.resolve(conversationID)
	if err != nil {
		return
	}
	if ms, ok := ch.(markerSender); ok {
		ms.DeleteMarker(ctx, chatID, markerID)
	}
}

func (m *Manager) resolve(conversationID string) (Channel, string, error) {
	name, chatID, ok := strings.Cut(conversationID, ":")
	if !ok || chatID == "" {
		return nil, "", fmt.Errorf("malformed conversation id %q", conversationID)
	}
	ch, found := m.channels[bus.ChannelType(name)]
	if !found {
		return nil, "", fmt.Errorf("no channel registered for %q", name)
	}
	return ch, chatID, nil
}
