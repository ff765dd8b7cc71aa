package schema

import "context"

// MarkerKind selects which ephemeral progress marker a channel shows.
// On Telegram these map to sticker sets; other channels may ignore them.
type MarkerKind string

const (
	MarkerWriting   MarkerKind = "writing"
	MarkerWait      MarkerKind = "wait"
	MarkerSearching MarkerKind = "searching"
	MarkerCalmDown  MarkerKind = "calm_down"
)

// SendOptions carries delivery hints for an outbound message.
type SendOptions struct {
	Markdown bool   // render as Markdown when the channel supports it
	ReplyTo  string // message id to quote (optional)
}

// Messenger is the messaging-platform boundary the engine delivers through.
// Conversation ids are "channel:chatID"; implementations route on the prefix.
// All methods tolerate unknown conversations by reporting an error rather
// than panicking; marker methods are best-effort.
type Messenger interface {
	SendMessage(ctx context.Context, conversationID, text string, opts SendOptions) (messageID string, err error)
	SendTyping(ctx context.Context, conversationID string)
	SendMarker(ctx context.Context, conversationID string, kind MarkerKind) (markerID string, err error)
	DeleteMarker(ctx context.Context, conversationID, markerID string)
}
