package bus

import "time"

// MessageKind distinguishes the shapes of inbound work.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindPhoto MessageKind = "photo"
)

// InboundMessage is a message received from a chat channel.
// Photo messages carry the photo URLs; Content then holds the caption.
type InboundMessage struct {
	channel   ChannelType
	senderID  string
	chatID    string
	kind      MessageKind
	content   string
	photoURLs []string
	timestamp time.Time
	metadata  map[string]any // channel-specific extra data (message_id, username, …)
}

// NewInboundMessage creates a text InboundMessage with Timestamp set to now.
func NewInboundMessage(channel ChannelType, senderID, chatID, content string) InboundMessage {
	return InboundMessage{
		channel:   channel,
		senderID:  senderID,
		chatID:    chatID,
		kind:      KindText,
		content:   content,
		timestamp: time.Now(),
	}
}

// NewInboundPhoto creates a photo InboundMessage. urls are resolved photo
// file links; caption may be empty.
func NewInboundPhoto(channel ChannelType, senderID, chatID string, urls []string, caption string) InboundMessage {
	return InboundMessage{
		channel:   channel,
		senderID:  senderID,
		chatID:    chatID,
		kind:      KindPhoto,
		content:   caption,
		photoURLs: urls,
		timestamp: time.Now(),
	}
}

func (m InboundMessage) Channel() ChannelType           { return m.channel }
func (m InboundMessage) SenderID() string               { return m.senderID }
func (m InboundMessage) ChatID() string                 { return m.chatID }
func (m InboundMessage) Kind() MessageKind              { return m.kind }
func (m InboundMessage) Content() string                { return m.content }
func (m InboundMessage) PhotoURLs() []string            { return m.photoURLs }
func (m InboundMessage) Timestamp() time.Time           { return m.timestamp }
func (m InboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *InboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

// ConversationID returns the key identifying this message's conversation.
// Format: "channel:chat_id".
func (m InboundMessage) ConversationID() string {
	return string(m.channel) + ":" + m.chatID
}

// Preview returns a short snippet of the message content for logging.
func (m InboundMessage) Preview() string {
	preview := m.content
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return preview
}
