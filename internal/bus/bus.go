// Package bus decouples chat channels from the session engine.
//
// Channels push InboundMessages; the engine consumes them, processes, and
// pushes OutboundMessages back for the channel manager to route.
package bus

// ChannelType identifies a chat channel implementation.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelSlack    ChannelType = "slack"
	ChannelBridge   ChannelType = "bridge"
	ChannelCLI      ChannelType = "cli"
)

// Bus is the contract between chat channels and the session engine.
type Bus interface {
	// PublishInbound delivers a message from a channel to the engine.
	PublishInbound(msg InboundMessage)
	// PublishOutbound delivers a response from the engine to a channel.
	PublishOutbound(msg OutboundMessage)
	// InboundChan returns a receive-only channel for the engine to consume.
	InboundChan() <-chan InboundMessage
	// OutboundChan returns a receive-only channel for the channel manager to consume.
	OutboundChan() <-chan OutboundMessage
}

// MessageBus is the default in-process Bus backed by buffered Go channels.
// Both directions are buffered so senders never block on a slow consumer.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

func NewMessageBus(bufSize int) Bus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, bufSize),
		outbound: make(chan OutboundMessage, bufSize),
	}
}

// PublishInbound sends an InboundMessage to the engine.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// PublishOutbound sends an OutboundMessage to the channel manager.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

// InboundChan returns a receive-only view of the inbound channel.
func (b *MessageBus) InboundChan() <-chan InboundMessage {
	return b.inbound
}

// OutboundChan returns a receive-only view of the outbound channel.
func (b *MessageBus) OutboundChan() <-chan OutboundMessage {
	return b.outbound
}
