package channels

import (
	"context"
	"testing"
	"time"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/config"
)

func TestBridgeMessageFramePublished(t *testing.T) {
	b := bus.NewMessageBus(4)
	ch := NewBridgeChannel(b, config.BridgeConfig{URL: "ws://localhost:3001"})

	ch.handleFrame(bridgeFrame{Type: "message", From: "555-0100", Text: "hi there"})

	select {
	case in := <-b.InboundChan():
		if in.Channel() != bus.ChannelBridge || in.SenderID() != "555-0100" || in.Content() != "hi there" {
			t.Errorf("published %s/%s/%q", in.Channel(), in.SenderID(), in.Content())
		}
		if in.ConversationID() != "bridge:555-0100" {
			t.Errorf("conversation id = %q", in.ConversationID())
		}
	default:
		t.Fatal("message frame not published to bus")
	}
}

func TestBridgeAllowlistDropsStrangers(t *testing.T) {
	b := bus.NewMessageBus(4)
	ch := NewBridgeChannel(b, config.BridgeConfig{AllowFrom: []string{"555-0100"}})

	ch.handleFrame(bridgeFrame{Type: "message", From: "555-9999", Text: "spam"})

	select {
	case <-b.InboundChan():
		t.Fatal("message from unlisted sender should be dropped")
	default:
	}
}

func TestBridgeNonMessageFramesIgnored(t *testing.T) {
	b := bus.NewMessageBus(4)
	ch := NewBridgeChannel(b, config.BridgeConfig{})

	ch.handleFrame(bridgeFrame{Type: "status", Status: "connected"})
	ch.handleFrame(bridgeFrame{Type: "error", Error: "boom"})
	ch.handleFrame(bridgeFrame{Type: "message"}) // missing from/text

	select {
	case <-b.InboundChan():
		t.Fatal("no frame should have been published")
	default:
	}
}

func TestBridgeSendWithoutConnection(t *testing.T) {
	ch := NewBridgeChannel(bus.NewMessageBus(1), config.BridgeConfig{})
	out := bus.NewOutboundMessage(bus.ChannelBridge, "555-0100", "hello")
	if _, err := ch.Send(context.Background(), out); err == nil {
		t.Error("expected error while disconnected")
	}
}

func TestCLIChannelRoundTrip(t *testing.T) {
	b := bus.NewMessageBus(4)
	ch := NewCLIChannel(b)

	ch.PublishText("local", "hello")
	select {
	case in := <-b.InboundChan():
		if in.ConversationID() != "cli:local" || in.Content() != "hello" {
			t.Errorf("published %q/%q", in.ConversationID(), in.Content())
		}
	default:
		t.Fatal("input not published")
	}

	if _, err := ch.Send(context.Background(), bus.NewOutboundMessage(bus.ChannelCLI, "local", "hi!")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case reply := <-ch.Replies():
		if reply != "hi!" {
			t.Errorf("reply = %q", reply)
		}
	case <-time.After(time.Second):
		t.Fatal("reply not delivered")
	}
}
