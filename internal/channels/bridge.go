package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/config"
)

const bridgeReconnectDelay = 5 * time.Second

// bridgeFrame is the wire format of the WebSocket bridge. Inbound frames
// are "message", "status", and "error"; outbound are "auth" and "send".
type bridgeFrame struct {
	Type   string `json:"type"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Text   string `json:"text,omitempty"`
	Token  string `json:"token,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BridgeChannel relays messages through an external WebSocket bridge
// process, reconnecting whenever the link drops.
type BridgeChannel struct {
	Base
	cfg config.BridgeConfig

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewBridgeChannel(b bus.Bus, cfg config.BridgeConfig) *BridgeChannel {
	return &BridgeChannel{Base: NewBase(b, cfg.AllowFrom), cfg: cfg}
}

func (c *BridgeChannel) Name() bus.ChannelType { return bus.ChannelBridge }

func (c *BridgeChannel) Start(ctx context.Context) error {
	for {
		if err := c.connectAndRead(ctx); err != nil {
			slog.Warn("bridge connection lost", "url", c.cfg.URL, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(bridgeReconnectDelay):
		}
	}
}

func (c *BridgeChannel) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if c.cfg.Token != "" {
		if err := conn.WriteJSON(bridgeFrame{Type: "auth", Token: c.cfg.Token}); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()
	slog.Info("bridge connected", "url", c.cfg.URL)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame bridgeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleFrame(frame)
	}
}

func (c *BridgeChannel) handleFrame(frame bridgeFrame) {
	switch frame.Type {
	case "message":
		if frame.From == "" || frame.Text == "" {
			return
		}
		if !c.IsAllowed(frame.From, "") {
			slog.Debug("bridge sender not in allowlist", "from", frame.From)
			return
		}
		c.Publish(bus.NewInboundMessage(bus.ChannelBridge, frame.From, frame.From, frame.Text))
	case "status":
		slog.Info("bridge status", "status", frame.Status)
	case "error":
		slog.Error("bridge error", "error", frame.Error)
	}
}

// Send pushes one frame over the current connection. The bridge has no
// message ids, so the returned id is always empty.
func (c *BridgeChannel) Send(ctx context.Context, msg bus.OutboundMessage) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return "", fmt.Errorf("bridge not connected")
	}
	if err := conn.WriteJSON(bridgeFrame{Type: "send", To: msg.ChatID(), Text: msg.Content()}); err != nil {
		return "", fmt.Errorf("bridge send: %w", err)
	}
	return "", nil
}
