package channels

import (
	"strings"

	"github.com/amberlynx/amberlynx/internal/bus"
)

// Base carries the pieces every channel shares: the bus it publishes
// inbound messages to and the sender allowlist from config.
type Base struct {
	bus       bus.Bus
	allowFrom []string
}

func NewBase(b bus.Bus, allowFrom []string) Base {
	return Base{bus: b, allowFrom: allowFrom}
}

// IsAllowed reports whether a sender may talk to the assistant. An empty
// allowlist means everyone. Entries may be a bare id, a bare username, or
// an "id|username" pair.
func (b Base) IsAllowed(senderID, username string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	for _, entry := range b.allowFrom {
		for _, part := range strings.Split(entry, "|") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if part == senderID || (username != "" && strings.EqualFold(part, username)) {
				return true
			}
		}
	}
	return false
}

// Publish hands an inbound message to the bus for the agent loop.
func (b Base) Publish(msg bus.InboundMessage) {
	b.bus.PublishInbound(msg)
}

// splitMessage chunks content so each piece fits under limit, preferring
// to break at a newline, then a space, then a hard cut.
func splitMessage(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}
	var parts []string
	for len(content) > limit {
		cut := strings.LastIndex(content[:limit], "\n")
		if cut < limit/2 {
			cut = strings.LastIndex(content[:limit], " ")
		}
		if cut < limit/2 {
			cut = limit
		}
		parts = append(parts, strings.TrimSpace(content[:cut]))
		content = strings.TrimSpace(content[cut:])
	}
	if content != "" {
		parts = append(parts, content)
	}
	return parts
}
