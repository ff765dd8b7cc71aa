package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
)

// PromptContext assembles the message list for a chat call from persisted
// conversation state.
//
// Two context shapes exist. Young conversations (or ones without a summary
// yet) get the recent history window verbatim. Once the history outgrows
// MaxMessagesBeforeSummary and a summary exists, the model instead sees the
// summary plus only the last MessagesWithSummary turns, which keeps token
// use flat no matter how long the chat runs.
type PromptContext struct {
	persona Persona
	states  *store.StateStore
	cfg     config.ChatConfig
	now     func() time.Time
}

func NewPromptContext(persona Persona, states *store.StateStore, cfg config.ChatConfig) *PromptContext {
	return &PromptContext{persona: persona, states: states, cfg: cfg, now: time.Now}
}

// BuildMessages builds the full message list for one response: system
// prompt, history window, and the current user content (a string or
// []schema.ContentBlock for photo turns).
func (pc *PromptContext) BuildMessages(conversationID string, userContent any) schema.Messages {
	rec, _ := pc.states.Get(conversationID)

	system := pc.persona.SystemPrompt(pc.now())
	if rec.Memory != "" {
		system += "\n\n## What you remember about this user\n" + rec.Memory
	}

	history := rec.Messages
	// The turn being answered is already persisted at the tail of the
	// history. Drop it here so it enters the prompt once, as the live
	// user content below.
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		history = history[:n-1]
	}
	useSummary := len(history) > pc.cfg.MaxMessagesBeforeSummary && rec.Summary != ""

	if useSummary {
		system += "\n\n## Conversation so far\n" + rec.Summary
		history = tail(history, pc.cfg.MessagesWithSummary)
	} else {
		history = tail(history, pc.cfg.RetentionBound)
	}

	messages := schema.NewMessages()
	messages.AddSystem(system)
	for _, turn := range history {
		switch turn.Role {
		case "assistant":
			content := turn.Content
			messages.AddAssistant(&content, nil)
		default:
			messages.AddUser(turn.Content)
		}
	}
	messages.AddUser(userContent)

	return messages
}

// PhotoContent builds the multimodal user content for a photo turn: one
// image_url block per photo plus the caption text.
func PhotoContent(urls []string, caption string) []schema.ContentBlock {
	blocks := make([]schema.ContentBlock, 0, len(urls)+1)
	for _, u := range urls {
		blocks = append(blocks, schema.ContentBlock{
			Type:     "image_url",
			ImageURL: map[string]any{"url": u},
		})
	}

	text := caption
	if strings.TrimSpace(text) == "" {
		text = fmt.Sprintf("The user sent %d photo(s) with no caption. React to what you see.", len(urls))
	}
	blocks = append(blocks, schema.ContentBlock{Type: "text", Text: text})

	return blocks
}

// tail returns the last n elements of turns.
func tail(turns []schema.Turn, n int) []schema.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
