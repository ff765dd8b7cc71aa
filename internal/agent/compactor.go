package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
)

// Per-key compaction states used by schedule.
const (
	compactRunning uint8 = 1 // goroutine is actively compacting
	compactQueued  uint8 = 2 // goroutine is running AND another run is pending
)

// Compactor maintains the summary and memory artifacts in the background.
//
// Every completed exchange decrements two countdown counters; when one hits
// zero (and the conversation is old enough) the matching pass runs on a
// background goroutine using the utility model, so the user never waits on
// compaction.
type Compactor struct {
	states   *store.StateStore
	provider schema.LLMProvider
	model    string
	cfg      config.ChatConfig

	// Per compaction-key state (idle=absent, running=1, queued=2).
	// Keys are "<conversationID>/<kind>".
	compacting map[string]uint8
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// NewCompactor returns a Compactor running its passes on model (typically
// the cheaper utility model).
func NewCompactor(states *store.StateStore, provider schema.LLMProvider, model string, cfg config.ChatConfig) *Compactor {
	return &Compactor{
		states:     states,
		provider:   provider,
		model:      model,
		cfg:        cfg,
		compacting: make(map[string]uint8),
	}
}

// AfterExchange is called once per completed user↔assistant exchange.
// Conversations still under the minimum message count are skipped before
// any countdown moves, so a young conversation's counters stay untouched
// until it is old enough to compact at all.
func (c *Compactor) AfterExchange(conversationID string) {
	rec, ok := c.states.Get(conversationID)
	if !ok || len(rec.Messages) < c.cfg.MinMessagesBeforeCompaction {
		slog.Debug("conversation too young for compaction",
			"conversation", conversationID, "messages", len(rec.Messages))
		return
	}

	for _, kind := range []store.ArtifactKind{store.ArtifactSummary, store.ArtifactMemory} {
		n, err := c.states.DecrementCountdown(kind, conversationID)
		if err != nil {
			slog.Error("countdown decrement failed", "kind", kind, "conversation", conversationID, "error", err)
			continue
		}
		if n != 0 {
			continue
		}
		c.schedule(conversationID, kind)
	}
}

// Wait blocks until all in-flight compaction goroutines finish. Used on
// shutdown and in tests.
func (c *Compactor) Wait() { c.wg.Wait() }

// schedule enforces at most one active pass per conversation+kind with one
// pending slot.
//
// State machine per key:
//
//	absent         → compactRunning  launch goroutine
//	compactRunning → compactQueued   mark pending, goroutine will re-run
//	compactQueued  → compactQueued   already queued, nothing to do
func (c *Compactor) schedule(conversationID string, kind store.ArtifactKind) {
	key := conversationID + "/" + string(kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.compacting[key] {
	case compactRunning:
		c.compacting[key] = compactQueued
		return
	case compactQueued:
		return
	}

	c.compacting[key] = compactRunning
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.Compact(context.Background(), conversationID, kind); err != nil {
				slog.Error("compaction failed", "kind", kind, "conversation", conversationID, "error", err)
			}

			c.mu.Lock()
			if c.compacting[key] == compactQueued {
				c.compacting[key] = compactRunning
				c.mu.Unlock()
				continue
			}
			delete(c.compacting, key)
			c.mu.Unlock()
			return
		}
	}()
}

// Compact runs one pass synchronously. Safe to call concurrently for
// different keys; schedule guards same-key concurrency.
func (c *Compactor) Compact(ctx context.Context, conversationID string, kind store.ArtifactKind) error {
	rec, ok := c.states.Get(conversationID)
	if !ok || len(rec.Messages) == 0 {
		return nil
	}

	var window int
	var prompt string
	switch kind {
	case store.ArtifactSummary:
		window = 2*c.cfg.SummaryEveryPairs + 2
		prompt = summaryPrompt(rec.Summary, transcript(tail(rec.Messages, window)))
	case store.ArtifactMemory:
		window = 2*c.cfg.MemoryEveryPairs + 2
		prompt = memoryPrompt(rec.Memory, transcript(tail(rec.Messages, window)))
	default:
		return fmt.Errorf("%w: unknown artifact kind %q", schema.ErrValidation, kind)
	}

	messages := schema.NewMessages()
	messages.AddSystem(prompt)

	resp, err := c.provider.Chat(ctx, messages, nil, schema.NewChatOptions(c.model, c.cfg.MaxTokens, 0.2))
	if err != nil {
		return schema.NewCollaboratorError("llm", err)
	}
	if resp.Content == nil || strings.TrimSpace(*resp.Content) == "" {
		return nil // nothing worth saving
	}

	if err := c.states.SaveArtifact(kind, conversationID, strings.TrimSpace(*resp.Content)); err != nil {
		return err
	}

	slog.Info("compaction done", "kind", kind, "conversation", conversationID)

	return nil
}

func summaryPrompt(prior, transcript string) string {
	var sb strings.Builder
	sb.WriteString("Summarize the conversation below into a compact paragraph that preserves ")
	sb.WriteString("topics, decisions, names, and anything the assistant promised to do. ")
	sb.WriteString("Reply with the summary only.\n")
	if prior != "" {
		sb.WriteString("\nPrevious summary (fold it in):\n" + prior + "\n")
	}
	sb.WriteString("\nRecent messages:\n" + transcript)
	return sb.String()
}

func memoryPrompt(prior, transcript string) string {
	var sb strings.Builder
	sb.WriteString("Extract durable facts about the user from the conversation below: ")
	sb.WriteString("preferences, people, places, dates, ongoing projects. ")
	sb.WriteString("Merge them with the existing notes, dropping anything stale. ")
	sb.WriteString("Reply with the updated notes as a short bullet list only.\n")
	if prior != "" {
		sb.WriteString("\nExisting notes:\n" + prior + "\n")
	}
	sb.WriteString("\nRecent messages:\n" + transcript)
	return sb.String()
}

func transcript(turns []schema.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}
	return sb.String()
}
