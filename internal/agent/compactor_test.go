package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
)

func TestCompactSavesSummary(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)
	seedTurns(t, s, "telegram:1", 4)

	provider := &fakeProvider{responses: []schema.LLMResponse{textResponse("  a tidy summary  ")}}
	c := NewCompactor(s, provider, "utility-model", cfg)

	if err := c.Compact(context.Background(), "telegram:1", store.ArtifactSummary); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if got := s.Summary("telegram:1"); got != "a tidy summary" {
		t.Errorf("Summary = %q", got)
	}
	if provider.models[0] != "utility-model" {
		t.Errorf("model = %q", provider.models[0])
	}
}

func TestCompactFoldsPriorArtifacts(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)
	seedTurns(t, s, "telegram:1", 4)
	s.SaveArtifact(store.ArtifactSummary, "telegram:1", "old summary text")
	s.SaveArtifact(store.ArtifactMemory, "telegram:1", "- old fact")

	provider := &fakeProvider{}
	c := NewCompactor(s, provider, "m", cfg)

	c.Compact(context.Background(), "telegram:1", store.ArtifactSummary)
	c.Compact(context.Background(), "telegram:1", store.ArtifactMemory)

	first := systemContent(t, provider.calls[0])
	if !strings.Contains(first, "old summary text") {
		t.Error("summary pass prompt missing prior summary")
	}
	second := systemContent(t, provider.calls[1])
	if !strings.Contains(second, "- old fact") {
		t.Error("memory pass prompt missing prior notes")
	}
}

func TestCompactEmptyConversationNoop(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)

	provider := &fakeProvider{}
	c := NewCompactor(s, provider, "m", cfg)

	if err := c.Compact(context.Background(), "telegram:1", store.ArtifactSummary); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if provider.callCount() != 0 {
		t.Error("empty conversation triggered an LLM call")
	}
}

func TestAfterExchangeFiresOnCountdownZero(t *testing.T) {
	cfg := testChatConfig()
	cfg.SummaryEveryPairs = 2
	cfg.MemoryEveryPairs = 50 // keep memory out of the way
	cfg.MinMessagesBeforeCompaction = 2
	s := newAgentStore(t, cfg)
	seedTurns(t, s, "telegram:1", 3)

	provider := &fakeProvider{responses: []schema.LLMResponse{textResponse("summary v1")}}
	c := NewCompactor(s, provider, "m", cfg)

	// Period 2: first exchange counts down to 1, second to 0 → pass fires.
	c.AfterExchange("telegram:1")
	c.Wait()
	if provider.callCount() != 0 {
		t.Fatal("pass fired before countdown reached zero")
	}

	c.AfterExchange("telegram:1")
	c.Wait()
	if provider.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", provider.callCount())
	}
	if got := s.Summary("telegram:1"); got != "summary v1" {
		t.Errorf("Summary = %q", got)
	}
}

func TestAfterExchangeSkipsYoungConversation(t *testing.T) {
	cfg := testChatConfig()
	cfg.SummaryEveryPairs = 3
	cfg.MemoryEveryPairs = 3
	cfg.MinMessagesBeforeCompaction = 10
	s := newAgentStore(t, cfg)
	seedTurns(t, s, "telegram:1", 2) // 4 turns, under the gate

	provider := &fakeProvider{}
	c := NewCompactor(s, provider, "m", cfg)

	c.AfterExchange("telegram:1")
	c.Wait()

	if provider.callCount() != 0 {
		t.Error("young conversation was compacted")
	}
	// The skip happens before the countdowns move, so both stay at the
	// full period until the conversation is old enough.
	if v := s.Countdown(store.ArtifactSummary, "telegram:1"); v != 3 {
		t.Errorf("summary countdown after skip = %d, want untouched 3", v)
	}
	if v := s.Countdown(store.ArtifactMemory, "telegram:1"); v != 3 {
		t.Errorf("memory countdown after skip = %d, want untouched 3", v)
	}
}
