package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
)

type orchFixture struct {
	orch      *Orchestrator
	states    *store.StateStore
	messenger *fakeMessenger
	provider  *fakeProvider
	workspace string
}

func newOrchFixture(t *testing.T) *orchFixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Workspace = dir
	cfg.Models.Chat = "chat-model"

	states, err := store.NewStateStore(dir, store.Config{
		RetentionBound: cfg.Chat.RetentionBound,
		SummaryPeriod:  cfg.Chat.SummaryEveryPairs,
		MemoryPeriod:   cfg.Chat.MemoryEveryPairs,
	})
	if err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{}
	messenger := &fakeMessenger{}
	tools := schema.NewToolList(nil)
	prompt := NewPromptContext(DefaultPersona(), states, cfg.Chat)
	compactor := NewCompactor(states, provider, cfg.UtilityModel(), cfg.Chat)

	return &orchFixture{
		orch:      NewOrchestrator(cfg, prompt, states, provider, &tools, messenger, compactor),
		states:    states,
		messenger: messenger,
		provider:  provider,
		workspace: dir,
	}
}

func TestProcessPersistsReplyBeforeDelivery(t *testing.T) {
	f := newOrchFixture(t)
	f.provider.responses = []schema.LLMResponse{textResponse("here you go")}
	f.messenger.sendErr = errors.New("channel down")

	msg := bus.NewInboundMessage(bus.ChannelTelegram, "u1", "42", "hello")
	if err := f.orch.Process(context.Background(), msg, 1); err == nil {
		t.Fatal("Process should surface the delivery failure")
	}

	// Both turns are on disk even though nothing went out.
	rec, _ := f.states.Get("telegram:42")
	if len(rec.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(rec.Messages))
	}
	if rec.Messages[0].Role != "user" || rec.Messages[1].Role != "assistant" {
		t.Errorf("history = %+v", rec.Messages)
	}
	if f.messenger.sentCount() != 0 {
		t.Error("failed delivery was recorded as sent")
	}
}

func TestProcessStoreOutageSendsNothing(t *testing.T) {
	f := newOrchFixture(t)
	f.provider.responses = []schema.LLMResponse{textResponse("never delivered")}

	// Replace the state directory with a file so every write fails.
	stateDir := filepath.Join(f.workspace, "state")
	if err := os.RemoveAll(stateDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stateDir, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	msg := bus.NewInboundMessage(bus.ChannelTelegram, "u1", "42", "hello")
	for attempt := 1; attempt <= 2; attempt++ {
		if err := f.orch.Process(context.Background(), msg, attempt); err == nil {
			t.Fatalf("attempt %d succeeded with the store down", attempt)
		}
	}

	// While the exchange cannot be recorded no reply may leave, and a
	// retried attempt must not turn into a second delivery.
	if n := f.messenger.sentCount(); n != 0 {
		t.Errorf("sent = %d, want 0", n)
	}
	if n := f.provider.callCount(); n != 0 {
		t.Errorf("llm calls = %d, want 0", n)
	}
}

func TestProcessRetryKeepsSingleUserTurn(t *testing.T) {
	f := newOrchFixture(t)
	f.provider.errs = []error{errors.New("upstream 500")}
	f.provider.responses = []schema.LLMResponse{{}, textResponse("recovered")}

	msg := bus.NewInboundMessage(bus.ChannelTelegram, "u1", "42", "hello")
	if err := f.orch.Process(context.Background(), msg, 1); err == nil {
		t.Fatal("first attempt should fail")
	}
	if err := f.orch.Process(context.Background(), msg, 2); err != nil {
		t.Fatalf("retry: %v", err)
	}

	rec, _ := f.states.Get("telegram:42")
	if len(rec.Messages) != 2 {
		t.Fatalf("messages = %d, want 2: %+v", len(rec.Messages), rec.Messages)
	}
	if rec.Messages[0].Content != "hello" || rec.Messages[1].Content != "recovered" {
		t.Errorf("history = %+v", rec.Messages)
	}
}
