package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
)

// fakeProvider replays scripted responses and records the requests it saw.
type fakeProvider struct {
	mu        sync.Mutex
	responses []schema.LLMResponse
	errs      []error
	calls     []schema.Messages
	models    []string
}

func (p *fakeProvider) Chat(ctx context.Context, messages schema.Messages, tools []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, messages.Clone())
	p.models = append(p.models, opts.Model)

	i := len(p.calls) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return schema.LLMResponse{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}

	content := "ok"
	return schema.LLMResponse{Content: &content}, nil
}

func (p *fakeProvider) DefaultModel() string { return "fake-model" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func textResponse(s string) schema.LLMResponse {
	return schema.LLMResponse{Content: &s, FinishReason: "stop"}
}

func toolResponse(id, name string, args map[string]any) schema.LLMResponse {
	return schema.LLMResponse{
		ToolCalls:    []schema.ToolCallRequest{{ID: id, Name: name, Arguments: args}},
		FinishReason: "tool_calls",
	}
}

// fakeMessenger records every delivery. Setting sendErr makes deliveries
// fail without being recorded.
type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	markers []schema.MarkerKind
	typing  int
	sendErr error
}

type sentMessage struct {
	conversationID string
	text           string
	opts           schema.SendOptions
}

func (m *fakeMessenger) SendMessage(ctx context.Context, conversationID, text string, opts schema.SendOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, sentMessage{conversationID, text, opts})
	return "msg-1", nil
}

func (m *fakeMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMessenger) SendTyping(ctx context.Context, conversationID string) {
	m.mu.Lock()
	m.typing++
	m.mu.Unlock()
}

func (m *fakeMessenger) SendMarker(ctx context.Context, conversationID string, kind schema.MarkerKind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append(m.markers, kind)
	return "marker-1", nil
}

func (m *fakeMessenger) DeleteMarker(ctx context.Context, conversationID, markerID string) {}

func (m *fakeMessenger) lastSent(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return m.sent[len(m.sent)-1]
}

// echoTool returns its "text" argument.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes text back" }
func (echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
}
func (echoTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	text, _ := params["text"].(string)
	return text, nil
}

func testChatConfig() config.ChatConfig {
	cfg := config.DefaultConfig().Chat
	cfg.RetentionBound = 20
	cfg.MaxMessagesBeforeSummary = 6
	cfg.MessagesWithSummary = 2
	cfg.SummaryEveryPairs = 3
	cfg.MemoryEveryPairs = 3
	cfg.MinMessagesBeforeCompaction = 6
	return cfg
}

func newAgentStore(t *testing.T, cfg config.ChatConfig) *store.StateStore {
	t.Helper()
	s, err := store.NewStateStore(t.TempDir(), store.Config{
		RetentionBound: cfg.RetentionBound,
		SummaryPeriod:  cfg.SummaryEveryPairs,
		MemoryPeriod:   cfg.MemoryEveryPairs,
	})
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	return s
}
