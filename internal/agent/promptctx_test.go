package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
)

func seedTurns(t *testing.T, s *store.StateStore, convID string, pairs int) {
	t.Helper()
	for i := 0; i < pairs; i++ {
		if err := s.AppendMessage(convID, schema.NewTurn("user", fmt.Sprintf("question %d", i))); err != nil {
			t.Fatal(err)
		}
		if err := s.AppendMessage(convID, schema.NewTurn("assistant", fmt.Sprintf("answer %d", i))); err != nil {
			t.Fatal(err)
		}
	}
}

func systemContent(t *testing.T, msgs schema.Messages) string {
	t.Helper()
	if len(msgs.Messages) == 0 || msgs.Messages[0].Role != "system" {
		t.Fatal("first message is not system")
	}
	s, ok := msgs.Messages[0].Content.(string)
	if !ok {
		t.Fatalf("system content is %T", msgs.Messages[0].Content)
	}
	return s
}

func TestBuildMessagesYoungConversation(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)
	pc := NewPromptContext(DefaultPersona(), s, cfg)

	seedTurns(t, s, "telegram:1", 2) // 4 turns, under the cutover

	msgs := pc.BuildMessages("telegram:1", "new question")

	// system + 4 history + 1 current
	if len(msgs.Messages) != 6 {
		t.Fatalf("got %d messages, want 6", len(msgs.Messages))
	}
	if sys := systemContent(t, msgs); strings.Contains(sys, "Conversation so far") {
		t.Error("young conversation should not carry a summary block")
	}
	last := msgs.Messages[len(msgs.Messages)-1]
	if last.Role != "user" || last.Content != "new question" {
		t.Errorf("last message = %+v", last)
	}
}

func TestBuildMessagesDropsIngestedTrailingTurn(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)
	pc := NewPromptContext(DefaultPersona(), s, cfg)

	seedTurns(t, s, "telegram:1", 2)
	// The turn being answered sits at the tail of the history, as the
	// pipeline records it before building the prompt.
	if err := s.AppendMessage("telegram:1", schema.NewTurn("user", "current question")); err != nil {
		t.Fatal(err)
	}

	msgs := pc.BuildMessages("telegram:1", "current question")

	// system + 4 history + 1 current; the persisted copy is not repeated.
	if len(msgs.Messages) != 6 {
		t.Fatalf("got %d messages, want 6", len(msgs.Messages))
	}
	count := 0
	for _, m := range msgs.Messages {
		if m.Role == "user" && m.Content == "current question" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("current turn appears %d times, want 1", count)
	}
}

func TestBuildMessagesCutoverWithSummary(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)
	pc := NewPromptContext(DefaultPersona(), s, cfg)

	seedTurns(t, s, "telegram:1", 5) // 10 turns, over the cutover
	if err := s.SaveArtifact(store.ArtifactSummary, "telegram:1", "we discussed travel plans"); err != nil {
		t.Fatal(err)
	}

	msgs := pc.BuildMessages("telegram:1", "new question")

	// system + MessagesWithSummary(2) + current
	if len(msgs.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs.Messages))
	}
	if sys := systemContent(t, msgs); !strings.Contains(sys, "we discussed travel plans") {
		t.Error("summary missing from system prompt")
	}
	// The two kept turns are the most recent ones.
	if msgs.Messages[2].Content == nil {
		t.Fatal("kept assistant turn has nil content")
	}
	if got := *msgs.Messages[2].Content.(*string); got != "answer 4" {
		t.Errorf("kept turn = %q, want answer 4", got)
	}
}

func TestBuildMessagesLongButNoSummary(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)
	pc := NewPromptContext(DefaultPersona(), s, cfg)

	seedTurns(t, s, "telegram:1", 5) // 10 turns, no summary saved

	msgs := pc.BuildMessages("telegram:1", "new question")

	// Without a summary the full recent window is used even past the cutover.
	if len(msgs.Messages) != 12 {
		t.Fatalf("got %d messages, want 12", len(msgs.Messages))
	}
	if sys := systemContent(t, msgs); strings.Contains(sys, "Conversation so far") {
		t.Error("summary block present without a stored summary")
	}
}

func TestBuildMessagesIncludesMemory(t *testing.T) {
	cfg := testChatConfig()
	s := newAgentStore(t, cfg)
	pc := NewPromptContext(DefaultPersona(), s, cfg)

	if err := s.SaveArtifact(store.ArtifactMemory, "telegram:1", "- lives in Lisbon"); err != nil {
		t.Fatal(err)
	}

	msgs := pc.BuildMessages("telegram:1", "hi")
	if sys := systemContent(t, msgs); !strings.Contains(sys, "lives in Lisbon") {
		t.Error("memory missing from system prompt")
	}
}

func TestPhotoContent(t *testing.T) {
	blocks := PhotoContent([]string{"https://a/1.jpg", "https://a/2.jpg"}, "look at this")

	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	if blocks[0].Type != "image_url" || blocks[0].ImageURL["url"] != "https://a/1.jpg" {
		t.Errorf("block 0 = %+v", blocks[0])
	}
	if blocks[2].Type != "text" || blocks[2].Text != "look at this" {
		t.Errorf("text block = %+v", blocks[2])
	}

	// Empty caption gets a stand-in so the model has an instruction.
	blocks = PhotoContent([]string{"https://a/1.jpg"}, "  ")
	if blocks[1].Text == "" {
		t.Error("empty caption produced empty text block")
	}
}
