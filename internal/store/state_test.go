package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/amberlynx/amberlynx/internal/schema"
)

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	s, err := NewStateStore(t.TempDir(), Config{
		RetentionBound: 5,
		SummaryPeriod:  3,
		MemoryPeriod:   2,
	})
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	return s
}

func TestAppendMessageTrimsToRetentionBound(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 8; i++ {
		turn := schema.NewTurn("user", fmt.Sprintf("msg-%d", i))
		if err := s.AppendMessage("telegram:1", turn); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	rec, ok := s.Get("telegram:1")
	if !ok {
		t.Fatal("expected record on disk")
	}
	if len(rec.Messages) != 5 {
		t.Fatalf("got %d messages, want 5", len(rec.Messages))
	}
	if rec.Messages[0].Content != "msg-3" {
		t.Errorf("oldest survivor = %q, want msg-3", rec.Messages[0].Content)
	}
	if rec.Messages[4].Content != "msg-7" {
		t.Errorf("newest = %q, want msg-7", rec.Messages[4].Content)
	}
}

func TestGetMissingConversation(t *testing.T) {
	s := newTestStore(t)

	rec, ok := s.Get("telegram:404")
	if ok {
		t.Error("expected ok=false for missing conversation")
	}
	if len(rec.Messages) != 0 {
		t.Errorf("fresh record has %d messages", len(rec.Messages))
	}
	if rec.SummaryCountdown != 3 || rec.MemoryCountdown != 2 {
		t.Errorf("fresh countdowns = %d/%d, want 3/2", rec.SummaryCountdown, rec.MemoryCountdown)
	}
}

func TestCorruptFileFailsOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStateStore(dir, Config{RetentionBound: 5, SummaryPeriod: 3, MemoryPeriod: 3})
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}

	path := filepath.Join(dir, "state", "telegram_1.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Get("telegram:1"); ok {
		t.Error("corrupt file should read as absent")
	}
	// The conversation stays usable.
	if err := s.AppendMessage("telegram:1", schema.NewTurn("user", "hi")); err != nil {
		t.Fatalf("AppendMessage after corrupt read: %v", err)
	}
}

func TestDecrementCountdownCycles(t *testing.T) {
	s := newTestStore(t)

	// Summary period is 3: each cycle counts 2, 1, 0 and then restarts.
	want := []int{2, 1, 0, 2, 1, 0}
	for i, w := range want {
		got, err := s.DecrementCountdown(ArtifactSummary, "telegram:1")
		if err != nil {
			t.Fatalf("DecrementCountdown #%d: %v", i, err)
		}
		if got != w {
			t.Fatalf("decrement #%d = %d, want %d", i, got, w)
		}
	}
}

func TestCountdownKindsIndependent(t *testing.T) {
	s := newTestStore(t)

	if v, _ := s.DecrementCountdown(ArtifactSummary, "telegram:1"); v != 2 {
		t.Fatalf("summary decrement = %d, want 2", v)
	}
	// Memory period is 2 and is untouched by the summary decrement.
	if v, _ := s.DecrementCountdown(ArtifactMemory, "telegram:1"); v != 1 {
		t.Fatalf("memory decrement = %d, want 1", v)
	}
	if v := s.Countdown(ArtifactSummary, "telegram:1"); v != 2 {
		t.Errorf("summary countdown = %d, want 2", v)
	}
}

func TestCountdownIsolatedPerConversation(t *testing.T) {
	s := newTestStore(t)

	s.DecrementCountdown(ArtifactSummary, "telegram:1")
	s.DecrementCountdown(ArtifactSummary, "telegram:1")

	if v, _ := s.DecrementCountdown(ArtifactSummary, "slack:2"); v != 2 {
		t.Errorf("other conversation decrement = %d, want 2", v)
	}
}

func TestSaveArtifactRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveArtifact(ArtifactSummary, "telegram:1", "talked about go"); err != nil {
		t.Fatalf("SaveArtifact summary: %v", err)
	}
	if err := s.SaveArtifact(ArtifactMemory, "telegram:1", "prefers tea"); err != nil {
		t.Fatalf("SaveArtifact memory: %v", err)
	}

	if got := s.Summary("telegram:1"); got != "talked about go" {
		t.Errorf("Summary = %q", got)
	}
	if got := s.Memory("telegram:1"); got != "prefers tea" {
		t.Errorf("Memory = %q", got)
	}
}

func TestClearMessagesOnly(t *testing.T) {
	s := newTestStore(t)

	s.AppendMessage("telegram:1", schema.NewTurn("user", "hi"))
	s.SaveArtifact(ArtifactSummary, "telegram:1", "summary text")
	s.DecrementCountdown(ArtifactSummary, "telegram:1")

	if err := s.Clear("telegram:1", true); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	rec, ok := s.Get("telegram:1")
	if !ok {
		t.Fatal("messagesOnly clear should keep the record")
	}
	if len(rec.Messages) != 0 {
		t.Errorf("messages survived clear: %d", len(rec.Messages))
	}
	if rec.Summary != "summary text" {
		t.Errorf("summary lost: %q", rec.Summary)
	}
	if rec.SummaryCountdown != 2 {
		t.Errorf("countdown reset by messagesOnly clear: %d", rec.SummaryCountdown)
	}
}

func TestClearFull(t *testing.T) {
	s := newTestStore(t)

	s.AppendMessage("telegram:1", schema.NewTurn("user", "hi"))
	s.SaveArtifact(ArtifactMemory, "telegram:1", "memory text")

	if err := s.Clear("telegram:1", false); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Get("telegram:1"); ok {
		t.Error("full clear should delete the record")
	}
	// Clearing an absent conversation is a no-op, not an error.
	if err := s.Clear("telegram:1", false); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestListConversations(t *testing.T) {
	s := newTestStore(t)

	s.AppendMessage("telegram:1", schema.NewTurn("user", "a"))
	s.AppendMessage("slack:C42", schema.NewTurn("user", "b"))

	ids := s.ListConversations()
	if len(ids) != 2 {
		t.Fatalf("got %d conversations, want 2", len(ids))
	}
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found["telegram:1"] || !found["slack:C42"] {
		t.Errorf("ids = %v", ids)
	}
}
