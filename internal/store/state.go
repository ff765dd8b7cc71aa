// Package store persists per-conversation state as JSON files under the
// workspace: bounded message history, the rolling summary and memory
// artifacts, and the compaction countdown counters.
//
// Reads fail open (a missing or corrupt file yields a fresh record so the
// conversation keeps working); writes fail loud (the error is returned and
// the caller aborts the operation).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/amberlynx/amberlynx/internal/schema"
)

// ArtifactKind selects which compaction artifact a countdown or save
// operation targets.
type ArtifactKind string

const (
	ArtifactSummary ArtifactKind = "summary"
	ArtifactMemory  ArtifactKind = "memory"
)

// Config bounds the stored history and sets the countdown periods.
type Config struct {
	RetentionBound int // max messages kept per conversation
	SummaryPeriod  int // countdown period for summary passes
	MemoryPeriod   int // countdown period for memory passes
}

// ConversationState is the on-disk record for one conversation.
type ConversationState struct {
	Messages         []schema.Turn `json:"messages"`
	Summary          string        `json:"summary,omitempty"`
	Memory           string        `json:"memory,omitempty"`
	SummaryCountdown int           `json:"summaryCountdown"`
	MemoryCountdown  int           `json:"memoryCountdown"`
}

// StateStore loads and persists conversation records, one file per
// conversation under workspace/state/. All operations on the same
// conversation are serialized by a per-conversation lock.
type StateStore struct {
	dir string
	cfg Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStateStore creates a StateStore rooted at the workspace directory.
// It creates the state subdirectory if necessary.
func NewStateStore(workspace string, cfg Config) (*StateStore, error) {
	dir := filepath.Join(workspace, "state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	return &StateStore{dir: dir, cfg: cfg, locks: map[string]*sync.Mutex{}}, nil
}

// Get returns the stored record for the conversation and whether one
// existed on disk.
func (s *StateStore) Get(conversationID string) (ConversationState, bool) {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	return s.load(conversationID)
}

// AppendMessage appends a turn to the conversation history and trims the
// oldest entries so at most RetentionBound remain.
func (s *StateStore) AppendMessage(conversationID string, turn schema.Turn) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	rec, _ := s.load(conversationID)
	rec.Messages = append(rec.Messages, turn)
	if n := len(rec.Messages); n > s.cfg.RetentionBound {
		rec.Messages = rec.Messages[n-s.cfg.RetentionBound:]
	}

	return s.persist(conversationID, rec)
}

// Summary returns the stored summary artifact, or "" when none exists.
func (s *StateStore) Summary(conversationID string) string {
	rec, _ := s.Get(conversationID)
	return rec.Summary
}

// Memory returns the stored memory artifact, or "" when none exists.
func (s *StateStore) Memory(conversationID string) string {
	rec, _ := s.Get(conversationID)
	return rec.Memory
}

// SaveArtifact overwrites the summary or memory artifact.
func (s *StateStore) SaveArtifact(kind ArtifactKind, conversationID, text string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	rec, _ := s.load(conversationID)
	switch kind {
	case ArtifactSummary:
		rec.Summary = text
	case ArtifactMemory:
		rec.Memory = text
	default:
		return fmt.Errorf("%w: unknown artifact kind %q", schema.ErrValidation, kind)
	}

	return s.persist(conversationID, rec)
}

// Countdown returns the current countdown value for the artifact kind.
// A conversation that has never decremented reports the full period.
func (s *StateStore) Countdown(kind ArtifactKind, conversationID string) int {
	rec, _ := s.Get(conversationID)
	switch kind {
	case ArtifactSummary:
		return rec.SummaryCountdown
	default:
		return rec.MemoryCountdown
	}
}

// DecrementCountdown decrements the countdown for the artifact kind and
// returns the new value. When the countdown reaches zero it returns 0 and
// resets the stored value to the full period, so the next cycle starts
// fresh. A zero return means the gated pass is due.
func (s *StateStore) DecrementCountdown(kind ArtifactKind, conversationID string) (int, error) {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	rec, _ := s.load(conversationID)

	period := s.cfg.SummaryPeriod
	current := rec.SummaryCountdown
	if kind == ArtifactMemory {
		period = s.cfg.MemoryPeriod
		current = rec.MemoryCountdown
	}

	next := current - 1
	stored := next
	if next <= 0 {
		next = 0
		stored = period
	}

	if kind == ArtifactMemory {
		rec.MemoryCountdown = stored
	} else {
		rec.SummaryCountdown = stored
	}

	if err := s.persist(conversationID, rec); err != nil {
		return 0, err
	}

	return next, nil
}

// Clear wipes the conversation. With messagesOnly the history is emptied
// but the summary, memory and countdowns survive; otherwise the whole
// record is deleted.
func (s *StateStore) Clear(conversationID string, messagesOnly bool) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if !messagesOnly {
		err := os.Remove(s.statePath(conversationID))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove state %s: %v", schema.ErrStoreUnavailable, conversationID, err)
		}
		return nil
	}

	rec, ok := s.load(conversationID)
	if !ok {
		return nil
	}
	rec.Messages = nil

	return s.persist(conversationID, rec)
}

// ListConversations returns the ids of all conversations with a record on
// disk, in no particular order.
func (s *StateStore) ListConversations() []string {
	entries, _ := filepath.Glob(filepath.Join(s.dir, "*.json"))

	var out []string
	for _, path := range entries {
		base := strings.TrimSuffix(filepath.Base(path), ".json")
		out = append(out, strings.Replace(base, "_", ":", 1))
	}

	return out
}

// ---------------------------------------------------------------------------
// Internals

func (s *StateStore) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}

	return lock
}

// load reads the record from disk. Absent or unreadable files yield a
// fresh record with countdowns primed at their full periods.
func (s *StateStore) load(conversationID string) (ConversationState, bool) {
	fresh := ConversationState{
		SummaryCountdown: s.cfg.SummaryPeriod,
		MemoryCountdown:  s.cfg.MemoryPeriod,
	}

	data, err := os.ReadFile(s.statePath(conversationID))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("state read failed, starting fresh", "conversation", conversationID, "error", err)
		}
		return fresh, false
	}

	var rec ConversationState
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("state file corrupt, starting fresh", "conversation", conversationID, "error", err)
		return fresh, false
	}

	return rec, true
}

func (s *StateStore) persist(conversationID string, rec ConversationState) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state %s: %w", conversationID, err)
	}

	if err := os.WriteFile(s.statePath(conversationID), data, 0o644); err != nil {
		return fmt.Errorf("%w: write state %s: %v", schema.ErrStoreUnavailable, conversationID, err)
	}

	return nil
}

func (s *StateStore) statePath(conversationID string) string {
	return filepath.Join(s.dir, safeFilename(conversationID)+".json")
}

// safeFilename converts a conversation id into a filesystem-safe name.
func safeFilename(key string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_", " ", "_")
	return replacer.Replace(key)
}
