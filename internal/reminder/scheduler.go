// Package reminder schedules delayed and recurring messages back into
// conversations.
//
// Reminders are persisted to jobs.json so they survive restarts:
//
//	{ "version": 1, "reminders": [ { "id":"…", "conversationId":"…",
//	    "text":"…", "kind":"at", "dueAtMs":…, "createdAtMs":… } ] }
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/amberlynx/amberlynx/internal/schema"
)

// Reminder kinds.
const (
	KindAt    = "at"    // one-shot, fires once then disappears
	KindEvery = "every" // fixed interval
	KindCron  = "cron"  // cron expression
)

// Reminder is one scheduled delivery.
type Reminder struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversationId"`
	Text           string  `json:"text"`
	Kind           string  `json:"kind"`
	DueAtMs        *int64  `json:"dueAtMs,omitempty"`
	EveryMs        *int64  `json:"everyMs,omitempty"`
	Expr           *string `json:"expr,omitempty"`
	TZ             *string `json:"tz,omitempty"`
	CreatedAtMs    int64   `json:"createdAtMs"`
	LastFiredAtMs  *int64  `json:"lastFiredAtMs,omitempty"`
}

type reminderStore struct {
	Version   int        `json:"version"`
	Reminders []Reminder `json:"reminders"`
}

// OnFireFunc is called when a reminder comes due. It runs on a timer
// goroutine; delivery failures are the callback's business.
type OnFireFunc func(ctx context.Context, r Reminder)

// Scheduler manages reminders. One-shot reminders that were due while the
// process was down fire immediately on Start.
type Scheduler struct {
	storePath string
	onFire    OnFireFunc

	mu        sync.Mutex
	store     reminderStore
	timers    map[string]*time.Timer
	robfig    *robfigcron.Cron
	robfigIDs map[string]robfigcron.EntryID
	runCtx    context.Context // nil until Start
}

// NewScheduler creates a Scheduler persisting to storePath
// (e.g. ~/.amberlynx/reminders/jobs.json).
func NewScheduler(storePath string) *Scheduler {
	return &Scheduler{
		storePath: storePath,
		timers:    make(map[string]*time.Timer),
		robfig:    robfigcron.New(),
		robfigIDs: make(map[string]robfigcron.EntryID),
	}
}

// SetOnFire registers the delivery callback. Must be set before Start.
func (s *Scheduler) SetOnFire(fn OnFireFunc) { s.onFire = fn }

// Start loads reminders from disk, arms their timers, and blocks until ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		slog.Warn("reminders: load failed, starting empty", "error", err)
	}
	s.runCtx = ctx
	for _, r := range s.store.Reminders {
		s.armLocked(r)
	}
	count := len(s.store.Reminders)
	s.mu.Unlock()

	s.robfig.Start()
	slog.Info("reminders: started", "pending", count)

	<-ctx.Done()

	<-s.robfig.Stop().Done()
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.mu.Unlock()

	return ctx.Err()
}

// Schedule registers a one-shot reminder that fires after delay.
// A non-positive delay or empty text is a validation error.
func (s *Scheduler) Schedule(conversationID, text string, delay time.Duration) (Reminder, error) {
	if strings.TrimSpace(text) == "" {
		return Reminder{}, fmt.Errorf("%w: reminder text is empty", schema.ErrValidation)
	}
	if delay <= 0 {
		return Reminder{}, fmt.Errorf("%w: reminder delay must be in the future", schema.ErrValidation)
	}

	due := time.Now().Add(delay).UnixMilli()
	r := Reminder{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Text:           text,
		Kind:           KindAt,
		DueAtMs:        &due,
		CreatedAtMs:    nowMs(),
	}

	s.add(r)
	slog.Info("reminder scheduled", "id", r.ID, "conversation", conversationID, "delay", delay)

	return r, nil
}

// ScheduleEvery registers a reminder firing at a fixed interval.
func (s *Scheduler) ScheduleEvery(conversationID, text string, every time.Duration) (Reminder, error) {
	if strings.TrimSpace(text) == "" {
		return Reminder{}, fmt.Errorf("%w: reminder text is empty", schema.ErrValidation)
	}
	if every <= 0 {
		return Reminder{}, fmt.Errorf("%w: interval must be positive", schema.ErrValidation)
	}

	ms := every.Milliseconds()
	r := Reminder{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Text:           text,
		Kind:           KindEvery,
		EveryMs:        &ms,
		CreatedAtMs:    nowMs(),
	}

	s.add(r)

	return r, nil
}

// ScheduleCron registers a reminder driven by a standard 5-field cron
// expression, optionally in an IANA timezone.
func (s *Scheduler) ScheduleCron(conversationID, text, expr, tz string) (Reminder, error) {
	if strings.TrimSpace(text) == "" {
		return Reminder{}, fmt.Errorf("%w: reminder text is empty", schema.ErrValidation)
	}
	if _, err := cronParser().Parse(expr); err != nil {
		return Reminder{}, fmt.Errorf("%w: bad cron expression %q: %v", schema.ErrValidation, expr, err)
	}
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return Reminder{}, fmt.Errorf("%w: unknown timezone %q", schema.ErrValidation, tz)
		}
	}

	r := Reminder{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Text:           text,
		Kind:           KindCron,
		Expr:           &expr,
		CreatedAtMs:    nowMs(),
	}
	if tz != "" {
		r.TZ = &tz
	}

	s.add(r)

	return r, nil
}

// ListPending returns the conversation's reminders sorted by next due time,
// soonest first.
func (s *Scheduler) ListPending(conversationID string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()

	var out []Reminder
	for _, r := range s.store.Reminders {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}

	now := time.Now()
	sort.Slice(out, func(i, j int) bool {
		return nextDue(out[i], now).Before(nextDue(out[j], now))
	})

	return out
}

// ListAll returns every stored reminder across conversations, sorted by
// next due time. Used by the CLI.
func (s *Scheduler) ListAll() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()

	out := make([]Reminder, len(s.store.Reminders))
	copy(out, s.store.Reminders)

	now := time.Now()
	sort.Slice(out, func(i, j int) bool {
		return nextDue(out[i], now).Before(nextDue(out[j], now))
	})

	return out
}

// Cancel removes a reminder. It only succeeds when the reminder belongs to
// the given conversation, so one chat cannot cancel another's reminders.
func (s *Scheduler) Cancel(id, conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()

	for _, r := range s.store.Reminders {
		if r.ID == id && r.ConversationID == conversationID {
			s.removeLocked(id)
			s.saveLocked()
			return true
		}
	}

	return false
}

// ---------------------------------------------------------------------------
// Internals

func (s *Scheduler) add(r Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()

	s.store.Reminders = append(s.store.Reminders, r)
	s.saveLocked()
	if s.runCtx != nil {
		s.armLocked(r)
	}
}

func (s *Scheduler) armLocked(r Reminder) {
	s.cancelTimerLocked(r.ID)

	switch r.Kind {
	case KindAt:
		if r.DueAtMs == nil {
			return
		}
		delay := time.Until(time.UnixMilli(*r.DueAtMs))
		if delay < 0 {
			delay = 0 // was due while we were down: fire now
		}
		s.timers[r.ID] = time.AfterFunc(delay, func() { s.fire(r) })

	case KindEvery:
		if r.EveryMs == nil || *r.EveryMs <= 0 {
			return
		}
		d := time.Duration(*r.EveryMs) * time.Millisecond
		s.timers[r.ID] = time.AfterFunc(d, func() {
			s.fire(r)
			s.mu.Lock()
			for _, cur := range s.store.Reminders {
				if cur.ID == r.ID {
					s.armLocked(cur)
					break
				}
			}
			s.mu.Unlock()
		})

	case KindCron:
		if r.Expr == nil {
			return
		}
		sched, err := cronParser().Parse(*r.Expr)
		if err != nil {
			slog.Warn("reminders: bad stored cron expression", "id", r.ID, "error", err)
			return
		}
		loc := time.Local
		if r.TZ != nil && *r.TZ != "" {
			if l, err := time.LoadLocation(*r.TZ); err == nil {
				loc = l
			}
		}
		s.robfigIDs[r.ID] = s.robfig.Schedule(
			withLocation(sched, loc),
			robfigcron.FuncJob(func() { s.fire(r) }),
		)
	}
}

func (s *Scheduler) cancelTimerLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	if eid, ok := s.robfigIDs[id]; ok {
		s.robfig.Remove(eid)
		delete(s.robfigIDs, id)
	}
}

func (s *Scheduler) fire(r Reminder) {
	slog.Info("reminder due", "id", r.ID, "conversation", r.ConversationID)

	if s.onFire != nil {
		ctx := s.runCtx
		if ctx == nil {
			ctx = context.Background()
		}
		s.onFire(ctx, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Kind == KindAt {
		s.removeLocked(r.ID)
	} else {
		now := nowMs()
		for i := range s.store.Reminders {
			if s.store.Reminders[i].ID == r.ID {
				s.store.Reminders[i].LastFiredAtMs = &now
				break
			}
		}
	}
	s.saveLocked()
}

func (s *Scheduler) removeLocked(id string) {
	filtered := s.store.Reminders[:0]
	for _, r := range s.store.Reminders {
		if r.ID != id {
			filtered = append(filtered, r)
		}
	}
	s.store.Reminders = filtered
	s.cancelTimerLocked(id)
}

func (s *Scheduler) loadLocked() error {
	if len(s.store.Reminders) > 0 || s.store.Version != 0 {
		return nil // already loaded
	}
	data, err := os.ReadFile(s.storePath)
	if errors.Is(err, os.ErrNotExist) {
		s.store = reminderStore{Version: 1}
		return nil
	}
	if err != nil {
		return err
	}

	var st reminderStore
	if err := json.Unmarshal(data, &st); err != nil {
		s.store = reminderStore{Version: 1}
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	s.store = st

	return nil
}

func (s *Scheduler) saveLocked() {
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		slog.Warn("reminders: mkdir failed", "error", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		slog.Warn("reminders: marshal failed", "error", err)
		return
	}
	if err := os.WriteFile(s.storePath, data, 0o644); err != nil {
		slog.Warn("reminders: write failed", "error", err)
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func cronParser() robfigcron.Parser {
	return robfigcron.NewParser(
		robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow,
	)
}

// nextDue computes when a reminder will next fire, used for sort order.
func nextDue(r Reminder, now time.Time) time.Time {
	switch r.Kind {
	case KindAt:
		if r.DueAtMs != nil {
			return time.UnixMilli(*r.DueAtMs)
		}
	case KindEvery:
		if r.EveryMs != nil {
			base := time.UnixMilli(r.CreatedAtMs)
			if r.LastFiredAtMs != nil {
				base = time.UnixMilli(*r.LastFiredAtMs)
			}
			return base.Add(time.Duration(*r.EveryMs) * time.Millisecond)
		}
	case KindCron:
		if r.Expr != nil {
			if sched, err := cronParser().Parse(*r.Expr); err == nil {
				loc := time.Local
				if r.TZ != nil && *r.TZ != "" {
					if l, err := time.LoadLocation(*r.TZ); err == nil {
						loc = l
					}
				}
				return sched.Next(now.In(loc))
			}
		}
	}

	return now.Add(time.Hour * 24 * 365)
}

// withLocation wraps a Schedule to evaluate in a fixed location.
type locSchedule struct {
	inner robfigcron.Schedule
	loc   *time.Location
}

func (l locSchedule) Next(t time.Time) time.Time {
	return l.inner.Next(t.In(l.loc))
}

func withLocation(sched robfigcron.Schedule, loc *time.Location) robfigcron.Schedule {
	return locSchedule{inner: sched, loc: loc}
}
