package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/queue"
	"github.com/amberlynx/amberlynx/internal/reminder"
	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
)

// Service is the engine's front door. It consumes inbound messages from
// the bus, answers slash commands inline, applies per-conversation
// cooldowns, and enqueues everything else onto the per-conversation queue
// for the Orchestrator.
type Service struct {
	bus        bus.Bus
	cfg        config.Config
	states     *store.StateStore
	limiter    *store.RateLimiter
	dispatcher *queue.Dispatcher
	orch       *Orchestrator
	reminders  *reminder.Scheduler
	messenger  schema.Messenger
}

func NewService(
	b bus.Bus,
	cfg config.Config,
	states *store.StateStore,
	limiter *store.RateLimiter,
	dispatcher *queue.Dispatcher,
	orch *Orchestrator,
	reminders *reminder.Scheduler,
	messenger schema.Messenger,
) *Service {
	s := &Service{
		bus:        b,
		cfg:        cfg,
		states:     states,
		limiter:    limiter,
		dispatcher: dispatcher,
		orch:       orch,
		reminders:  reminders,
		messenger:  messenger,
	}

	dispatcher.OnFailure(s.apologize)
	reminders.SetOnFire(s.deliverReminder)

	return s
}

// Run consumes the inbound bus until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("session engine started")

	for {
		select {
		case msg := <-s.bus.InboundChan():
			s.handleInbound(ctx, msg)
		case <-ctx.Done():
			slog.Info("session engine stopping")
			return ctx.Err()
		}
	}
}

func (s *Service) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	convID := msg.ConversationID()

	if msg.Kind() == bus.KindText {
		if reply, handled := s.handleCommand(ctx, msg); handled {
			if reply != "" {
				s.send(convID, reply)
			}
			return
		}
		if strings.TrimSpace(msg.Content()) == "" {
			return
		}
	}

	cooldown := time.Duration(s.cfg.Chat.MessageCooldownSeconds) * time.Second
	if msg.Kind() == bus.KindPhoto {
		cooldown = time.Duration(s.cfg.Chat.PhotoCooldownSeconds) * time.Second
	}

	if !s.limiter.Acquire(convID, cooldown) {
		slog.Info("message throttled", "conversation", convID)
		s.messenger.SendMarker(ctx, convID, schema.MarkerCalmDown)
		return
	}

	if _, err := s.dispatcher.Enqueue(convID, func(jobCtx context.Context, attempt int) error {
		return s.orch.Process(jobCtx, msg, attempt)
	}); err != nil {
		slog.Warn("enqueue refused", "conversation", convID, "error", err)
	}
}

// handleCommand processes slash commands inline, outside the queue and
// cooldowns. It reports whether the message was a command.
func (s *Service) handleCommand(ctx context.Context, msg bus.InboundMessage) (string, bool) {
	convID := msg.ConversationID()
	fields := strings.Fields(strings.TrimSpace(msg.Content()))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}

	switch strings.ToLower(fields[0]) {
	case "/clear":
		all := len(fields) > 1 && strings.EqualFold(fields[1], "all")
		if err := s.states.Clear(convID, !all); err != nil {
			slog.Error("clear failed", "conversation", convID, "error", err)
			return "Couldn't clear the conversation, sorry.", true
		}
		if all {
			return "Fresh start. I've forgotten this conversation entirely.", true
		}
		return "History cleared. I still keep what I've learned about you; use /clear all to wipe that too.", true

	case "/reminders":
		if len(fields) >= 3 && strings.EqualFold(fields[1], "cancel") {
			if s.reminders.Cancel(fields[2], convID) {
				return "Reminder cancelled.", true
			}
			return "I couldn't find that reminder.", true
		}
		return s.formatReminders(convID), true

	case "/help":
		return "Commands:\n" +
			"/clear — forget this conversation's history\n" +
			"/clear all — forget everything, including my notes about you\n" +
			"/reminders — list pending reminders\n" +
			"/reminders cancel <id> — cancel one\n" +
			"/help — this message", true
	}

	return "", false
}

func (s *Service) formatReminders(convID string) string {
	pending := s.reminders.ListPending(convID)
	if len(pending) == 0 {
		return "No pending reminders."
	}

	var sb strings.Builder
	sb.WriteString("Pending reminders:\n")
	for _, r := range pending {
		switch r.Kind {
		case reminder.KindAt:
			due := time.UnixMilli(*r.DueAtMs).Format("Mon 2 Jan 15:04")
			fmt.Fprintf(&sb, "• %s — %s (id %s)\n", due, r.Text, r.ID)
		case reminder.KindEvery:
			every := time.Duration(*r.EveryMs) * time.Millisecond
			fmt.Fprintf(&sb, "• every %s — %s (id %s)\n", every, r.Text, r.ID)
		case reminder.KindCron:
			fmt.Fprintf(&sb, "• cron %s — %s (id %s)\n", *r.Expr, r.Text, r.ID)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// deliverReminder pushes a due reminder into its conversation through the
// queue, so delivery is serialized with normal turns and retried on
// transient failures. The reminder is recorded as an assistant turn so
// follow-up questions have context.
func (s *Service) deliverReminder(ctx context.Context, r reminder.Reminder) {
	text := "⏰ Reminder: " + r.Text

	if _, err := s.dispatcher.Enqueue(r.ConversationID, func(jobCtx context.Context, attempt int) error {
		if _, err := s.messenger.SendMessage(jobCtx, r.ConversationID, text, schema.SendOptions{}); err != nil {
			return schema.NewCollaboratorError("messaging", err)
		}
		if err := s.states.AppendMessage(r.ConversationID, schema.NewTurn("assistant", text)); err != nil {
			slog.Warn("reminder turn not persisted", "id", r.ID, "error", err)
		}
		return nil
	}); err != nil {
		slog.Warn("reminder enqueue refused", "id", r.ID, "error", err)
	}
}

// apologize is the queue's failure handler: the job is gone, tell the user.
func (s *Service) apologize(conversationID string, err error) {
	msg := "Sorry, something went wrong on my side. Please try again."
	if errors.Is(err, schema.ErrRateExceeded) {
		msg = "The model provider is rate limiting me right now. Give me a minute and try again."
	}

	s.send(conversationID, msg)
}

// send publishes a fire-and-forget notice (command reply, apology) onto
// the outbound bus; the channel manager drains it to the right channel.
// Turns that need delivery confirmation go through the Messenger instead.
func (s *Service) send(conversationID, text string) {
	channel, chatID, ok := strings.Cut(conversationID, ":")
	if !ok {
		slog.Error("malformed conversation id", "conversation", conversationID)
		return
	}
	s.bus.PublishOutbound(bus.NewOutboundMessage(bus.ChannelType(channel), chatID, text))
}
