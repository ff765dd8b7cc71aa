package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amberlynx/amberlynx/internal/reminder"
	"github.com/amberlynx/amberlynx/internal/schema"
)

// SetReminderTool schedules a one-shot or recurring reminder for the
// conversation the current turn belongs to.
type SetReminderTool struct {
	scheduler *reminder.Scheduler
}

func NewSetReminderTool(scheduler *reminder.Scheduler) *SetReminderTool {
	return &SetReminderTool{scheduler: scheduler}
}

func (t *SetReminderTool) Name() string { return "set_reminder" }
func (t *SetReminderTool) Description() string {
	return "Schedule a reminder message. Use minutes for one-shot reminders " +
		"('remind me in 2 hours' → minutes=120) or cron for recurring ones " +
		"('every morning at 9' → cron='0 9 * * *')."
}
func (t *SetReminderTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "What to remind about"},
			"minutes": {"type": "number", "description": "Delay from now, in minutes"},
			"cron": {"type": "string", "description": "5-field cron expression for recurring reminders"}
		},
		"required": ["text"]
	}`)
}

func (t *SetReminderTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	convID := TurnCtx(ctx).ConversationID
	if convID == "" {
		return "Error: no conversation in scope", nil
	}

	text, _ := params["text"].(string)

	if expr, ok := params["cron"].(string); ok && expr != "" {
		r, err := t.scheduler.ScheduleCron(convID, text, expr, "")
		if err != nil {
			if errors.Is(err, schema.ErrValidation) {
				return "Error: " + err.Error(), nil
			}
			return "", err
		}
		return fmt.Sprintf("Recurring reminder set (%s), id %s.", expr, r.ID), nil
	}

	minutes, _ := params["minutes"].(float64)
	r, err := t.scheduler.Schedule(convID, text, time.Duration(minutes*float64(time.Minute)))
	if err != nil {
		if errors.Is(err, schema.ErrValidation) {
			return "Error: " + err.Error(), nil
		}
		return "", err
	}

	due := time.Now().Add(time.Duration(minutes * float64(time.Minute)))
	return fmt.Sprintf("Reminder set for %s, id %s.", due.Format("Mon 2 Jan 15:04"), r.ID), nil
}

// ListRemindersTool lists the conversation's pending reminders.
type ListRemindersTool struct {
	scheduler *reminder.Scheduler
}

func NewListRemindersTool(scheduler *reminder.Scheduler) *ListRemindersTool {
	return &ListRemindersTool{scheduler: scheduler}
}

func (t *ListRemindersTool) Name() string        { return "list_reminders" }
func (t *ListRemindersTool) Description() string { return "List the user's pending reminders." }
func (t *ListRemindersTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *ListRemindersTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	convID := TurnCtx(ctx).ConversationID
	if convID == "" {
		return "Error: no conversation in scope", nil
	}

	pending := t.scheduler.ListPending(convID)
	if len(pending) == 0 {
		return "No pending reminders.", nil
	}

	var sb strings.Builder
	for _, r := range pending {
		switch r.Kind {
		case reminder.KindAt:
			due := time.UnixMilli(*r.DueAtMs).Format("Mon 2 Jan 15:04")
			fmt.Fprintf(&sb, "- %s: %s (id %s)\n", due, r.Text, r.ID)
		case reminder.KindCron:
			fmt.Fprintf(&sb, "- cron %s: %s (id %s)\n", *r.Expr, r.Text, r.ID)
		case reminder.KindEvery:
			every := time.Duration(*r.EveryMs) * time.Millisecond
			fmt.Fprintf(&sb, "- every %s: %s (id %s)\n", every, r.Text, r.ID)
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

// CancelReminderTool cancels one of the conversation's reminders by id.
type CancelReminderTool struct {
	scheduler *reminder.Scheduler
}

func NewCancelReminderTool(scheduler *reminder.Scheduler) *CancelReminderTool {
	return &CancelReminderTool{scheduler: scheduler}
}

func (t *CancelReminderTool) Name() string        { return "cancel_reminder" }
func (t *CancelReminderTool) Description() string { return "Cancel a pending reminder by its id." }
func (t *CancelReminderTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "string", "description": "Reminder id, as shown by list_reminders"}
		},
		"required": ["id"]
	}`)
}

func (t *CancelReminderTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	convID := TurnCtx(ctx).ConversationID
	if convID == "" {
		return "Error: no conversation in scope", nil
	}

	id, _ := params["id"].(string)
	if t.scheduler.Cancel(id, convID) {
		return "Reminder cancelled.", nil
	}

	return "No reminder with that id.", nil
}
