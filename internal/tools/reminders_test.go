package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amberlynx/amberlynx/internal/reminder"
)

func newToolScheduler(t *testing.T) *reminder.Scheduler {
	t.Helper()
	return reminder.NewScheduler(filepath.Join(t.TempDir(), "jobs.json"))
}

func turnCtx(convID string) context.Context {
	return WithTurn(context.Background(), TurnContext{ConversationID: convID})
}

func TestSetReminderOneShot(t *testing.T) {
	s := newToolScheduler(t)
	tool := NewSetReminderTool(s)

	out, err := tool.Execute(turnCtx("telegram:1"), map[string]any{
		"text":    "call mom",
		"minutes": float64(90),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Reminder set") {
		t.Errorf("out = %q", out)
	}
	if len(s.ListPending("telegram:1")) != 1 {
		t.Error("reminder not scheduled")
	}
}

func TestSetReminderCron(t *testing.T) {
	s := newToolScheduler(t)
	tool := NewSetReminderTool(s)

	out, err := tool.Execute(turnCtx("telegram:1"), map[string]any{
		"text": "morning briefing",
		"cron": "0 9 * * *",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Recurring") {
		t.Errorf("out = %q", out)
	}
}

func TestSetReminderValidationSurfacesToModel(t *testing.T) {
	s := newToolScheduler(t)
	tool := NewSetReminderTool(s)

	// Zero delay is invalid; the model should see the problem as tool
	// output, not as a pipeline failure.
	out, err := tool.Execute(turnCtx("telegram:1"), map[string]any{
		"text":    "now",
		"minutes": float64(0),
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.HasPrefix(out, "Error:") {
		t.Errorf("out = %q", out)
	}
}

func TestSetReminderNoTurnContext(t *testing.T) {
	tool := NewSetReminderTool(newToolScheduler(t))

	out, err := tool.Execute(context.Background(), map[string]any{"text": "x", "minutes": float64(5)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "no conversation") {
		t.Errorf("out = %q", out)
	}
}

func TestListAndCancelReminders(t *testing.T) {
	s := newToolScheduler(t)
	set := NewSetReminderTool(s)
	list := NewListRemindersTool(s)
	cancel := NewCancelReminderTool(s)

	set.Execute(turnCtx("telegram:1"), map[string]any{"text": "water plants", "minutes": float64(60)})

	out, _ := list.Execute(turnCtx("telegram:1"), nil)
	if !strings.Contains(out, "water plants") {
		t.Fatalf("list = %q", out)
	}

	// Extract the id from "(id <uuid>)".
	i := strings.LastIndex(out, "(id ")
	id := strings.TrimSuffix(out[i+4:], ")")

	if out, _ := cancel.Execute(turnCtx("telegram:999"), map[string]any{"id": id}); !strings.Contains(out, "No reminder") {
		t.Errorf("cross-conversation cancel = %q", out)
	}
	if out, _ := cancel.Execute(turnCtx("telegram:1"), map[string]any{"id": id}); !strings.Contains(out, "cancelled") {
		t.Errorf("cancel = %q", out)
	}

	if out, _ := list.Execute(turnCtx("telegram:1"), nil); !strings.Contains(out, "No pending") {
		t.Errorf("list after cancel = %q", out)
	}
}
