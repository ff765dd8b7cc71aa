package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/reminder"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Manage scheduled reminders",
}

func init() {
	remindersCmd.AddCommand(remindersListCmd)
	remindersCmd.AddCommand(remindersCancelCmd)
}

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders across all conversations",
	RunE: func(_ *cobra.Command, _ []string) error {
		items := newReminderScheduler().ListAll()
		if len(items) == 0 {
			fmt.Println("No reminders.")
			return nil
		}
		fmt.Printf("%-10s %-24s %-28s %s\n", "ID", "Conversation", "Schedule", "Text")
		fmt.Println(strings.Repeat("-", 90))
		for _, r := range items {
			fmt.Printf("%-10s %-24s %-28s %s\n",
				shortID(r.ID), truncStr(r.ConversationID, 23), describeSchedule(r), truncStr(r.Text, 40))
		}
		return nil
	},
}

var remindersCancelCmd = &cobra.Command{
	Use:   "cancel <reminder-id>",
	Short: "Cancel a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		sched := newReminderScheduler()
		for _, r := range sched.ListAll() {
			if r.ID == args[0] || shortID(r.ID) == args[0] {
				if sched.Cancel(r.ID, r.ConversationID) {
					fmt.Printf("✓ Cancelled reminder %s\n", shortID(r.ID))
					return nil
				}
			}
		}
		fmt.Printf("Reminder %s not found\n", args[0])
		return nil
	},
}

func newReminderScheduler() *reminder.Scheduler {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	return reminder.NewScheduler(filepath.Join(cfg.WorkspacePath(), "reminders", "jobs.json"))
}

func describeSchedule(r reminder.Reminder) string {
	switch r.Kind {
	case reminder.KindAt:
		if r.DueAtMs != nil {
			return time.UnixMilli(*r.DueAtMs).Format("2006-01-02 15:04")
		}
	case reminder.KindEvery:
		if r.EveryMs != nil {
			return "every " + (time.Duration(*r.EveryMs) * time.Millisecond).String()
		}
	case reminder.KindCron:
		if r.Expr != nil {
			if r.TZ != nil {
				return *r.Expr + " (" + *r.TZ + ")"
			}
			return *r.Expr
		}
	}
	return r.Kind
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
