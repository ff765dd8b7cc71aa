package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amberlynx/amberlynx/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show amberlynx status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s amberlynx Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	_, wsErr := os.Stat(ws)
	wsMark := "✗"
	if wsErr == nil {
		wsMark = "✓"
	}
	fmt.Printf("Workspace: %s %s\n", ws, wsMark)

	keyMark := "(not set)"
	if cfg.Provider.APIKey != "" {
		keyMark = "✓"
	}
	fmt.Printf("API key:   %s\n", keyMark)
	fmt.Printf("Models:    chat=%s utility=%s vision=%s\n\n", cfg.Models.Chat, cfg.UtilityModel(), cfg.VisionModel())

	fmt.Println("Channels:")
	fmt.Printf("  %-10s %s %s\n", "Telegram", yesNo(cfg.Channels.Telegram.Enabled), tokenHint(cfg.Channels.Telegram.Token))
	slackDetail := "(not configured)"
	if cfg.Channels.Slack.BotToken != "" && cfg.Channels.Slack.AppToken != "" {
		slackDetail = "socket"
	}
	fmt.Printf("  %-10s %s %s\n", "Slack", yesNo(cfg.Channels.Slack.Enabled), slackDetail)
	fmt.Printf("  %-10s %s %s\n", "Bridge", yesNo(cfg.Channels.Bridge.Enabled), cfg.Channels.Bridge.URL)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func tokenHint(s string) string {
	if s == "" {
		return "(not configured)"
	}
	if len(s) > 10 {
		return s[:10] + "..."
	}
	return s
}
