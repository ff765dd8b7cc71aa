package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amberlynx/amberlynx/internal/config"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Manage channel allowlists",
}

func init() {
	accessCmd.AddCommand(accessListCmd)
	accessCmd.AddCommand(accessAddCmd)
	accessCmd.AddCommand(accessRemoveCmd)
	rootCmd.AddCommand(accessCmd)
}

var accessListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show allowlists per channel",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		printAllowlist("telegram", cfg.Channels.Telegram.AllowFrom)
		printAllowlist("slack", cfg.Channels.Slack.AllowFrom)
		printAllowlist("bridge", cfg.Channels.Bridge.AllowFrom)
		return nil
	},
}

var accessAddCmd = &cobra.Command{
	Use:   "add <channel> <entry>",
	Short: "Allow a sender (id, username, or id|username)",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return updateAllowlist(args[0], func(list []string) ([]string, error) {
			entry := strings.TrimSpace(args[1])
			for _, e := range list {
				if e == entry {
					return list, fmt.Errorf("%q is already allowed", entry)
				}
			}
			return append(list, entry), nil
		})
	},
}

var accessRemoveCmd = &cobra.Command{
	Use:   "remove <channel> <entry>",
	Short: "Remove a sender from the allowlist",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return updateAllowlist(args[0], func(list []string) ([]string, error) {
			out := list[:0]
			for _, e := range list {
				if e != args[1] {
					out = append(out, e)
				}
			}
			if len(out) == len(list) {
				return list, fmt.Errorf("%q not found in allowlist", args[1])
			}
			return out, nil
		})
	},
}

func printAllowlist(name string, entries []string) {
	if len(entries) == 0 {
		fmt.Printf("%-10s (everyone)\n", name)
		return
	}
	fmt.Printf("%-10s %s\n", name, strings.Join(entries, ", "))
}

func updateAllowlist(channel string, update func([]string) ([]string, error)) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var list *[]string
	switch strings.ToLower(channel) {
	case "telegram":
		list = &cfg.Channels.Telegram.AllowFrom
	case "slack":
		list = &cfg.Channels.Slack.AllowFrom
	case "bridge":
		list = &cfg.Channels.Bridge.AllowFrom
	default:
		return fmt.Errorf("unknown channel %q (telegram, slack, bridge)", channel)
	}

	updated, err := update(*list)
	if err != nil {
		return err
	}
	*list = updated

	if err := config.Save(cfg, config.ConfigPath()); err != nil {
		return err
	}
	fmt.Printf("✓ %s allowlist updated\n", channel)
	return nil
}
