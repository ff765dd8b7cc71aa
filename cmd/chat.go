package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/channels"
	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/dependency"
	"github.com/amberlynx/amberlynx/internal/shared/cmdutils"
)

var (
	chatMessage string
	chatID      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatID, "chat", "c", "local", "Chat id (separate ids keep separate histories)")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	container, err := dependency.New(cfg, dependency.Options{WithCLI: true})
	if err != nil {
		return err
	}

	ch, ok := container.ChannelManager().Channel(bus.ChannelCLI)
	if !ok {
		return fmt.Errorf("cli channel not registered")
	}
	cli := ch.(*channels.CLIChannel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = container.Service().Run(ctx) }()
	go func() { _ = container.Reminders().Start(ctx) }()
	go func() { _ = container.ChannelManager().StartAll(ctx) }()
	defer container.Dispatcher().Close()
	defer container.Compactor().Wait()

	if chatMessage != "" {
		return sendAndWait(ctx, cli, chatMessage, 5*time.Minute)
	}
	return runInteractive(ctx, cli)
}

func runInteractive(ctx context.Context, cli *channels.CLIChannel) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", logo)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}
		if err := sendAndWait(ctx, cli, line, 5*time.Minute); err != nil {
			return err
		}
	}
}

// sendAndWait feeds one line into the engine and blocks until the reply
// arrives or the timeout elapses.
func sendAndWait(ctx context.Context, cli *channels.CLIChannel, content string, timeout time.Duration) error {
	cli.PublishText(chatID, content)

	select {
	case reply := <-cli.Replies():
		cmdutils.PrintResponse(reply)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for a reply")
	case <-ctx.Done():
		return ctx.Err()
	}
}
