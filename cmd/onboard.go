package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amberlynx/amberlynx/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	def := config.DefaultConfig()
	workspace := def.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	createPersonaTemplate(workspace)

	fmt.Printf("\n%s amberlynx is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key to %s\n", cfgPath)
	fmt.Printf("  2. Chat locally: amberlynx chat\n")
	fmt.Printf("  3. Connect a channel and run: amberlynx gateway\n")
	return nil
}

func createPersonaTemplate(workspace string) {
	p := filepath.Join(workspace, "persona.md")
	if _, err := os.Stat(p); err == nil {
		return
	}

	template := `---
name: amberlynx
emoji: 🐾
language: English
---
You are a friendly personal assistant living in the user's chat apps.

- Be concise and warm; this is a messaging conversation, not an essay.
- Use the reminder tools when the user asks to be reminded of something.
- When you don't know, say so and offer to search.
`
	if err := os.WriteFile(p, []byte(template), 0o644); err == nil {
		fmt.Println("  Created persona.md")
	}
}
