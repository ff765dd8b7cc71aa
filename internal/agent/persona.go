package agent

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Persona is the assistant's identity, loaded from workspace/persona.md.
// The file carries YAML front matter followed by the persona body:
//
//	---
//	name: amberlynx
//	emoji: "🐾"
//	language: auto
//	---
//	You are a warm, slightly sarcastic assistant…
type Persona struct {
	Name     string `yaml:"name"`
	Emoji    string `yaml:"emoji"`
	Language string `yaml:"language"`

	Body string `yaml:"-"`
}

const defaultPersonaBody = `You are a helpful personal assistant living in the user's chat.
Be concise and natural; match the user's language. Use tools when they
genuinely help, and never announce a tool call without making it.`

// DefaultPersona is used when the workspace has no persona file.
func DefaultPersona() Persona {
	return Persona{Name: "amberlynx", Emoji: "🐾", Language: "auto", Body: defaultPersonaBody}
}

// LoadPersona reads workspace/persona.md. A missing file yields the default
// persona; a malformed front matter block is an error so a typo doesn't
// silently change who the assistant is.
func LoadPersona(workspace string) (Persona, error) {
	data, err := os.ReadFile(filepath.Join(workspace, "persona.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPersona(), nil
		}
		return Persona{}, fmt.Errorf("read persona: %w", err)
	}

	p := DefaultPersona()

	front, body, hasFront := splitFrontMatter(data)
	if hasFront {
		if err := yaml.Unmarshal(front, &p); err != nil {
			return Persona{}, fmt.Errorf("parse persona front matter: %w", err)
		}
	}
	if b := strings.TrimSpace(string(body)); b != "" {
		p.Body = b
	}

	return p, nil
}

// SystemPrompt renders the persona into the system prompt head, including
// the current time so the model can answer "what day is it".
func (p Persona) SystemPrompt(now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s %s\n\n", p.Name, p.Emoji)
	sb.WriteString(p.Body)
	fmt.Fprintf(&sb, "\n\n## Current Time\n%s", now.Format("2006-01-02 15:04 (Monday)"))
	if p.Language != "" && p.Language != "auto" {
		fmt.Fprintf(&sb, "\n\nAlways respond in %s.", p.Language)
	}

	return sb.String()
}

// splitFrontMatter splits "---\nyaml\n---\nbody" into its parts.
func splitFrontMatter(data []byte) (front, body []byte, ok bool) {
	const fence = "---"

	trimmed := bytes.TrimLeft(data, "\r\n \t")
	if !bytes.HasPrefix(trimmed, []byte(fence)) {
		return nil, data, false
	}

	rest := trimmed[len(fence):]
	end := bytes.Index(rest, []byte("\n"+fence))
	if end < 0 {
		return nil, data, false
	}

	front = rest[:end]
	body = rest[end+len(fence)+1:]

	return front, body, true
}
