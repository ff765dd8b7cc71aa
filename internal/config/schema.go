// Package config defines the configuration schema for amberlynx.
//
// JSON keys use camelCase. The file lives at ~/.amberlynx/config.json and is
// created on first save; missing fields fall back to defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ProviderConfig holds credentials for the LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// ModelsConfig names the models used by the pipeline. Utility covers the
// summarize/memorize passes; Vision covers photo description. Either falls
// back to Chat when empty.
type ModelsConfig struct {
	Chat    string `json:"chat"`
	Utility string `json:"utility,omitempty"`
	Vision  string `json:"vision,omitempty"`
}

// ChatConfig carries the conversation policy knobs.
type ChatConfig struct {
	// RetentionBound caps the stored message history per conversation;
	// oldest entries are trimmed on write.
	RetentionBound int `json:"retentionBound"`
	// MinMessagesBeforeCompaction gates both compaction passes on young
	// conversations.
	MinMessagesBeforeCompaction int `json:"minMessagesBeforeCompaction"`
	// MaxMessagesBeforeSummary is the hard cutover point: above it, and with
	// a summary present, model context is summary + the most recent
	// MessagesWithSummary messages instead of the larger recent window.
	MaxMessagesBeforeSummary int `json:"maxMessagesBeforeSummary"`
	MessagesWithSummary      int `json:"messagesWithSummary"`
	// SummaryEveryPairs / MemoryEveryPairs are the countdown periods, in
	// turns, for the two compaction passes. The summarization window is
	// 2*pairs+2 messages.
	SummaryEveryPairs int `json:"summaryEveryPairs"`
	MemoryEveryPairs  int `json:"memoryEveryPairs"`

	MessageCooldownSeconds int `json:"messageCooldownSeconds"`
	PhotoCooldownSeconds   int `json:"photoCooldownSeconds"`
	MaxPhotosInMessage     int `json:"maxPhotosInMessage"`

	MaxToolIterations int     `json:"maxToolIterations"`
	MaxTokens         int     `json:"maxTokens"`
	Temperature       float64 `json:"temperature"`
}

func defaultChatConfig() ChatConfig {
	return ChatConfig{
		RetentionBound:              20,
		MinMessagesBeforeCompaction: 6,
		MaxMessagesBeforeSummary:    6,
		MessagesWithSummary:         2,
		SummaryEveryPairs:           3,
		MemoryEveryPairs:            3,
		MessageCooldownSeconds:      3,
		PhotoCooldownSeconds:        10,
		MaxPhotosInMessage:          5,
		MaxToolIterations:           10,
		MaxTokens:                   4096,
		Temperature:                 0.5,
	}
}

// QueueConfig tunes the per-conversation work queues.
type QueueConfig struct {
	RetryAttempts int `json:"retryAttempts"` // attempts per unit before it is dropped
	JobsPerWindow int `json:"jobsPerWindow"` // dispatch rate per conversation
	WindowSeconds int `json:"windowSeconds"`
	KeepFailed    int `json:"keepFailed"` // failed jobs retained for inspection
}

func defaultQueueConfig() QueueConfig {
	return QueueConfig{
		RetryAttempts: 3,
		JobsPerWindow: 1,
		WindowSeconds: 5,
		KeepFailed:    100,
	}
}

// TelegramConfig configures the Telegram channel.
// Stickers maps marker kinds ("writing", "wait", "searching", "calm_down")
// to sticker file-id pools; one is picked at random per marker.
type TelegramConfig struct {
	Enabled   bool                `json:"enabled"`
	Token     string              `json:"token"`
	AllowFrom []string            `json:"allowFrom"`
	Stickers  map[string][]string `json:"stickers,omitempty"`
}

func defaultTelegramConfig() TelegramConfig {
	return TelegramConfig{AllowFrom: []string{}}
}

// SlackConfig configures the Slack channel (socket mode).
type SlackConfig struct {
	Enabled   bool     `json:"enabled"`
	BotToken  string   `json:"botToken"`
	AppToken  string   `json:"appToken"`
	AllowFrom []string `json:"allowFrom"`
}

func defaultSlackConfig() SlackConfig {
	return SlackConfig{AllowFrom: []string{}}
}

// BridgeConfig configures the generic WebSocket bridge channel.
type BridgeConfig struct {
	Enabled   bool     `json:"enabled"`
	URL       string   `json:"url"`
	Token     string   `json:"token,omitempty"`
	AllowFrom []string `json:"allowFrom"`
}

func defaultBridgeConfig() BridgeConfig {
	return BridgeConfig{URL: "ws://localhost:3001", AllowFrom: []string{}}
}

// ChannelsConfig groups all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	Bridge   BridgeConfig   `json:"bridge"`
}

// GatewayConfig configures the gateway HTTP listener.
type GatewayConfig struct {
	Port int `json:"port"`
}

// SearchConfig configures the search tool. The tool reports itself as
// unconfigured when APIKey is empty.
type SearchConfig struct {
	APIKey     string `json:"apiKey,omitempty"`
	MaxResults int    `json:"maxResults"`
}

// Config is the root configuration object.
type Config struct {
	Workspace string         `json:"workspace"`
	Provider  ProviderConfig `json:"provider"`
	Models    ModelsConfig   `json:"models"`
	Chat      ChatConfig     `json:"chat"`
	Queue     QueueConfig    `json:"queue"`
	Channels  ChannelsConfig `json:"channels"`
	Gateway   GatewayConfig  `json:"gateway"`
	Search    SearchConfig   `json:"search"`
}

// DefaultConfig returns a Config populated with every default value.
func DefaultConfig() Config {
	return Config{
		Workspace: "~/.amberlynx/workspace",
		Models:    ModelsConfig{Chat: "gpt-4o", Utility: "gpt-4o-mini"},
		Chat:      defaultChatConfig(),
		Queue:     defaultQueueConfig(),
		Channels: ChannelsConfig{
			Telegram: defaultTelegramConfig(),
			Slack:    defaultSlackConfig(),
			Bridge:   defaultBridgeConfig(),
		},
		Gateway: GatewayConfig{Port: 11435},
		Search:  SearchConfig{MaxResults: 3},
	}
}

// WorkspacePath returns the workspace directory with ~ expanded.
func (c *Config) WorkspacePath() string {
	ws := c.Workspace
	if strings.HasPrefix(ws, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			ws = filepath.Join(home, strings.TrimPrefix(ws, "~"))
		}
	}
	return ws
}

// UtilityModel returns the utility model name, falling back to the chat model.
func (c *Config) UtilityModel() string {
	if c.Models.Utility != "" {
		return c.Models.Utility
	}
	return c.Models.Chat
}

// VisionModel returns the vision model name, falling back to the chat model.
func (c *Config) VisionModel() string {
	if c.Models.Vision != "" {
		return c.Models.Vision
	}
	return c.Models.Chat
}
