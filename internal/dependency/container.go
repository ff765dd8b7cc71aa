// Package dependency wires the amberlynx services using go.uber.org/dig.
package dependency

import (
	"fmt"
	"path/filepath"

	"go.uber.org/dig"

	"github.com/amberlynx/amberlynx/internal/agent"
	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/channels"
	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/providers"
	"github.com/amberlynx/amberlynx/internal/queue"
	"github.com/amberlynx/amberlynx/internal/reminder"
	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/store"
	"github.com/amberlynx/amberlynx/internal/tools"
)

// Container holds the resolved service singletons. Callers use the typed
// getter methods; they never need to import dig directly.
type Container struct {
	bus        bus.Bus
	provider   schema.LLMProvider
	dispatcher *queue.Dispatcher
	reminders  *reminder.Scheduler
	compactor  *agent.Compactor
	service    *agent.Service
	manager    *channels.Manager
}

func (c *Container) Bus() bus.Bus                      { return c.bus }
func (c *Container) Provider() schema.LLMProvider      { return c.provider }
func (c *Container) Dispatcher() *queue.Dispatcher     { return c.dispatcher }
func (c *Container) Reminders() *reminder.Scheduler    { return c.reminders }
func (c *Container) Compactor() *agent.Compactor       { return c.compactor }
func (c *Container) Service() *agent.Service           { return c.service }
func (c *Container) ChannelManager() *channels.Manager { return c.manager }

// Options adjusts how the container is assembled.
type Options struct {
	// WithCLI registers the terminal channel in addition to the configured
	// platform channels.
	WithCLI bool
}

// New builds and wires all services from cfg.
func New(cfg *config.Config, opts Options) (*Container, error) {
	d := dig.New()

	for _, provide := range []any{
		func() *config.Config { return cfg },
		func() Options { return opts },
		newMessageBus,
		newProvider,
		newStateStore,
		newRateLimiter,
		newDispatcher,
		newReminderScheduler,
		newPersona,
		newToolList,
		newPromptContext,
		newCompactor,
		newChannelManager,
		newOrchestrator,
		newService,
	} {
		if err := d.Provide(provide); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		b bus.Bus,
		provider schema.LLMProvider,
		dispatcher *queue.Dispatcher,
		reminders *reminder.Scheduler,
		compactor *agent.Compactor,
		service *agent.Service,
		manager *channels.Manager,
	) {
		result = &Container{
			bus:        b,
			provider:   provider,
			dispatcher: dispatcher,
			reminders:  reminders,
			compactor:  compactor,
			service:    service,
			manager:    manager,
		}
	})
	return result, err
}

func newMessageBus() bus.Bus {
	return bus.NewMessageBus(100)
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("no API key configured — edit %s", config.ConfigPath())
	}
	return providers.NewOpenAIProvider(
		cfg.Provider.APIKey,
		cfg.Provider.APIBase,
		cfg.Models.Chat,
		cfg.Provider.ExtraHeaders,
	), nil
}

func newStateStore(cfg *config.Config) (*store.StateStore, error) {
	return store.NewStateStore(cfg.WorkspacePath(), store.Config{
		RetentionBound: cfg.Chat.RetentionBound,
		SummaryPeriod:  cfg.Chat.SummaryEveryPairs,
		MemoryPeriod:   cfg.Chat.MemoryEveryPairs,
	})
}

func newRateLimiter(cfg *config.Config) (*store.RateLimiter, error) {
	return store.NewRateLimiter(cfg.WorkspacePath())
}

func newDispatcher(cfg *config.Config) *queue.Dispatcher {
	return queue.NewDispatcher(queue.Config{
		RetryAttempts: cfg.Queue.RetryAttempts,
		JobsPerWindow: cfg.Queue.JobsPerWindow,
		WindowSeconds: cfg.Queue.WindowSeconds,
		KeepFailed:    cfg.Queue.KeepFailed,
	})
}

func newReminderScheduler(cfg *config.Config) *reminder.Scheduler {
	return reminder.NewScheduler(filepath.Join(cfg.WorkspacePath(), "reminders", "jobs.json"))
}

func newPersona(cfg *config.Config) (agent.Persona, error) {
	return agent.LoadPersona(cfg.WorkspacePath())
}

func newToolList(cfg *config.Config, reminders *reminder.Scheduler) *schema.ToolList {
	registry := tools.NewRegistryBuilder().
		WithTool(tools.NewSearchTool(cfg.Search.APIKey, cfg.Search.MaxResults)).
		WithTool(tools.NewFetchTool(0)).
		WithTool(tools.NewWeatherTool()).
		WithTool(tools.NewSetReminderTool(reminders)).
		WithTool(tools.NewListRemindersTool(reminders)).
		WithTool(tools.NewCancelReminderTool(reminders)).
		Build()
	list := registry.AllTools()
	return &list
}

func newPromptContext(persona agent.Persona, states *store.StateStore, cfg *config.Config) *agent.PromptContext {
	return agent.NewPromptContext(persona, states, cfg.Chat)
}

func newCompactor(states *store.StateStore, p schema.LLMProvider, cfg *config.Config) *agent.Compactor {
	return agent.NewCompactor(states, p, cfg.UtilityModel(), cfg.Chat)
}

func newChannelManager(b bus.Bus, cfg *config.Config, opts Options) (*channels.Manager, error) {
	m := channels.NewManager(b)
	if cfg.Channels.Telegram.Enabled {
		tg, err := channels.NewTelegramChannel(b, cfg.Channels.Telegram)
		if err != nil {
			return nil, err
		}
		m.Register(tg)
	}
	if cfg.Channels.Slack.Enabled {
		m.Register(channels.NewSlackChannel(b, cfg.Channels.Slack))
	}
	if cfg.Channels.Bridge.Enabled {
		m.Register(channels.NewBridgeChannel(b, cfg.Channels.Bridge))
	}
	if opts.WithCLI {
		m.Register(channels.NewCLIChannel(b))
	}
	return m, nil
}

func newOrchestrator(
	cfg *config.Config,
	prompt *agent.PromptContext,
	states *store.StateStore,
	p schema.LLMProvider,
	toolList *schema.ToolList,
	manager *channels.Manager,
	compactor *agent.Compactor,
) *agent.Orchestrator {
	return agent.NewOrchestrator(*cfg, prompt, states, p, toolList, manager, compactor)
}

func newService(
	b bus.Bus,
	cfg *config.Config,
	states *store.StateStore,
	limiter *store.RateLimiter,
	dispatcher *queue.Dispatcher,
	orch *agent.Orchestrator,
	reminders *reminder.Scheduler,
	manager *channels.Manager,
) *agent.Service {
	return agent.NewService(b, *cfg, states, limiter, dispatcher, orch, reminders, manager)
}
