package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/amberlynx/amberlynx/internal/bus"
	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/shared/llmutils"
	"github.com/amberlynx/amberlynx/internal/store"
	"github.com/amberlynx/amberlynx/internal/tools"
)

// Orchestrator runs one full response pipeline: assemble context, drive the
// tool loop, deliver the reply, persist the exchange, and fan out
// compaction. It is invoked from queue workers, so calls for the same
// conversation never overlap.
type Orchestrator struct {
	cfg       config.Config
	prompt    *PromptContext
	states    *store.StateStore
	provider  schema.LLMProvider
	tools     *schema.ToolList
	messenger schema.Messenger
	compactor *Compactor
}

func NewOrchestrator(
	cfg config.Config,
	prompt *PromptContext,
	states *store.StateStore,
	provider schema.LLMProvider,
	tools *schema.ToolList,
	messenger schema.Messenger,
	compactor *Compactor,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		prompt:    prompt,
		states:    states,
		provider:  provider,
		tools:     tools,
		messenger: messenger,
		compactor: compactor,
	}
}

// Process handles one inbound message end to end. attempt comes from the
// queue layer. The exchange is persisted before it is delivered: the user
// turn at ingest and the reply before it goes out, so a store outage stops
// the pipeline with nothing sent and a delivery failure never loses the
// recorded history.
func (o *Orchestrator) Process(ctx context.Context, msg bus.InboundMessage, attempt int) error {
	convID := msg.ConversationID()

	slog.Info("processing message",
		"conversation", convID, "kind", msg.Kind(), "attempt", attempt,
		"content", llmutils.Truncate(msg.Preview(), 80))

	userContent, storedText, model := o.shapeInput(msg)

	if err := o.ingestUserTurn(convID, storedText); err != nil {
		return err
	}

	o.messenger.SendTyping(ctx, convID)
	markerID, _ := o.messenger.SendMarker(ctx, convID, schema.MarkerWriting)
	if markerID != "" {
		defer o.messenger.DeleteMarker(ctx, convID, markerID)
	}

	ctx = tools.WithTurn(ctx, tools.TurnContext{ConversationID: convID})
	conversation := o.prompt.BuildMessages(convID, userContent)

	runner := NewLoopRunner(o.provider, o.tools, o.cfg.Chat.MaxToolIterations)
	opts := schema.NewChatOptions(model, o.cfg.Chat.MaxTokens, o.cfg.Chat.Temperature)

	final, err := runner.Run(ctx, conversation, opts, func(string) {
		o.messenger.SendTyping(ctx, convID)
	})
	if err != nil {
		return err
	}
	final = llmutils.StringOrDefault(strings.TrimSpace(final), "…")

	if err := o.states.AppendMessage(convID, schema.NewTurn("assistant", final)); err != nil {
		return err
	}

	sendOpts := schema.SendOptions{Markdown: llmutils.IsMarkdown(final)}
	if id, ok := msg.Metadata()["message_id"].(string); ok {
		sendOpts.ReplyTo = id
	}
	if _, err := o.messenger.SendMessage(ctx, convID, final, sendOpts); err != nil {
		return schema.NewCollaboratorError("messaging", err)
	}

	o.compactor.AfterExchange(convID)

	slog.Info("response delivered", "conversation", convID, "length", len(final))

	return nil
}

// ingestUserTurn records the user turn before the pipeline touches the
// model or the channel. A retried attempt finds its own turn already at
// the tail of the history and leaves it in place.
func (o *Orchestrator) ingestUserTurn(convID, text string) error {
	rec, ok := o.states.Get(convID)
	if ok && len(rec.Messages) > 0 {
		last := rec.Messages[len(rec.Messages)-1]
		if last.Role == "user" && last.Content == text {
			return nil
		}
	}
	return o.states.AppendMessage(convID, schema.NewTurn("user", text))
}

// shapeInput maps the inbound message onto (LLM user content, persisted
// history text, model). Photo turns route to the vision model with
// image_url blocks; their history entry is a textual placeholder since
// photo URLs expire.
func (o *Orchestrator) shapeInput(msg bus.InboundMessage) (any, string, string) {
	if msg.Kind() == bus.KindPhoto {
		urls := msg.PhotoURLs()
		if max := o.cfg.Chat.MaxPhotosInMessage; len(urls) > max {
			urls = urls[:max]
		}

		stored := "[photo]"
		if c := strings.TrimSpace(msg.Content()); c != "" {
			stored = "[photo] " + c
		}

		return PhotoContent(urls, msg.Content()), stored, o.cfg.VisionModel()
	}

	return msg.Content(), msg.Content(), o.cfg.Models.Chat
}
