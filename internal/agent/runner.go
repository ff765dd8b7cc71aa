package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/amberlynx/amberlynx/internal/schema"
	"github.com/amberlynx/amberlynx/internal/shared/llmutils"
)

// LoopRunner executes the LLM ↔ tool iteration loop for one response.
type LoopRunner struct {
	provider schema.LLMProvider
	tools    *schema.ToolList
	maxIter  int
}

func NewLoopRunner(provider schema.LLMProvider, tools *schema.ToolList, maxIter int) *LoopRunner {
	return &LoopRunner{provider: provider, tools: tools, maxIter: maxIter}
}

// Run drives the conversation until the model produces a terminal text
// response or the iteration cap is hit. Provider failures come back wrapped
// so the queue layer can tell a transient LLM hiccup from bad input.
// onToolCall, when non-nil, is notified before each tool executes.
func (r *LoopRunner) Run(
	ctx context.Context,
	conversation schema.Messages,
	opts schema.ChatOptions,
	onToolCall func(name string),
) (string, error) {
	for i := 0; i < r.maxIter; i++ {
		resp, err := r.provider.Chat(ctx, conversation, r.tools.Definitions(), opts)
		if err != nil {
			return "", schema.NewCollaboratorError("llm", err)
		}

		if !resp.HasToolCalls() {
			content := ""
			if resp.Content != nil {
				content = *resp.Content
			}
			return llmutils.StripThink(content), nil
		}

		var toolCalls []schema.ToolCall
		for _, tc := range resp.ToolCalls {
			toolCalls = append(toolCalls, schema.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		conversation.AddAssistant(resp.Content, toolCalls)

		for _, tc := range resp.ToolCalls {
			if onToolCall != nil {
				onToolCall(tc.Name)
			}

			argsJSON, _ := json.Marshal(tc.Arguments)
			slog.Info("tool call", "name", tc.Name, "args", llmutils.Truncate(string(argsJSON), 200))

			var result string
			if t := r.tools.Get(tc.Name); t != nil {
				var execErr error
				result, execErr = t.Execute(ctx, tc.Arguments)
				if execErr != nil {
					result = fmt.Sprintf("Error: %v", execErr)
				}
			} else {
				result = fmt.Sprintf("Error: tool %q not found", tc.Name)
			}

			conversation.AddToolResult(tc.ID, tc.Name, result)
		}
	}

	return "I've hit my tool budget for this message without reaching an answer. Mind rephrasing?", nil
}
