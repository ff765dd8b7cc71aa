package tools

import "context"

// TurnContext carries per-turn routing metadata through the context tree.
// The orchestrator sets it once per message; stateful tools (reminders)
// read it inside Execute to learn which conversation they act for.
type TurnContext struct {
	ConversationID string
}

type turnKey struct{}

// WithTurn returns a child context that carries tc.
func WithTurn(ctx context.Context, tc TurnContext) context.Context {
	return context.WithValue(ctx, turnKey{}, tc)
}

// TurnCtx extracts the TurnContext from ctx.
// Returns a zero-value TurnContext if none was set.
func TurnCtx(ctx context.Context) TurnContext {
	tc, _ := ctx.Value(turnKey{}).(TurnContext)
	return tc
}
