// Package tools implements the LLM-callable tools: web search and fetch,
// weather, and reminder management.
package tools

import (
	"github.com/amberlynx/amberlynx/internal/schema"
)

// Registry holds the configured tool set.
type Registry struct {
	tools []schema.Tool
}

// AllTools returns the registered tools as a ToolList ready for the loop
// runner.
func (r *Registry) AllTools() schema.ToolList {
	return schema.NewToolList(r.tools)
}

// RegistryBuilder accumulates tools during the construction phase.
// Call Build to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	tools []schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// WithTool adds a tool and returns the builder, enabling chaining.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	b.tools = append(b.tools, tool)
	return b
}

// Build produces an immutable Registry from the accumulated tools.
func (b *RegistryBuilder) Build() *Registry {
	tools := make([]schema.Tool, len(b.tools))
	copy(tools, b.tools)
	return &Registry{tools: tools}
}
