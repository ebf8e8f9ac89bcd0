// Package llmadapter isolates the rest of the engine from langchaingo's
// provider-specific wire types. Callers speak LLMRequest/LLMResponse; only
// LangChainAdapter ever imports github.com/tmc/langchaingo/llms.
package llmadapter

import (
	"context"
	"encoding/json"
)

// Message is one turn of the conversation handed to the model. Role is
// "system", "user", "assistant", or "tool".
type Message struct {
	Role       string
	Content    string
	ToolCallID string // set on Role == "tool": which call this is answering
	ToolName   string // set on Role == "tool"
}

// ToolDefinition is a callable tool's schema, as the LLM Gateway reports it
// after resolving a step's `@tools` directive (spec §4.F/§4.G).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// LLMRequest is one call to a model.
type LLMRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
}

// LLMResponse is the model's reply: either a final Content string, or one
// or more ToolCalls the caller must satisfy before the step can complete.
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// LLMClient is the provider-agnostic surface the LLM Gateway drives. A
// concrete LangChainAdapter wraps a langchaingo llms.Model; TestAdapter and
// MockToolAdapter stand in for it in tests.
type LLMClient interface {
	GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}
