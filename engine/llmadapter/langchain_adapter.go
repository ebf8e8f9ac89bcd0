package llmadapter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter is the only file in this package that talks to
// langchaingo directly: it wraps an llms.Model and satisfies LLMClient by
// converting to/from this package's own request/response types.
type LangChainAdapter struct {
	model llms.Model
}

// NewLangChainAdapter wraps an already-constructed langchaingo model (see
// engine/provider for alias -> llms.Model construction).
func NewLangChainAdapter(model llms.Model) *LangChainAdapter {
	return &LangChainAdapter{model: model}
}

// GenerateContent implements LLMClient.
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	messages := a.convertMessages(req)
	opts := a.convertOptions(req)
	resp, err := a.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("llmadapter: generate content: %w", err)
	}
	return a.convertResponse(resp)
}

func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: req.SystemPrompt}},
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, a.convertMessage(m))
	}
	return messages
}

func (a *LangChainAdapter) convertMessage(m Message) llms.MessageContent {
	switch m.Role {
	case "assistant":
		return llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: []llms.ContentPart{llms.TextContent{Text: m.Content}}}
	case "tool":
		return llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{ToolCallID: m.ToolCallID, Name: m.ToolName, Content: m.Content},
			},
		}
	case "system":
		return llms.MessageContent{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: m.Content}}}
	default:
		return llms.MessageContent{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: m.Content}}}
	}
}

func (a *LangChainAdapter) convertOptions(req *LLMRequest) []llms.CallOption {
	if len(req.Tools) == 0 {
		return nil
	}
	return []llms.CallOption{llms.WithTools(a.convertTools(req.Tools))}
}

func (a *LangChainAdapter) convertTools(tools []ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, len(tools))
	for i, t := range tools {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llmadapter: empty response")
	}
	choice := resp.Choices[0]
	out := &LLMResponse{Content: choice.Content}
	if len(choice.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			out.ToolCalls[i] = ToolCall{ID: tc.ID}
			if tc.FunctionCall != nil {
				out.ToolCalls[i].Name = tc.FunctionCall.Name
				out.ToolCalls[i].Arguments = []byte(tc.FunctionCall.Arguments)
			}
		}
	}
	return out, nil
}
