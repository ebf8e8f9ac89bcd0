// Package llm implements the LLM Gateway (spec §4.G): resolving model
// aliases, attaching system/user messages, driving an optional tool-call
// loop, and emitting an ordered event stream. It never touches langchaingo
// directly — it drives an llmadapter.LLMClient, the same boundary the
// teacher's own engine/llm/adapter package draws.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/llmadapter"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/tooladapter"
)

// EventKind is one of the ordered stream events spec §4.G defines.
type EventKind string

const (
	EventDelta            EventKind = "delta"
	EventToolCallStarted  EventKind = "tool_call_started"
	EventToolCallFinished EventKind = "tool_call_finished"
	EventDone             EventKind = "done"
	EventError            EventKind = "error"
)

// Event is one entry in the Gateway's output stream.
type Event struct {
	Kind EventKind
	Text string // EventDelta: a text chunk; EventDone: the final assistant text

	ToolCallID string
	ToolName   string
	ToolArgs   map[string]any
	ToolResult string // EventToolCallFinished
	ToolErr    error
	Err        error
}

// Gateway resolves model aliases against the settings-configured registry
// and runs the call+tool loop for one step.
type Gateway struct {
	clients      map[string]llmadapter.LLMClient
	defaultAlias string
	maxToolHops  int
}

// New builds a Gateway. clients is the alias->LLMClient registry built
// from settings.yaml at bootstrap/reload (engine/provider); defaultAlias
// is used when a step's `@model` directive is absent.
func New(clients map[string]llmadapter.LLMClient, defaultAlias string) *Gateway {
	return &Gateway{clients: clients, defaultAlias: defaultAlias, maxToolHops: 8}
}

// Request is one Gateway invocation (spec §4.G:
// "(model_alias, system_prompt, user_prompt, tools)").
type Request struct {
	ModelAlias   string
	Thinking     bool
	SystemPrompt string
	UserPrompt   string
	Tools        *tooladapter.Adapter
}

// Call resolves the model, sends the composed messages, and — if the
// model issues tool calls — drives the Adapter and feeds results back
// until the model produces a final answer or maxToolHops is exceeded.
// Events are appended to a slice rather than pushed over a channel: step
// execution within a run is strictly sequential (spec §5), so there is no
// concurrent consumer to justify channel overhead here.
func (g *Gateway) Call(ctx context.Context, req Request) ([]Event, error) {
	alias := req.ModelAlias
	if alias == "" {
		alias = g.defaultAlias
	}
	client, ok := g.clients[alias]
	if !ok {
		return nil, fmt.Errorf("llm: model alias %q is not configured", alias)
	}

	llmReq := &llmadapter.LLMRequest{
		SystemPrompt: req.SystemPrompt,
		Messages:     []llmadapter.Message{{Role: "user", Content: req.UserPrompt}},
	}
	if req.Tools != nil {
		llmReq.Tools = toolDefinitions(req.Tools)
	}

	var events []Event
	var finalText string
	for hop := 0; hop < g.maxToolHops; hop++ {
		resp, err := client.GenerateContent(ctx, llmReq)
		if err != nil {
			events = append(events, Event{Kind: EventError, Err: err})
			return events, err
		}
		if resp.Content != "" {
			events = append(events, Event{Kind: EventDelta, Text: resp.Content})
		}
		if len(resp.ToolCalls) == 0 || req.Tools == nil {
			finalText = resp.Content
			break
		}

		llmReq.Messages = append(llmReq.Messages, llmadapter.Message{Role: "assistant", Content: resp.Content})
		for _, tc := range resp.ToolCalls {
			args := map[string]any{}
			_ = json.Unmarshal(tc.Arguments, &args)
			events = append(events, Event{Kind: EventToolCallStarted, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: args})
			call := req.Tools.Call(ctx, tc.ID, tc.Name, args)
			events = append(events, Event{
				Kind: EventToolCallFinished, ToolCallID: tc.ID, ToolName: tc.Name,
				ToolResult: call.Result, ToolErr: call.Err,
			})
			llmReq.Messages = append(llmReq.Messages, llmadapter.Message{
				Role: "tool", ToolCallID: tc.ID, ToolName: tc.Name, Content: toolResultText(call),
			})
		}
		finalText = resp.Content
	}

	events = append(events, Event{Kind: EventDone, Text: finalText})
	return events, nil
}

func toolResultText(call tooladapter.CallEvent) string {
	if call.Err != nil {
		return fmt.Sprintf("error: %v", call.Err)
	}
	return call.Result
}

func toolDefinitions(a *tooladapter.Adapter) []llmadapter.ToolDefinition {
	var out []llmadapter.ToolDefinition
	for _, t := range a.Enabled() {
		out = append(out, llmadapter.ToolDefinition{Name: t.Name(), Description: t.Instructions()})
	}
	return out
}
