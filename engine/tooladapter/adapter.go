// Package tooladapter implements the Tool Adapter (spec §4.F): wrapping
// tool invocations so each tool call's result is routed per its `@tools`
// token parameters, with the LLM seeing only a manifest when routing is
// active.
package tooladapter

import (
	"context"
	"fmt"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/router"
)

// Tool is the provider-agnostic surface a concrete tool implementation
// exposes (spec §6 "Tools expose invoke(name, args, context) plus an
// instructions() prompt snippet"). Concrete tools (web search, code exec,
// file I/O) are out of scope; this package only wraps whatever satisfies
// this interface.
type Tool interface {
	Name() string
	Instructions() string
	Invoke(ctx context.Context, args map[string]any) (Result, error)
}

// ResultKind is the ToolResult sum type from spec §9 ("duck-typed tool
// return values... define a sum type").
type ResultKind string

const (
	ResultText       ResultKind = "text"
	ResultStructured ResultKind = "structured"
	ResultMultimodal ResultKind = "multimodal"
)

// Result is a tool's return value, uniformly routable through D.
type Result struct {
	Kind       ResultKind
	Text       string
	Structured any
	Parts      []Part
}

// Part is one piece of a ResultMultimodal result (text or a labeled blob
// reference; concrete media handling is out of scope).
type Part struct {
	Label   string
	Text    string
	IsBlob  bool
	BlobRef string
}

// asText renders any Result kind down to the string the Router/manifest
// pipeline and LLM transcript operate on.
func (r Result) asText() string {
	switch r.Kind {
	case ResultStructured:
		return fmt.Sprintf("%v", r.Structured)
	case ResultMultimodal:
		out := ""
		for i, p := range r.Parts {
			if i > 0 {
				out += "\n"
			}
			if p.IsBlob {
				out += fmt.Sprintf("[%s: %s]", p.Label, p.BlobRef)
			} else {
				out += p.Text
			}
		}
		return out
	default:
		return r.Text
	}
}

// CallEvent is a typed tool-call record so a streaming API layer can
// forward it verbatim (spec §4.F, §4.G).
type CallEvent struct {
	ID     string
	Name   string
	Args   map[string]any
	Result string // manifest, when routed; raw text otherwise
	Err    error
}

// Adapter aggregates `@tools` tokens for one step and dispatches calls the
// LLM Gateway reports, routing each result per its token's parameters.
type Adapter struct {
	tools  map[string]Tool
	router *router.Router
	tokens map[string]directive.ToolToken
}

// New builds an Adapter from the step's aggregated `@tools` tokens
// (spec §4.F: "multiple @tools directives... union their tokens").
func New(tokens []directive.ToolToken, registry map[string]Tool, rt *router.Router) *Adapter {
	byName := make(map[string]directive.ToolToken, len(tokens))
	for _, t := range tokens {
		byName[t.Name] = t
	}
	return &Adapter{tools: registry, router: rt, tokens: byName}
}

// Enabled reports which registered tools this step's `@tools` enables, in
// the form the LLM Gateway needs for the provider's tool-call schema
// (name + instructions snippet).
func (a *Adapter) Enabled() []Tool {
	var out []Tool
	for name := range a.tokens {
		if t, ok := a.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Call invokes the named tool, routes its result per the token's
// parameters, and returns the CallEvent the caller should emit on the
// event sink verbatim (spec §4.F).
func (a *Adapter) Call(ctx context.Context, id, name string, args map[string]any) CallEvent {
	token, hasToken := a.tokens[name]
	if !hasToken {
		return CallEvent{ID: id, Name: name, Args: args, Err: fmt.Errorf("tool %q is not enabled for this step", name)}
	}
	tool, ok := a.tools[name]
	if !ok {
		return CallEvent{ID: id, Name: name, Args: args, Err: fmt.Errorf("tool %q is not registered", name)}
	}
	result, err := tool.Invoke(ctx, args)
	if err != nil {
		return CallEvent{ID: id, Name: name, Args: args, Err: err}
	}
	text := result.asText()
	if !token.HasOutput {
		return CallEvent{ID: id, Name: name, Args: args, Result: text}
	}
	dest := router.Destination{
		Kind:      router.Kind(token.Output.Kind),
		Name:      token.Output.Name,
		Scope:     toBufferScope(token.Output.Scope),
		WriteMode: router.WriteMode(token.Output.WriteMode),
	}
	routed, routeErr := a.router.Route(dest, router.Payload{Content: text, Labels: []string{name}}, "tool:"+name)
	if routeErr != nil {
		return CallEvent{ID: id, Name: name, Args: args, Err: routeErr}
	}
	return CallEvent{ID: id, Name: name, Args: args, Result: routed.Text}
}

func toBufferScope(s directive.Scope) buffer.Scope {
	if s == directive.ScopeSession {
		return buffer.ScopeSession
	}
	return buffer.ScopeRun
}
