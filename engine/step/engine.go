// Package step implements the Step Engine (spec §4.H): running a Workflow
// Definition's steps in source order, honoring `@run_on` gating, input
// resolution, the LLM Gateway call, and Router-based output writing.
package step

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/input"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/llm"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/pattern"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/router"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/tooladapter"
)

// Cause is why a run was triggered (spec §4.H: "scheduled or manual or
// single-step").
type Cause string

const (
	CauseScheduled  Cause = "scheduled"
	CauseManual     Cause = "manual"
	CauseSingleStep Cause = "single_step"
)

// StepResult is one Step's outcome, appended to the run log.
type StepResult struct {
	Heading    string
	Skipped    bool
	SkipReason string
	Output     string
	Err        error

	// HasContextOutput and ContextPayload surface a `context`-destined
	// output separately from the joined manifest in Output, so the
	// Context Manager (§4.I) can append exactly this text to the chat
	// agent's system preamble ("the only way to influence chat context").
	HasContextOutput bool
	ContextPayload   string
}

// RunRecord is the Step Engine's return value (spec §4.H.3).
type RunRecord struct {
	ID                core.ID
	WorkflowGlobalID  string
	Cause             Cause
	StartedAt         time.Time
	FinishedAt        time.Time
	Steps             []StepResult
}

// Engine wires the Pattern Resolver, Input Resolver, LLM Gateway, Tool
// Adapter registry, and Router together to run one Workflow Definition.
type Engine struct {
	patterns     *pattern.Resolver
	inputs       *input.Resolver
	gateway      *llm.Gateway
	router       *router.Router
	pending      *input.PendingStore
	clock        core.Clock
	tools        map[string]tooladapter.Tool
	defaultAlias string
}

// New builds a Step Engine. tools is the full registry of concrete tool
// implementations; a step's own `@tools` directive selects which of them
// are enabled for that call (spec §4.F).
func New(
	patterns *pattern.Resolver,
	inputs *input.Resolver,
	gateway *llm.Gateway,
	rt *router.Router,
	pending *input.PendingStore,
	clock core.Clock,
	tools map[string]tooladapter.Tool,
	defaultAlias string,
) *Engine {
	return &Engine{
		patterns: patterns, inputs: inputs, gateway: gateway, router: rt,
		pending: pending, clock: clock, tools: tools, defaultAlias: defaultAlias,
	}
}

// RunWorkflow executes every executable Section of doc in source order
// (spec §4.H). contextPreamble, when non-empty, is unioned into the
// system message — this is how the Context Manager (§4.I) hands a
// section's already-composed preamble down into a step run.
func (e *Engine) RunWorkflow(
	ctx context.Context,
	doc *directive.Document,
	workflowGlobalID string,
	cause Cause,
	contextPreamble string,
) (*RunRecord, error) {
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("step: new run id: %w", err)
	}
	record := &RunRecord{ID: id, WorkflowGlobalID: workflowGlobalID, Cause: cause, StartedAt: e.clock.Now()}

	instructions := instructionsPreamble(doc)
	systemBase := strings.TrimSpace(strings.Join(nonEmpty(instructions, contextPreamble), "\n\n"))

	for _, section := range doc.Sections {
		if section.Role != directive.RoleExecutable {
			continue
		}
		result := e.runStep(ctx, workflowGlobalID, systemBase, section)
		record.Steps = append(record.Steps, result)
	}

	record.FinishedAt = e.clock.Now()
	return record, nil
}

// RunStep executes a single step/section in isolation (spec §4.H's
// "single-step" cause and the Context Manager's "run the section exactly
// like a step").
func (e *Engine) RunStep(ctx context.Context, workflowGlobalID, systemBase string, section directive.Section) StepResult {
	return e.runStep(ctx, workflowGlobalID, systemBase, section)
}

func (e *Engine) runStep(ctx context.Context, workflowGlobalID, systemBase string, section directive.Section) StepResult {
	res := StepResult{Heading: section.Heading}
	dirs := section.Directives

	if dirs.HasRunOn && !dirs.RunOn.Allows(e.clock.Now().Weekday()) {
		res.Skipped = true
		res.SkipReason = "run_on"
		return res
	}

	inputTexts, pendingCommits, ok, err := e.resolveInputs(ctx, workflowGlobalID, dirs.Inputs)
	if err != nil {
		res.Err = err
		return res
	}
	if !ok {
		res.Skipped = true
		res.SkipReason = "required_input_missing"
		return res
	}

	userMessage := e.composeUserMessage(inputTexts, section.Body)

	modelNone := dirs.Model != nil && dirs.Model.None
	var finalText string
	if modelNone {
		finalText = strings.Join(inputTexts, "\n\n")
	} else {
		tools := tooladapter.New(dirs.Tools, e.tools, e.router)
		req := llm.Request{SystemPrompt: systemBase, UserPrompt: userMessage, Tools: tools}
		if dirs.Model != nil {
			req.ModelAlias = dirs.Model.Alias
			req.Thinking = dirs.Model.Thinking
		}
		events, callErr := e.gateway.Call(ctx, req)
		if callErr != nil {
			res.Err = callErr
			return res
		}
		for _, ev := range events {
			if ev.Kind == llm.EventDone {
				finalText = ev.Text
			}
		}
	}

	if len(dirs.Outputs) == 0 && !modelNone {
		res.Err = fmt.Errorf("step: no routed output destination for step %q", section.Heading)
		return res
	}
	if len(dirs.Outputs) == 0 {
		res.Output = finalText
		e.commitPending(workflowGlobalID, pendingCommits)
		return res
	}

	var manifests []string
	var contextParts []string
	for _, dest := range dirs.Outputs {
		content := finalText
		if dest.Kind == directive.OutputFile && dirs.HasHeader {
			content = "# " + dirs.Header + "\n\n" + content
		}
		resolvedDest, err := e.resolveDestination(dest)
		if err != nil {
			res.Err = err
			return res
		}
		routed, err := e.router.Route(resolvedDest, router.Payload{Content: content}, "step:"+section.Heading)
		if err != nil {
			res.Err = err
			return res
		}
		manifests = append(manifests, routed.Text)
		if routed.ContextAppend {
			res.HasContextOutput = true
			contextParts = append(contextParts, routed.Text)
		}
	}
	res.Output = strings.Join(manifests, "\n")
	res.ContextPayload = strings.Join(contextParts, "\n\n")

	e.commitPending(workflowGlobalID, pendingCommits)
	return res
}

func (e *Engine) resolveDestination(dest directive.OutputTarget) (router.Destination, error) {
	name := dest.Name
	if dest.Kind == directive.OutputFile {
		resolved, err := e.patterns.ResolveScalar(name)
		if err != nil {
			return router.Destination{}, fmt.Errorf("step: resolve output path %q: %w", name, err)
		}
		name = resolved
	}
	return router.Destination{
		Kind:      router.Kind(dest.Kind),
		Name:      name,
		Scope:     toBufferScope(dest.Scope),
		WriteMode: router.WriteMode(dest.WriteMode),
	}, nil
}

type pendingCommit struct {
	pattern string
	files   []string
}

func (e *Engine) resolveInputs(
	ctx context.Context,
	workflowGlobalID string,
	ins []directive.InputDirective,
) ([]string, []pendingCommit, bool, error) {
	texts := make([]string, 0, len(ins))
	var commits []pendingCommit
	for _, in := range ins {
		res, err := e.inputs.Resolve(ctx, workflowGlobalID, in)
		if err != nil {
			return nil, nil, false, err
		}
		if res.Skip {
			if in.Required {
				return nil, nil, false, nil
			}
			continue
		}
		if res.Text != "" {
			texts = append(texts, res.Text)
		}
		if res.PendingPattern != "" {
			commits = append(commits, pendingCommit{pattern: res.PendingPattern, files: res.PendingFiles})
		}
	}
	return texts, commits, true, nil
}

func (e *Engine) commitPending(workflowGlobalID string, commits []pendingCommit) {
	for _, c := range commits {
		_ = e.pending.MarkProcessed(workflowGlobalID, c.pattern, c.files)
	}
}

// composeUserMessage joins resolved input texts with the step's prompt
// body verbatim. Pattern resolution applies only to directive values
// (spec §4.A, §4.H.d) — the body itself is never run through
// ResolveScalar, both because it is out of scope for substitution and
// because ordinary prose ("Think step by step...") would otherwise trip
// ResolveScalar's ".." rejection.
func (e *Engine) composeUserMessage(inputTexts []string, body string) string {
	parts := append(append([]string{}, inputTexts...), body)
	return strings.Join(nonEmpty(parts...), "\n\n")
}

func instructionsPreamble(doc *directive.Document) string {
	for _, s := range doc.Sections {
		if s.Role == directive.RoleInstructions {
			return s.Body
		}
	}
	return ""
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func toBufferScope(s directive.Scope) buffer.Scope {
	if s == directive.ScopeSession {
		return buffer.ScopeSession
	}
	return buffer.ScopeRun
}
