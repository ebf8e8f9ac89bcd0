package context

import (
	"context"
	"strconv"
	"strings"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/step"
)

// frameworkPreamble is the fixed system-prompt prefix every chat session
// gets regardless of what a Context Template contributes.
const frameworkPreamble = "You are the AssistantMD chat agent for this vault. Use only the context supplied below; do not invent facts about files you have not been shown."

// Turn is one message in a chat session's history, oldest first.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Result is BuildContext's return value: the composed system prompt plus
// the passthrough history window to send alongside it.
type Result struct {
	SystemPrompt string
	History      []Turn
}

// Manager implements the Context Manager (spec §4.I): turning a Context
// Template plus a session's chat history into a system prompt, running
// only the sections that gating allows and caching their output across
// invocations.
type Manager struct {
	engine  *step.Engine
	cache   *Cache
	history *History
	clock   core.Clock
}

// NewManager wires a Context Manager. engine is reused verbatim to run a
// template's executable sections "exactly like a step" (spec §4.I);
// cache and history are the per-process stores backing `@cache` and
// `@recent_runs`/`@recent_summaries`.
func NewManager(engine *step.Engine, cache *Cache, history *History, clock core.Clock) *Manager {
	return &Manager{engine: engine, cache: cache, history: history, clock: clock}
}

// BuildContext composes the system prompt for one chat turn against tmpl.
// sessionID scopes `@cache session` entries; priorHistory is the session's
// turns so far (not including the message the user is sending now);
// latestUserMessage is always included verbatim in the returned window
// (spec §4.I: "the latest user message is always included verbatim").
func (m *Manager) BuildContext(
	ctx context.Context,
	tmpl *Template,
	sessionID string,
	priorHistory []Turn,
	latestUserMessage string,
) (*Result, error) {
	window := passthroughWindow(priorHistory, tmpl.PassthroughRuns, latestUserMessage)

	// Chat Instructions only: no executable sections to gate or run
	// (spec §4.I.1).
	if !tmpl.HasExecutableSections() {
		return &Result{
			SystemPrompt: joinPreamble(tmpl.ChatInstructions),
			History:      window,
		}, nil
	}

	if tmpl.TokenThreshold > 0 && estimateTokens(priorHistory) < tmpl.TokenThreshold {
		return &Result{
			SystemPrompt: joinPreamble(tmpl.ChatInstructions),
			History:      window,
		}, nil
	}

	var contextParts []string
	var runSummaries []string
	for idx, section := range tmpl.Sections {
		res, err := m.runSection(ctx, tmpl, idx, section, sessionID)
		if err != nil {
			return nil, err
		}
		if res.Skipped {
			continue
		}
		if res.HasContextOutput {
			contextParts = append(contextParts, res.ContextPayload)
		}
		if res.Output != "" {
			m.history.RecordSectionOutput(tmpl.GlobalID, idx, res.Output)
			runSummaries = append(runSummaries, res.Output)
		}
	}
	if len(runSummaries) > 0 {
		m.history.RecordRun(tmpl.GlobalID, strings.Join(runSummaries, "\n"))
	}

	systemPrompt := joinPreamble(append([]string{tmpl.ChatInstructions}, contextParts...)...)
	return &Result{SystemPrompt: systemPrompt, History: window}, nil
}

// runSection runs one executable section, honoring `@run_on` gating and
// `@cache` — a section whose gating directives would skip execution
// never returns a cached value (spec §8: gating always wins over cache).
func (m *Manager) runSection(
	ctx context.Context,
	tmpl *Template,
	idx int,
	section directive.Section,
	sessionID string,
) (step.StepResult, error) {
	dirs := section.Directives
	if dirs.HasRunOn && !dirs.RunOn.Allows(m.clock.Now().Weekday()) {
		return step.StepResult{Heading: section.Heading, Skipped: true, SkipReason: "run_on"}, nil
	}

	runsN, summariesN := recentN(dirs.RecentRuns), recentN(dirs.RecentSummaries)
	recentRuns := m.history.RecentRuns(tmpl.GlobalID, runsN)
	recentSummaries := m.history.RecentSectionOutputs(tmpl.GlobalID, idx, summariesN)

	var cacheKey string
	if dirs.HasCache {
		_, perSession, err := ParseCacheSpec(dirs.Cache)
		if err == nil {
			cacheKey = CacheKey(tmpl.Digest, idx, DigestStrings(recentRuns), DigestStrings(recentSummaries), sessionID, perSession)
			if cached, ok := m.cache.Get(cacheKey); ok {
				if res, ok := cached.(step.StepResult); ok {
					return res, nil
				}
			}
		}
	}

	augmented := section
	augmented.Body = prependRecent(section.Body, recentRuns, recentSummaries)

	res := m.engine.RunStep(ctx, tmpl.GlobalID, tmpl.ContextInstructions, augmented)
	if res.Err != nil {
		return res, res.Err
	}

	if cacheKey != "" {
		ttl, _, _ := ParseCacheSpec(dirs.Cache)
		m.cache.Put(cacheKey, res, ttl)
	}
	return res, nil
}

func recentN(spec *directive.RecentSpec) int {
	if spec == nil {
		return 0
	}
	if spec.All {
		return -1
	}
	return spec.N
}

func prependRecent(body string, runs, summaries []string) string {
	var parts []string
	if len(summaries) > 0 {
		parts = append(parts, "Recent section outputs:\n"+strings.Join(summaries, "\n---\n"))
	}
	if len(runs) > 0 {
		parts = append(parts, "Recent run summaries:\n"+strings.Join(runs, "\n---\n"))
	}
	parts = append(parts, body)
	return strings.Join(parts, "\n\n")
}

// passthroughWindow builds the history sent alongside the composed system
// prompt: the last N turns per `passthrough_runs` (unset or "all" means
// every turn is kept), plus latestUserMessage appended verbatim.
func passthroughWindow(history []Turn, spec string, latestUserMessage string) []Turn {
	n := -1
	spec = strings.TrimSpace(spec)
	if spec != "" && spec != "all" {
		if v, err := strconv.Atoi(spec); err == nil && v >= 0 {
			n = v
		}
	}
	base := history
	if n >= 0 && n < len(history) {
		base = history[len(history)-n:]
	}
	out := make([]Turn, 0, len(base)+1)
	out = append(out, base...)
	out = append(out, Turn{Role: "user", Content: latestUserMessage})
	return out
}

// estimateTokens is an opaque monotonic token-count approximation (spec
// §9: "the exact estimator is unspecified; it need only be monotonic in
// input size"). ~4 characters/token is the common rule of thumb used
// across the provider SDKs this gateway drives.
func estimateTokens(history []Turn) int {
	total := 0
	for _, t := range history {
		total += len(t.Content)
	}
	return total / 4
}

func joinPreamble(parts ...string) string {
	all := append([]string{frameworkPreamble}, parts...)
	var nonEmpty []string
	for _, p := range all {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(p))
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
