package input

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/pattern"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/router"
)

// fileJoinDelimiter separates concatenated file contents so the LLM can
// tell where one input ends and the next begins (spec §4.E "Ordering").
const fileJoinDelimiter = "\n\n---\n\n"

const elisionMarker = "\n...[truncated]"

// Result is what one `@input` directive contributes to the user message.
type Result struct {
	// Text is the inline contribution (raw payload or, when HasOutput was
	// set, a manifest). Empty when the input was optional and unmatched.
	Text string
	// Skip signals InputMissing on a required input: the containing step
	// must be silently skipped for this run (spec §4.E, §7).
	Skip bool
	// PendingPattern/PendingFiles are set when the pattern ended in
	// {pending[:N]}; the Step Engine calls MarkProcessed with these only
	// after the step completes successfully (spec §4.E point 5).
	PendingPattern string
	PendingFiles   []string
}

// Resolver expands `@input` primitives into prompt text, honoring the
// vault sandbox, Pending State, and Router-based output routing.
type Resolver struct {
	patterns *pattern.Resolver
	vault    *core.Vault
	buffers  *buffer.Store
	router   *router.Router
}

// New builds an Input Resolver bound to the Pattern Resolver, vault,
// buffer store, and Router it drives.
func New(patterns *pattern.Resolver, vault *core.Vault, buffers *buffer.Store, rt *router.Router) *Resolver {
	return &Resolver{patterns: patterns, vault: vault, buffers: buffers, router: rt}
}

// Resolve expands one `@input` directive (spec §4.E).
func (r *Resolver) Resolve(ctx context.Context, workflowGlobalID string, in directive.InputDirective) (Result, error) {
	switch in.Kind {
	case directive.InputFile:
		return r.resolveFile(ctx, workflowGlobalID, in)
	case directive.InputVariable:
		return r.resolveVariable(in)
	default:
		return Result{}, fmt.Errorf("input: unknown input kind %q", in.Kind)
	}
}

func (r *Resolver) resolveFile(ctx context.Context, workflowGlobalID string, in directive.InputDirective) (Result, error) {
	matches, err := r.patterns.ResolveFileList(ctx, workflowGlobalID, in.Pattern)
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		if in.Required {
			return Result{Skip: true}, nil
		}
		return Result{}, nil
	}

	var items []string
	var found []string
	for _, rel := range matches {
		abs, err := r.vault.Resolve(rel)
		if err != nil {
			return Result{}, err
		}
		content, err := os.ReadFile(abs)
		if os.IsNotExist(err) {
			// A literal (glob-free) pattern resolves to its path whether or
			// not the file exists; a missing file is simply not a match.
			continue
		}
		if err != nil {
			return Result{}, core.NewError(err, core.CodeVaultBoundary, map[string]any{"path": rel})
		}
		items = append(items, applyModifiers(rel, string(content), in))
		found = append(found, rel)
	}
	if len(found) == 0 {
		if in.Required {
			return Result{Skip: true}, nil
		}
		return Result{}, nil
	}

	res := Result{}
	if isPendingPattern(in.Pattern) {
		res.PendingPattern = in.Pattern
		res.PendingFiles = found
	}

	assembled := strings.Join(items, fileJoinDelimiter)
	if err := r.route(&res, in, assembled, found); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (r *Resolver) resolveVariable(in directive.InputDirective) (Result, error) {
	scope := toBufferScope(in.Scope)
	b, ok := r.buffers.Get(scope, in.Pattern)
	if !ok {
		if in.Required {
			return Result{Skip: true}, nil
		}
		return Result{}, nil
	}
	item := applyModifiers(in.Pattern, b.Content, in)
	res := Result{}
	if err := r.route(&res, in, item, []string{in.Pattern}); err != nil {
		return Result{}, err
	}
	return res, nil
}

// route fills res.Text either by inlining assembled directly, or by
// routing it through the Router when `output=` was specified (spec §4.E
// point 4) and inlining the resulting manifest instead.
func (r *Resolver) route(res *Result, in directive.InputDirective, assembled string, labels []string) error {
	if !in.HasOutput {
		res.Text = assembled
		return nil
	}
	dest := router.Destination{
		Kind:      router.Kind(in.Output.Kind),
		Name:      in.Output.Name,
		Scope:     toBufferScope(in.Output.Scope),
		WriteMode: router.WriteMode(in.Output.WriteMode),
	}
	out, err := r.router.Route(dest, router.Payload{Content: assembled, Labels: labels}, "input")
	if err != nil {
		return err
	}
	res.Text = out.Text
	return nil
}

func toBufferScope(s directive.Scope) buffer.Scope {
	if s == directive.ScopeSession {
		return buffer.ScopeSession
	}
	return buffer.ScopeRun
}

func isPendingPattern(p string) bool {
	return strings.Contains(p, "{pending")
}

// applyModifiers applies refs_only > properties > head, in that
// precedence order (spec §4.E point 3).
func applyModifiers(label, content string, in directive.InputDirective) string {
	if in.RefsOnly {
		return label
	}
	if in.Properties != nil {
		if fm, ok := extractFrontMatterProperties(content, in.Properties); ok {
			return fm
		}
		return label
	}
	if in.Head > 0 {
		return truncateHead(content, in.Head)
	}
	return content
}

func truncateHead(s string, n int) string {
	if n >= len(s) {
		return s
	}
	return s[:n] + elisionMarker
}

// extractFrontMatterProperties reads the leading `---`-fenced YAML block
// of content and renders it back filtered to keys (empty keys: all keys).
// Returns ok=false when content has no frontmatter fence to extract.
func extractFrontMatterProperties(content string, keys []string) (string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", false
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return "", false
	}
	var all map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &all); err != nil {
		return "", false
	}
	if len(keys) == 0 {
		out, err := yaml.Marshal(all)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
	filtered := map[string]any{}
	for _, k := range keys {
		if v, ok := all[k]; ok {
			filtered[k] = v
		}
	}
	out, err := yaml.Marshal(filtered)
	if err != nil {
		return "", false
	}
	return string(out), true
}
