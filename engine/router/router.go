// Package router implements the single uniform writer used by the Input
// Resolver, Tool Adapter, and Step Engine to send a payload to its
// destination and, where the payload would otherwise have been inlined,
// produce a manifest in its place (spec §4.D).
package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// Kind is the destination kind a payload can be routed to.
type Kind string

const (
	KindInline   Kind = "inline"
	KindVariable Kind = "variable"
	KindFile     Kind = "file"
	KindContext  Kind = "context"
	KindDiscard  Kind = "discard"
)

// WriteMode mirrors buffer.WriteMode/directive.WriteMode at the Router's
// boundary so this package doesn't need to import the directive grammar.
type WriteMode = buffer.WriteMode

const (
	WriteAppend  = buffer.WriteAppend
	WriteReplace = buffer.WriteReplace
	WriteNew     = buffer.WriteNew
)

// Destination is a fully-resolved `{dest, write_mode, scope?}` triple
// (spec §4.D) — pattern substitution on PATH must already have happened.
type Destination struct {
	Kind      Kind
	Name      string // variable name, or vault-relative file path
	Scope     buffer.Scope
	WriteMode WriteMode
}

// Payload is what's being routed: the assembled text plus the source
// labels (file paths or origin tags) that feed the manifest.
type Payload struct {
	Content string
	Labels  []string
}

// Result is what the caller inlines in the prompt (or, for `context`,
// appends to the chat-agent system preamble) in place of the raw payload.
type Result struct {
	// Text is Payload.Content unchanged (inline, context), a manifest
	// (variable, file), or empty (discard).
	Text string
	// Manifested is true when Text is a manifest or the payload was
	// discarded, rather than raw content.
	Manifested bool
	// ContextAppend is true when Kind was `context`: the caller (Context
	// Manager) is responsible for appending Text to its system preamble.
	ContextAppend bool
}

// maxManifestLabels caps how many source labels the manifest names inline
// (spec §4.D: "up to K source labels").
const maxManifestLabels = 3

// Router routes a Payload to a Destination, writing through the buffer
// store or the vault filesystem as required.
type Router struct {
	vault   *core.Vault
	buffers *buffer.Store
}

// New builds a Router bound to one vault and one buffer store.
func New(vault *core.Vault, buffers *buffer.Store) *Router {
	return &Router{vault: vault, buffers: buffers}
}

// Route writes payload to dest and returns what the caller should inline.
func (r *Router) Route(dest Destination, payload Payload, source string) (Result, error) {
	switch dest.Kind {
	case KindInline, "":
		return Result{Text: payload.Content}, nil
	case KindDiscard:
		return Result{Text: "", Manifested: true}, nil
	case KindContext:
		return Result{Text: payload.Content, ContextAppend: true}, nil
	case KindVariable:
		return r.routeVariable(dest, payload, source)
	case KindFile:
		return r.routeFile(dest, payload)
	default:
		return Result{}, fmt.Errorf("router: unknown destination kind %q", dest.Kind)
	}
}

func (r *Router) routeVariable(dest Destination, payload Payload, source string) (Result, error) {
	scope := dest.Scope
	if scope == "" {
		scope = buffer.ScopeRun
	}
	name, err := r.buffers.Put(scope, dest.Name, payload.Content, dest.WriteMode, source)
	if err != nil {
		return Result{}, err
	}
	manifest := BuildManifest(len(payload.Labels), fmt.Sprintf("variable:%s", name), len(payload.Content), payload.Labels)
	return Result{Text: manifest, Manifested: true}, nil
}

func (r *Router) routeFile(dest Destination, payload Payload) (Result, error) {
	relPath := withMarkdownExt(dest.Name)
	abs, err := r.vault.Resolve(relPath)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Result{}, core.NewError(err, core.CodeVaultBoundary, map[string]any{"path": relPath})
	}
	finalRel := relPath
	switch dest.WriteMode {
	case WriteNew:
		finalRel, abs, err = nextNumberedFile(r.vault, relPath)
		if err != nil {
			return Result{}, err
		}
		if err := atomicWrite(abs, []byte(payload.Content)); err != nil {
			return Result{}, err
		}
	case WriteAppend:
		if err := appendFile(abs, payload.Content); err != nil {
			return Result{}, err
		}
	default: // "" and WriteReplace both replace
		if err := atomicWrite(abs, []byte(payload.Content)); err != nil {
			return Result{}, err
		}
	}
	manifest := BuildManifest(len(payload.Labels), fmt.Sprintf("file:%s", finalRel), len(payload.Content), payload.Labels)
	return Result{Text: manifest, Manifested: true}, nil
}

// withMarkdownExt auto-appends ".md" when the last path segment has no
// extension (spec §4.D).
func withMarkdownExt(relPath string) string {
	base := filepath.Base(relPath)
	if strings.Contains(base, ".") {
		return relPath
	}
	return relPath + ".md"
}

func nextNumberedFile(vault *core.Vault, relPath string) (string, string, error) {
	ext := filepath.Ext(relPath)
	stem := strings.TrimSuffix(relPath, ext)
	for n := 0; ; n++ {
		candidate := fmt.Sprintf("%s_%03d%s", stem, n, ext)
		abs, err := vault.Resolve(candidate)
		if err != nil {
			return "", "", err
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return candidate, abs, nil
		}
	}
}

// atomicWrite writes content to a temp file in the same directory, then
// renames it into place (spec §5: "writes are atomic: write-temp +
// rename").
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return core.NewError(err, core.CodeVaultBoundary, map[string]any{"path": path})
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.NewError(err, core.CodeVaultBoundary, map[string]any{"path": path})
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return core.NewError(err, core.CodeVaultBoundary, map[string]any{"path": path})
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return core.NewError(err, core.CodeVaultBoundary, map[string]any{"path": path})
	}
	return nil
}

func appendFile(path, content string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return core.NewError(err, core.CodeVaultBoundary, map[string]any{"path": path})
	}
	var out string
	if len(existing) == 0 {
		out = content
	} else {
		out = string(existing) + "\n" + content
	}
	return atomicWrite(path, []byte(out))
}

// BuildManifest renders the compact one-line summary substituted for a
// payload that has been routed elsewhere (spec §4.D).
func BuildManifest(count int, dest string, byteLen int, labels []string) string {
	shown := labels
	if len(shown) > maxManifestLabels {
		shown = shown[:maxManifestLabels]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[routed %d item(s) -> %s, %d bytes", count, dest, byteLen)
	if len(shown) > 0 {
		fmt.Fprintf(&b, ", sources: %s", strings.Join(shown, ", "))
		if len(labels) > len(shown) {
			fmt.Fprintf(&b, " (+%d more)", len(labels)-len(shown))
		}
	}
	b.WriteString("]")
	return b.String()
}
