// Package buffer implements the named in-memory payload store (run-scoped
// and session-scoped) that the Router, Input Resolver, and Tool Adapter
// write through (spec §4.C).
package buffer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// WriteMode mirrors directive.WriteMode without importing that package,
// keeping Store usable from any caller that only knows append/replace/new.
type WriteMode string

const (
	WriteAppend  WriteMode = "append"
	WriteReplace WriteMode = "replace"
	WriteNew     WriteMode = "new"
)

// Scope is where a Buffer lives: one engine run, or one chat session.
type Scope string

const (
	ScopeRun     Scope = "run"
	ScopeSession Scope = "session"
)

// Buffer is one named payload (spec §3 "Buffer").
type Buffer struct {
	Name      string
	Scope     Scope
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Source    string
}

type key struct {
	scope Scope
	name  string
}

// Store holds every run-scoped and session-scoped buffer for one Runtime
// Context. Run buffers need no locking on their own (steps within a run
// execute strictly sequentially, spec §5), but session buffers can be hit
// by concurrent chat requests, so the whole map is guarded by one lock —
// matching the teacher's "session buffers use a per-session lock"
// granularity would add complexity this store doesn't need at this size.
type Store struct {
	mu      sync.RWMutex
	buffers map[key]*Buffer
	clock   core.Clock
}

// New creates an empty Store. clock is injectable for deterministic tests.
func New(clock core.Clock) *Store {
	return &Store{buffers: map[key]*Buffer{}, clock: clock}
}

// Put writes content under (scope, name) honoring the write mode (spec §4.C,
// §8 "Write-mode"). Under WriteNew it never overwrites an existing buffer:
// it finds the lowest unused `name_NNN` suffix. Put returns the name the
// content actually landed under (unchanged except under WriteNew).
func (s *Store) Put(scope Scope, name, content string, mode WriteMode, source string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("buffer name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()

	switch mode {
	case "", WriteReplace:
		k := key{scope, name}
		b, ok := s.buffers[k]
		if !ok {
			s.buffers[k] = &Buffer{Name: name, Scope: scope, Content: content, CreatedAt: now, UpdatedAt: now, Source: source}
			return name, nil
		}
		b.Content = content
		b.UpdatedAt = now
		b.Source = source
		return name, nil
	case WriteAppend:
		k := key{scope, name}
		b, ok := s.buffers[k]
		if !ok {
			s.buffers[k] = &Buffer{Name: name, Scope: scope, Content: content, CreatedAt: now, UpdatedAt: now, Source: source}
			return name, nil
		}
		b.Content = b.Content + "\n" + content
		b.UpdatedAt = now
		b.Source = source
		return name, nil
	case WriteNew:
		finalName := s.nextNumberedName(scope, name)
		s.buffers[key{scope, finalName}] = &Buffer{Name: finalName, Scope: scope, Content: content, CreatedAt: now, UpdatedAt: now, Source: source}
		return finalName, nil
	default:
		return "", fmt.Errorf("unknown write mode %q", mode)
	}
}

// nextNumberedName finds the lowest unused base_NNN suffix for base within
// scope, continuing in lexical order of prior writes (spec §4.C).
func (s *Store) nextNumberedName(scope Scope, base string) string {
	n := 0
	for {
		candidate := fmt.Sprintf("%s_%03d", base, n)
		if _, exists := s.buffers[key{scope, candidate}]; !exists {
			return candidate
		}
		n++
	}
}

// Get returns the buffer at (scope, name), or false if absent.
func (s *Store) Get(scope Scope, name string) (*Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[key{scope, name}]
	if !ok {
		return nil, false
	}
	cp := *b
	return &cp, true
}

// List returns every buffer in scope, ordered by name.
func (s *Store) List(scope Scope) []*Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Buffer
	for k, b := range s.buffers {
		if k.scope == scope {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Info reports metadata (no content) for one buffer.
func (s *Store) Info(scope Scope, name string) (Buffer, bool) {
	b, ok := s.Get(scope, name)
	if !ok {
		return Buffer{}, false
	}
	info := *b
	info.Content = ""
	return info, true
}

// Search returns buffers in scope whose content matches pattern (a plain
// substring; callers needing regex can pre-compile and call Get/List
// directly since the spec only requires a simple content search primitive).
func (s *Store) Search(scope Scope, pattern string) []*Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Buffer
	for k, b := range s.buffers {
		if k.scope == scope && strings.Contains(b.Content, pattern) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Export hands back the raw content so a caller (typically the Router
// writing a file: destination) can persist it outside the buffer store.
func (s *Store) Export(scope Scope, name string) (string, bool) {
	b, ok := s.Get(scope, name)
	if !ok {
		return "", false
	}
	return b.Content, true
}

// ClearRun drops every run-scoped buffer, leaving session buffers intact.
// Called once a Run Record is finalized (spec §4.C: "session buffers
// persist until the session is cleared").
func (s *Store) ClearRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.buffers {
		if k.scope == ScopeRun {
			delete(s.buffers, k)
		}
	}
}

// ClearSession drops every buffer belonging to one chat session id. The
// store itself is session-id agnostic (callers namespace session buffer
// names, e.g. "<session_id>:<name>"), so this is a prefix-based sweep.
func (s *Store) ClearSession(sessionID string) {
	prefix := sessionID + ":"
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.buffers {
		if k.scope == ScopeSession && strings.HasPrefix(k.name, prefix) {
			delete(s.buffers, k)
		}
	}
}
