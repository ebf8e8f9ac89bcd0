package workflow

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
)

// Vault is the subset of core.Vault the Loader needs: resolving
// "AssistantMD/Workflows" inside one vault root.
type Vault interface {
	Root() string
	Resolve(relPath string) (string, error)
}

// VaultRef names a vault for global_id purposes alongside its root.
type VaultRef struct {
	Name  string
	Vault Vault
}

// LoadError pairs one file with the error it failed to load with,
// generalizing the teacher's autoload.LoadError (spec SUPPLEMENTED
// FEATURES #1).
type LoadError struct {
	File  string
	Error error
}

// ErrorSummary categorizes every LoadError, generalizing
// autoload.ErrorSummary so `rescan()` (spec §6) has a structured report.
type ErrorSummary struct {
	TotalErrors      int
	ParseErrors      int
	ValidationErrors int
	SecurityErrors   int
	ByFile           map[string]int
}

// LoadResult is Rescan/Validate's return value, generalizing
// autoload.LoadResult.
type LoadResult struct {
	FilesProcessed int
	DefinitionsLoaded int
	Errors         []LoadError
	ErrorSummary   ErrorSummary
}

// Loader scans every known vault's AssistantMD/Workflows/ directory,
// parses each *.md file, and indexes the result by global_id (spec
// §4.J). A failed file is recorded in the LoadResult but never aborts
// the scan ("strict vs lenient" per SUPPLEMENTED FEATURES #2 — workflow
// loads are always lenient).
type Loader struct {
	mu    sync.RWMutex
	index map[string]*Definition
}

// New builds an empty Loader.
func New() *Loader {
	return &Loader{index: map[string]*Definition{}}
}

// Get resolves global_id to its currently-loaded Definition.
func (l *Loader) Get(globalID string) (*Definition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.index[globalID]
	return d, ok
}

// List returns every currently-loaded Definition, snapshot-safe.
func (l *Loader) List() []*Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Definition, 0, len(l.index))
	for _, d := range l.index {
		out = append(out, d)
	}
	return out
}

// Rescan discovers and parses every workflow file across vaults and
// atomically replaces the whole index (spec §4.J: "idempotent and
// replaces the whole index atomically").
func (l *Loader) Rescan(ctx context.Context, vaults []VaultRef) (*LoadResult, error) {
	index, result, err := l.scan(ctx, vaults)
	if err != nil {
		return result, err
	}
	l.mu.Lock()
	l.index = index
	l.mu.Unlock()
	return result, nil
}

// Validate performs a non-mutating dry run (spec SUPPLEMENTED FEATURES
// #4): every workflow file is parsed and the full LoadResult returned,
// without touching the live index.
func (l *Loader) Validate(ctx context.Context, vaults []VaultRef) (*LoadResult, error) {
	_, result, err := l.scan(ctx, vaults)
	return result, err
}

func (l *Loader) scan(ctx context.Context, vaults []VaultRef) (map[string]*Definition, *LoadResult, error) {
	index := map[string]*Definition{}
	result := &LoadResult{ErrorSummary: ErrorSummary{ByFile: map[string]int{}}}

	for _, vr := range vaults {
		select {
		case <-ctx.Done():
			return nil, result, ctx.Err()
		default:
		}
		workflowsDir, err := vr.Vault.Resolve("AssistantMD/Workflows")
		if err != nil {
			continue
		}
		files, err := Scan(workflowsDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			result.FilesProcessed++
			data, err := os.ReadFile(f)
			if err != nil {
				recordError(result, f, err)
				continue
			}
			name := RelativeName(workflowsDir, f)
			def, err := NewDefinition(vr.Name, name, f, core.Digest(data), data)
			if err != nil {
				recordError(result, f, err)
				continue
			}
			index[def.GlobalID] = def
			result.DefinitionsLoaded++
		}
	}
	return index, result, nil
}

func recordError(result *LoadResult, file string, err error) {
	result.Errors = append(result.Errors, LoadError{File: file, Error: err})
	categorize(err, &result.ErrorSummary, file)
}

func categorize(err error, summary *ErrorSummary, file string) {
	summary.TotalErrors++
	summary.ByFile[file]++

	var de *directive.ParseError
	var ce *core.Error
	switch {
	case errors.As(err, &de):
		summary.ParseErrors++
	case errors.As(err, &ce) && ce.Code == core.CodeVaultBoundary:
		summary.SecurityErrors++
	case errors.As(err, &ce):
		summary.ValidationErrors++
	case strings.Contains(err.Error(), "parse"):
		summary.ParseErrors++
	default:
		summary.ValidationErrors++
	}
}
