package context

import (
	"context"
	"os"
	"sync"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/workflow"
)

// Loader scans every vault's AssistantMD/ContextTemplates/ directory plus
// the system-wide fallback at <system_root>/ContextTemplates/ (spec §6),
// indexing templates by global_id exactly like the Workflow Loader.
type Loader struct {
	mu         sync.RWMutex
	index      map[string]*Template
	systemRoot workflow.Vault
}

// NewLoader builds an empty Loader. systemRoot may be nil if there is no
// system-wide fallback directory configured.
func NewLoader(systemRoot workflow.Vault) *Loader {
	return &Loader{index: map[string]*Template{}, systemRoot: systemRoot}
}

// Get resolves global_id to its currently-loaded Template.
func (l *Loader) Get(globalID string) (*Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.index[globalID]
	return t, ok
}

// List returns every currently-loaded Template.
func (l *Loader) List() []*Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Template, 0, len(l.index))
	for _, t := range l.index {
		out = append(out, t)
	}
	return out
}

// Rescan discovers and parses every context template across vaults plus
// the system-wide fallback, atomically replacing the index.
func (l *Loader) Rescan(ctx context.Context, vaults []workflow.VaultRef) (*workflow.LoadResult, error) {
	index, result, err := l.scan(ctx, vaults)
	if err != nil {
		return result, err
	}
	l.mu.Lock()
	l.index = index
	l.mu.Unlock()
	return result, nil
}

func (l *Loader) scan(ctx context.Context, vaults []workflow.VaultRef) (map[string]*Template, *workflow.LoadResult, error) {
	index := map[string]*Template{}
	result := &workflow.LoadResult{ErrorSummary: workflow.ErrorSummary{ByFile: map[string]int{}}}

	scanOne := func(vaultName string, v workflow.Vault, relDir string) {
		dir, err := v.Resolve(relDir)
		if err != nil {
			return
		}
		files, err := workflow.Scan(dir)
		if err != nil {
			return
		}
		for _, f := range files {
			result.FilesProcessed++
			data, err := os.ReadFile(f)
			if err != nil {
				result.Errors = append(result.Errors, workflow.LoadError{File: f, Error: err})
				continue
			}
			name := workflow.RelativeName(dir, f)
			tmpl, err := NewTemplate(vaultName, name, f, core.Digest(data), data)
			if err != nil {
				result.Errors = append(result.Errors, workflow.LoadError{File: f, Error: err})
				result.ErrorSummary.TotalErrors++
				result.ErrorSummary.ParseErrors++
				result.ErrorSummary.ByFile[f]++
				continue
			}
			index[tmpl.GlobalID] = tmpl
			result.DefinitionsLoaded++
		}
	}

	for _, vr := range vaults {
		select {
		case <-ctx.Done():
			return nil, result, ctx.Err()
		default:
		}
		scanOne(vr.Name, vr.Vault, "AssistantMD/ContextTemplates")
	}
	if l.systemRoot != nil {
		scanOne("system", l.systemRoot, "ContextTemplates")
	}
	return index, result, nil
}
