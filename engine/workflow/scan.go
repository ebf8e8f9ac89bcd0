// Package workflow implements the Workflow Loader (spec §4.J): scanning a
// vault's AssistantMD/Workflows/ directory for *.md files, parsing them
// through engine/directive, and indexing the result by global_id.
package workflow

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scan walks root exactly as spec §4.J requires: "descending exactly one
// subdirectory level; ignores any directory whose name starts with `_`;
// reads every `*.md`". It returns absolute file paths, sorted for
// deterministic scan order.
func Scan(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if strings.HasPrefix(name, "_") {
				continue
			}
			sub, err := os.ReadDir(filepath.Join(root, name))
			if err != nil {
				continue
			}
			for _, se := range sub {
				if !se.IsDir() && strings.HasSuffix(se.Name(), ".md") {
					files = append(files, filepath.Join(root, name, se.Name()))
				}
			}
			continue
		}
		if strings.HasSuffix(name, ".md") {
			files = append(files, filepath.Join(root, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// RelativeName turns an absolute file path discovered under root into the
// dotted-slash workflow name used in its global_id: the path relative to
// root, slash-joined, with the ".md" extension stripped.
func RelativeName(root, absPath string) string {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		rel = filepath.Base(absPath)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, ".md")
}
