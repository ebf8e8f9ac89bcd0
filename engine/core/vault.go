package core

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
)

// Vault wraps an absolute vault root directory and resolves paths inside
// it, rejecting any attempt to escape the root (absolute paths, ".."
// segments, or symlink escapes). Every `file:` directive value, workflow
// scan, and router file write in the engine goes through a Vault.
type Vault struct {
	root string
}

// NewVault builds a Vault rooted at root, made absolute with filepath.Abs.
// Whether root exists is not checked.
func NewVault(root string) (*Vault, error) {
	if root == "" {
		return nil, errors.New("vault root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Vault{root: abs}, nil
}

// Root returns the vault's absolute root path.
func (v *Vault) Root() string { return v.root }

// Resolve turns a vault-relative path into an absolute path guaranteed to
// be a descendant of the vault root. It rejects absolute paths and ".."
// segments before ever touching the filesystem, then re-checks after
// resolving symlinks so a symlink planted inside the vault cannot be used
// to point back out of it.
func (v *Vault) Resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", NewError(errors.New("path cannot be empty"), CodeVaultBoundary, map[string]any{"root": v.root})
	}
	clean := filepath.Clean(relPath)
	if filepath.IsAbs(clean) {
		return "", NewError(
			errors.New("absolute paths are not allowed"),
			CodeVaultBoundary,
			map[string]any{"path": relPath, "root": v.root},
		)
	}
	for _, seg := range strings.Split(clean, string(filepath.Separator)) {
		if seg == ".." {
			return "", NewError(
				errors.New("parent directory references are not allowed"),
				CodeVaultBoundary,
				map[string]any{"path": relPath, "root": v.root},
			)
		}
	}
	abs := filepath.Join(v.root, clean)
	if err := v.checkWithin(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// checkWithin verifies abs (and, transitively, its resolved symlink
// target if it exists) stays within the vault root.
func (v *Vault) checkWithin(abs string) error {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return NewError(
			errors.New("path escapes vault root"),
			CodeVaultBoundary,
			map[string]any{"path": abs, "root": v.root},
		)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path does not exist yet (common for a new file write); the
		// textual containment check above is all we can do.
		return nil
	}
	resolvedRoot, err := filepath.EvalSymlinks(v.root)
	if err != nil {
		return nil
	}
	relResolved, err := filepath.Rel(resolvedRoot, resolved)
	norm := func(s string) string {
		if runtime.GOOS == "windows" {
			return strings.ToLower(s)
		}
		return s
	}
	if err != nil || strings.HasPrefix(norm(relResolved), "..") || filepath.IsAbs(relResolved) {
		return NewError(
			errors.New("symlink escapes vault root"),
			CodeVaultBoundary,
			map[string]any{"path": abs, "root": v.root},
		)
	}
	return nil
}
