// Package pattern implements the Pattern Resolver (spec §4.A): expanding
// {today}-style date tokens, {latest[:N]}/{pending[:N]} file-list
// selectors, and single-segment shell globs inside directive values.
package pattern

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// PendingStore is the subset of the Pending State store (spec §3) the
// Pattern Resolver needs to expand {pending[:N]}. The Input Resolver
// (engine/input) owns the concrete implementation and mutation lifecycle;
// the Pattern Resolver only reads from it.
type PendingStore interface {
	// Candidates filters allMatches (vault-relative paths already sorted
	// ascending) down to the ones still pending for (workflowGlobalID,
	// patternString): never marked processed, or marked but whose current
	// digest no longer matches the last-known digest.
	Candidates(
		ctx context.Context,
		workflowGlobalID, patternString string,
		allMatches []string,
	) ([]string, error)
}

// Resolver expands directive-value patterns against a vault.
type Resolver struct {
	vault     *core.Vault
	clock     core.Clock
	weekStart time.Weekday
	pending   PendingStore
	tokens    map[string]dayToken
}

// New builds a Resolver. pending may be nil if the caller never resolves
// {pending} patterns (e.g. when only rendering @header/@output scalars).
func New(vault *core.Vault, clock core.Clock, weekStart time.Weekday, pending PendingStore) *Resolver {
	return &Resolver{
		vault:     vault,
		clock:     clock,
		weekStart: weekStart,
		pending:   pending,
		tokens:    newDayTokens(),
	}
}

// ResolveScalar expands date tokens in a single directive value (used for
// @header and @output file:PATH). {latest}/{pending} are not date tokens
// and are rejected as InvalidPattern, as is any ".."; glob characters are
// not expanded and pass through unchanged.
func (r *Resolver) ResolveScalar(value string) (string, error) {
	if strings.Contains(value, "..") {
		return "", core.NewError(
			errForbiddenSegment("value contains '..'"), core.CodeInvalidPattern,
			map[string]any{"value": value},
		)
	}
	var resolveErr error
	out := tokenRe.ReplaceAllStringFunc(value, func(match string) string {
		if resolveErr != nil {
			return match
		}
		sub := tokenRe.FindStringSubmatch(match)
		name, format := sub[1], sub[3]
		tok, ok := r.tokens[name]
		if !ok {
			resolveErr = core.NewError(
				errUnknownToken(name), core.CodeInvalidPattern,
				map[string]any{"token": name, "value": value},
			)
			return match
		}
		if format == "" {
			format = tok.defaultFormat
		}
		return tok.resolve(r, format)
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}

// ResolveFileList expands a `file:PATTERN` input pattern into a sorted,
// de-duplicated list of vault-relative paths. workflowGlobalID and the raw
// pattern string are required when the pattern ends in {pending[:N]},
// since Pending State is keyed by (workflow, pattern).
func (r *Resolver) ResolveFileList(ctx context.Context, workflowGlobalID, pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return nil, core.NewError(
			errForbiddenSegment("'**' is not allowed"), core.CodeInvalidPattern,
			map[string]any{"pattern": pattern},
		)
	}
	segments := strings.Split(pattern, "/")
	for _, seg := range segments {
		if seg == ".." {
			return nil, core.NewError(
				errForbiddenSegment("'..' is not allowed"), core.CodeInvalidPattern,
				map[string]any{"pattern": pattern},
			)
		}
	}
	last := segments[len(segments)-1]
	if name, n, ok := isListFileToken(last); ok {
		dirSegments := segments[:len(segments)-1]
		return r.resolveListToken(ctx, workflowGlobalID, pattern, name, n, dirSegments)
	}
	return r.resolveGlob(segments)
}

// resolveListToken handles a pattern whose final segment is exactly
// {latest[:N]} or {pending[:N]}.
func (r *Resolver) resolveListToken(
	ctx context.Context,
	workflowGlobalID, pattern, name string,
	n int,
	dirSegments []string,
) ([]string, error) {
	dirPattern := strings.Join(dirSegments, "/")
	dirs, err := r.resolveDirs(dirPattern)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, dir := range dirs {
		entries, err := r.listRegularFiles(dir)
		if err != nil {
			return nil, err
		}
		files = append(files, entries...)
	}
	sort.Strings(files)
	switch name {
	case "latest":
		// Most-recent-by-name-date: filenames sort chronologically when
		// ISO-prefixed, so the lexically largest names are the newest.
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
		if len(files) > n {
			files = files[:n]
		}
		return files, nil
	case "pending":
		if r.pending == nil {
			return nil, core.NewError(
				errForbiddenSegment("no pending store configured"), core.CodeInvalidPattern,
				map[string]any{"pattern": pattern},
			)
		}
		candidates, err := r.pending.Candidates(ctx, workflowGlobalID, pattern, files)
		if err != nil {
			return nil, err
		}
		if len(candidates) > n {
			candidates = candidates[:n]
		}
		return candidates, nil
	default:
		return nil, core.NewError(errUnknownToken(name), core.CodeInvalidPattern, nil)
	}
}

// resolveDirs expands a (possibly glob-containing, possibly token-bearing)
// directory prefix into the list of matching vault-relative directories.
func (r *Resolver) resolveDirs(dirPattern string) ([]string, error) {
	if dirPattern == "" {
		return []string{""}, nil
	}
	segments := strings.Split(dirPattern, "/")
	rendered := make([]string, len(segments))
	hasGlob := false
	for i, seg := range segments {
		out, err := r.resolveSegment(seg)
		if err != nil {
			return nil, err
		}
		rendered[i] = out
		if strings.ContainsAny(out, "*?") {
			hasGlob = true
		}
	}
	joined := strings.Join(rendered, "/")
	if !hasGlob {
		return []string{joined}, nil
	}
	full := filepath.Join(r.vault.Root(), filepath.FromSlash(joined))
	matches, err := doublestar.FilepathGlob(full)
	if err != nil {
		return nil, core.NewError(err, core.CodeInvalidPattern, map[string]any{"pattern": dirPattern})
	}
	dirs := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(r.vault.Root(), m)
		if err != nil {
			continue
		}
		dirs = append(dirs, filepath.ToSlash(rel))
	}
	sort.Strings(dirs)
	return dirs, nil
}

// listRegularFiles lists the direct children of dir (vault-relative,
// possibly "") that are regular files, returned as vault-relative paths.
func (r *Resolver) listRegularFiles(dir string) ([]string, error) {
	abs := r.vault.Root()
	if dir != "" {
		var err error
		abs, err = r.vault.Resolve(dir)
		if err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(abs)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rel := e.Name()
		if dir != "" {
			rel = dir + "/" + rel
		}
		out = append(out, rel)
	}
	return out, nil
}

// resolveGlob renders date tokens in every segment, then glob-expands the
// result if it contains any '*'/'?'; otherwise returns the single literal
// path unconditionally (existence is the Input Resolver's concern).
func (r *Resolver) resolveGlob(segments []string) ([]string, error) {
	rendered := make([]string, len(segments))
	hasGlob := false
	for i, seg := range segments {
		out, err := r.resolveSegment(seg)
		if err != nil {
			return nil, err
		}
		rendered[i] = out
		if strings.ContainsAny(out, "*?") {
			hasGlob = true
		}
	}
	joined := strings.Join(rendered, "/")
	if !hasGlob {
		return []string{joined}, nil
	}
	full := filepath.Join(r.vault.Root(), filepath.FromSlash(joined))
	matches, err := doublestar.FilepathGlob(full)
	if err != nil {
		return nil, core.NewError(err, core.CodeInvalidPattern, map[string]any{"pattern": joined})
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		info, statErr := os.Stat(m)
		if statErr == nil && info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(r.vault.Root(), m)
		if err != nil {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}

// resolveSegment renders date tokens within a single path segment,
// rejecting {latest}/{pending} (valid only in final, bare file-list
// position) and unknown tokens.
func (r *Resolver) resolveSegment(segment string) (string, error) {
	if _, _, ok := isListFileToken(segment); ok {
		return "", core.NewError(
			errForbiddenSegment("{latest}/{pending} are only valid as the final path segment"),
			core.CodeInvalidPattern,
			map[string]any{"segment": segment},
		)
	}
	var resolveErr error
	out := tokenRe.ReplaceAllStringFunc(segment, func(match string) string {
		if resolveErr != nil {
			return match
		}
		sub := tokenRe.FindStringSubmatch(match)
		name, format := sub[1], sub[3]
		if name == "latest" || name == "pending" {
			resolveErr = core.NewError(
				errForbiddenSegment("{latest}/{pending} are only valid as the final path segment"),
				core.CodeInvalidPattern, map[string]any{"segment": segment},
			)
			return match
		}
		tok, ok := r.tokens[name]
		if !ok {
			resolveErr = core.NewError(errUnknownToken(name), core.CodeInvalidPattern, map[string]any{"segment": segment})
			return match
		}
		if format == "" {
			format = tok.defaultFormat
		}
		return tok.resolve(r, format)
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}
