// Package context implements the Context Manager (spec §4.I): composing
// a chat session's system prompt from a Context Template's fixed-role
// preambles and executable Sections, using the same directive/step
// machinery as the Workflow engine plus gating, section caching, and
// recent-run/summary windows.
package context

import (
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
)

// Template is a Context Template (spec §3): like a Workflow Definition,
// but with passthrough/token-threshold gating knobs and the
// Chat/Context Instructions split.
type Template struct {
	GlobalID          string
	Vault             string
	Name              string
	SourcePath        string
	Digest            string
	PassthroughRuns   string // "", "all", or a non-negative integer string
	TokenThreshold    int
	ChatInstructions  string
	ContextInstructions string
	Sections          []directive.Section
	Doc               *directive.Document
}

// HasExecutableSections reports whether the template has anything beyond
// a bare Chat Instructions preamble (spec §4.I.1).
func (t *Template) HasExecutableSections() bool {
	return len(t.Sections) > 0
}

// NewTemplate parses data as a Context Template (ModeContext) and
// flattens its frontmatter/sections the way workflow.NewDefinition does
// for Workflow Definitions.
func NewTemplate(vault, name, sourcePath, digest string, data []byte) (*Template, error) {
	doc, err := directive.Parse(data, directive.ModeContext)
	if err != nil {
		return nil, err
	}
	t := &Template{
		GlobalID:        vault + "/" + name,
		Vault:           vault,
		Name:            name,
		SourcePath:      sourcePath,
		Digest:          digest,
		PassthroughRuns: doc.FrontMatter.PassthroughRuns,
		Doc:             doc,
	}
	if doc.FrontMatter.TokenThreshold != nil {
		t.TokenThreshold = *doc.FrontMatter.TokenThreshold
	}
	for _, s := range doc.Sections {
		switch s.Role {
		case directive.RoleChatInstructions:
			t.ChatInstructions = s.Body
		case directive.RoleContextInstructions:
			t.ContextInstructions = s.Body
		case directive.RoleExecutable:
			t.Sections = append(t.Sections, s)
		}
	}
	return t, nil
}
