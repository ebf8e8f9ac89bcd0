package workflow

import (
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
)

// Definition is a Workflow Definition (spec §3): identified by
// global_id = vault/name, holding the parsed directive AST plus the
// metadata the Loader and Scheduler need without re-parsing the source.
type Definition struct {
	GlobalID     string
	Vault        string
	Name         string
	SourcePath   string
	Digest       string
	EngineTag    string
	HasSchedule  bool
	Schedule     string
	Enabled      bool
	Description  string
	WeekStartDay time.Weekday
	Instructions string
	Steps        []directive.Section
	Doc          *directive.Document
}

// NewDefinition parses data as a Workflow Definition (spec §4.B body in
// ModeWorkflow) and assembles the flattened metadata the rest of the
// engine consumes.
func NewDefinition(vault, name, sourcePath, digest string, data []byte) (*Definition, error) {
	doc, err := directive.Parse(data, directive.ModeWorkflow)
	if err != nil {
		return nil, err
	}
	def := &Definition{
		GlobalID:     vault + "/" + name,
		Vault:        vault,
		Name:         name,
		SourcePath:   sourcePath,
		Digest:       digest,
		EngineTag:    doc.FrontMatter.WorkflowEngine,
		HasSchedule:  doc.FrontMatter.HasSchedule,
		Schedule:     doc.FrontMatter.Schedule,
		Enabled:      !doc.FrontMatter.HasEnabled || doc.FrontMatter.Enabled,
		Description:  doc.FrontMatter.Description,
		WeekStartDay: doc.FrontMatter.WeekStartDay,
		Doc:          doc,
	}
	if def.EngineTag == "" {
		def.EngineTag = "step"
	}
	for _, s := range doc.Sections {
		switch s.Role {
		case directive.RoleInstructions:
			def.Instructions = s.Body
		case directive.RoleExecutable:
			def.Steps = append(def.Steps, s)
		}
	}
	return def, nil
}
