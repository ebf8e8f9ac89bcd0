// Package directive implements the frontmatter + @directive grammar
// shared by Workflow Definitions and Context Templates (spec §4.B, §6).
package directive

import "time"

// SectionRole distinguishes the fixed-role preamble sections from
// ordinary executable steps/sections.
type SectionRole int

const (
	RoleExecutable SectionRole = iota
	RoleInstructions
	RoleChatInstructions
	RoleContextInstructions
)

// Mode selects which directives/frontmatter keys are legal: a Workflow
// step (@header allowed, no @cache/@recent_*) or a Context Template
// section (the reverse).
type Mode int

const (
	ModeWorkflow Mode = iota
	ModeContext
)

// OutputKind is the Router destination kind (spec §4.D).
type OutputKind string

const (
	OutputInline   OutputKind = "inline"
	OutputVariable OutputKind = "variable"
	OutputFile     OutputKind = "file"
	OutputContext  OutputKind = "context"
	OutputDiscard  OutputKind = "discard"
)

// WriteMode is the Buffer/file write semantics (spec §4.C/§4.D).
type WriteMode string

const (
	WriteAppend  WriteMode = "append"
	WriteReplace WriteMode = "replace"
	WriteNew     WriteMode = "new"
)

// Scope is where a variable destination/source lives (spec §3).
type Scope string

const (
	ScopeRun     Scope = "run"
	ScopeSession Scope = "session"
)

// OutputTarget is a single `dest` the Router can write to.
type OutputTarget struct {
	Kind      OutputKind
	Name      string // variable name (OutputVariable) or vault path (OutputFile)
	Scope     Scope  // only meaningful for OutputVariable; "" means caller default
	WriteMode WriteMode
}

// InputKind distinguishes `file:` from `variable:` inputs.
type InputKind string

const (
	InputFile     InputKind = "file"
	InputVariable InputKind = "variable"
)

// InputDirective is one `@input` entry (spec §4.E, §6).
type InputDirective struct {
	Kind       InputKind
	Pattern    string // file glob/pattern, or variable name
	Required   bool
	RefsOnly   bool
	Head       int      // 0 means unset
	Properties []string // nil: not requested; non-nil (possibly empty): requested, empty means "all keys"
	HasOutput  bool
	Output     OutputTarget
	Scope      Scope // scope to read a `variable:` input from
}

// ToolToken is one `name[(params)]` entry inside an aggregated `@tools`
// directive (spec §4.F, §6).
type ToolToken struct {
	Name      string
	HasOutput bool
	Output    OutputTarget
}

// ModelDirective is the parsed `@model` value (spec §6).
type ModelDirective struct {
	Alias    string
	None     bool
	Thinking bool
}

// RunOnMask is the parsed `@run_on` value (spec §6).
type RunOnMask struct {
	Daily bool
	Never bool
	Days  map[time.Weekday]bool
}

// Allows reports whether a step tagged with this mask should run on day d.
func (m RunOnMask) Allows(d time.Weekday) bool {
	if m.Never {
		return false
	}
	if m.Daily || len(m.Days) == 0 {
		return true
	}
	return m.Days[d]
}

// RecentSpec is the parsed value of `@recent_runs`/`@recent_summaries`.
type RecentSpec struct {
	All bool
	N   int
}

// StepDirectives is the fully-aggregated directive set for one Step or
// Section (spec §3: "directive order within a block is insignificant
// except multiple same-directive occurrences which are ordered and
// aggregated").
type StepDirectives struct {
	Inputs  []InputDirective
	Outputs []OutputTarget

	HasHeader bool
	Header    string

	Model *ModelDirective

	Tools []ToolToken

	HasWriteMode bool
	WriteMode    WriteMode

	HasRunOn bool
	RunOn    RunOnMask

	HasCache bool
	Cache    string

	RecentRuns      *RecentSpec
	RecentSummaries *RecentSpec
}

// Section is one `##` heading block: either a fixed-role preamble or an
// executable step/section with directives + prompt body.
type Section struct {
	Heading    string
	Role       SectionRole
	Directives StepDirectives
	Body       string
	Line       int
}

// FrontMatter is the parsed YAML frontmatter (spec §3, §6).
type FrontMatter struct {
	WorkflowEngine  string
	HasSchedule     bool
	Schedule        string
	HasEnabled      bool
	Enabled         bool
	WeekStartDay    time.Weekday
	Description     string
	PassthroughRuns string // "", "all", or a non-negative integer string
	TokenThreshold  *int
	Extra           map[string]any
}

// Document is the single typed AST produced by Parse; both the Workflow
// Loader and the Context Template loader consume it directly rather than
// re-parsing at run time (spec §9: "a single parser produces one typed
// AST consumed by both loader and validator").
type Document struct {
	FrontMatter FrontMatter
	Sections    []Section
}
