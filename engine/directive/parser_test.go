package directive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
)

func TestParse_FrontMatter(t *testing.T) {
	t.Run("Should decode schedule, enabled and week_start_day", func(t *testing.T) {
		src := `---
workflow_engine: step
schedule: "cron: 0 6 * * *"
enabled: true
week_start_day: sunday
---

## Instructions

Do the thing.
`
		doc, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.NoError(t, err)
		assert.Equal(t, "step", doc.FrontMatter.WorkflowEngine)
		assert.True(t, doc.FrontMatter.HasSchedule)
		assert.True(t, doc.FrontMatter.HasEnabled)
		assert.True(t, doc.FrontMatter.Enabled)
		assert.Equal(t, time.Sunday, doc.FrontMatter.WeekStartDay)
	})

	t.Run("Should reject an unsupported workflow_engine", func(t *testing.T) {
		src := "---\nworkflow_engine: legacy\n---\n\n## Instructions\n\nbody\n"
		_, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.Error(t, err)
	})

	t.Run("Should reject a malformed schedule", func(t *testing.T) {
		src := "---\nschedule: \"whenever\"\n---\n\n## Instructions\n\nbody\n"
		_, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.Error(t, err)
	})

	t.Run("Should parse without any frontmatter fence", func(t *testing.T) {
		src := "## Instructions\n\nbody\n"
		doc, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.NoError(t, err)
		assert.Equal(t, "", doc.FrontMatter.WorkflowEngine)
	})
}

func TestParse_Sections(t *testing.T) {
	t.Run("Should classify fixed-role sections case-insensitively", func(t *testing.T) {
		src := "## Instructions\n\nbe nice\n\n## Chat Instructions\n\nchat away\n\n## Gather notes\n\n@input file:notes/{today}\n\nSummarize.\n"
		doc, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.NoError(t, err)
		require.Len(t, doc.Sections, 3)
		assert.Equal(t, directive.RoleInstructions, doc.Sections[0].Role)
		assert.Equal(t, directive.RoleChatInstructions, doc.Sections[1].Role)
		assert.Equal(t, directive.RoleExecutable, doc.Sections[2].Role)
	})

	t.Run("Should stop consuming directives at the first body line", func(t *testing.T) {
		src := "## Step\n\n@input file:notes/{today} (required)\n@output variable:summary\n\nWrite a summary.\n@not_a_directive_anymore\n"
		doc, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.NoError(t, err)
		require.Len(t, doc.Sections, 1)
		sec := doc.Sections[0]
		require.Len(t, sec.Directives.Inputs, 1)
		assert.True(t, sec.Directives.Inputs[0].Required)
		require.Len(t, sec.Directives.Outputs, 1)
		assert.Equal(t, directive.OutputVariable, sec.Directives.Outputs[0].Kind)
		assert.Contains(t, sec.Body, "Write a summary.")
		assert.Contains(t, sec.Body, "@not_a_directive_anymore")
	})

	t.Run("Should error on content before the first heading", func(t *testing.T) {
		src := "stray text\n\n## Step\n\nbody\n"
		_, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.Error(t, err)
	})
}

func TestParse_Directives(t *testing.T) {
	t.Run("Should aggregate repeated @tools tokens, last output wins", func(t *testing.T) {
		src := "## Step\n\n@tools web_search, file_ops(output=file:scratch/results.md)\n@tools file_ops(output=discard)\n\nGo.\n"
		doc, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.NoError(t, err)
		tools := doc.Sections[0].Directives.Tools
		require.Len(t, tools, 2)
		assert.Equal(t, "web_search", tools[0].Name)
		assert.Equal(t, "file_ops", tools[1].Name)
		assert.True(t, tools[1].HasOutput)
		assert.Equal(t, directive.OutputDiscard, tools[1].Output.Kind)
	})

	t.Run("Should parse @run_on weekday lists", func(t *testing.T) {
		src := "## Step\n\n@run_on mon, wed, fri\n\nGo.\n"
		doc, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.NoError(t, err)
		mask := doc.Sections[0].Directives.RunOn
		assert.True(t, mask.Allows(1))
		assert.False(t, mask.Allows(2))
	})

	t.Run("Should reject @cache inside a workflow step", func(t *testing.T) {
		src := "## Step\n\n@cache 1h\n\nGo.\n"
		_, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.Error(t, err)
	})

	t.Run("Should accept @cache inside a context template", func(t *testing.T) {
		src := "## Recent notes\n\n@cache 1h\n@recent_runs 5\n\nShow recent notes.\n"
		doc, err := directive.Parse([]byte(src), directive.ModeContext)
		require.NoError(t, err)
		assert.Equal(t, "1h", doc.Sections[0].Directives.Cache)
		require.NotNil(t, doc.Sections[0].Directives.RecentRuns)
		assert.Equal(t, 5, doc.Sections[0].Directives.RecentRuns.N)
	})

	t.Run("Should reject @header inside a context template", func(t *testing.T) {
		src := "## Step\n\n@header Some header\n\nGo.\n"
		_, err := directive.Parse([]byte(src), directive.ModeContext)
		require.Error(t, err)
	})

	t.Run("Should error on an unknown directive name", func(t *testing.T) {
		src := "## Step\n\n@frobnicate true\n\nGo.\n"
		_, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.Error(t, err)
	})

	t.Run("Should parse @model with thinking flag", func(t *testing.T) {
		src := "## Step\n\n@model claude-sonnet (thinking)\n\nGo.\n"
		doc, err := directive.Parse([]byte(src), directive.ModeWorkflow)
		require.NoError(t, err)
		require.NotNil(t, doc.Sections[0].Directives.Model)
		assert.Equal(t, "claude-sonnet", doc.Sections[0].Directives.Model.Alias)
		assert.True(t, doc.Sections[0].Directives.Model.Thinking)
	})
}
