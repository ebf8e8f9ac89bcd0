package directive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

var cronScheduleRe = regexp.MustCompile(`^cron:\s*(\S+\s+\S+\s+\S+\s+\S+\s+\S+)$`)
var onceScheduleRe = regexp.MustCompile(`^once:\s*(.+)$`)

// rawFrontMatter mirrors the YAML shape before type/validity checks.
type rawFrontMatter struct {
	WorkflowEngine  string `yaml:"workflow_engine"`
	Schedule        string `yaml:"schedule"`
	Enabled         *bool  `yaml:"enabled"`
	WeekStartDay    string `yaml:"week_start_day"`
	Description     string `yaml:"description"`
	PassthroughRuns any    `yaml:"passthrough_runs"`
	TokenThreshold  *int   `yaml:"token_threshold"`
}

// parseFrontMatter decodes and validates the YAML between `---` fences.
// all holds every key (known and unknown); unknown custom keys are
// preserved in FrontMatter.Extra but otherwise ignored by the runtime.
func parseFrontMatter(text string, line int) (FrontMatter, error) {
	var rfm rawFrontMatter
	if err := yaml.Unmarshal([]byte(text), &rfm); err != nil {
		return FrontMatter{}, newParseError(line, "", fmt.Sprintf("invalid frontmatter YAML: %v", err))
	}
	var all map[string]any
	if err := yaml.Unmarshal([]byte(text), &all); err != nil {
		return FrontMatter{}, newParseError(line, "", fmt.Sprintf("invalid frontmatter YAML: %v", err))
	}

	fm := FrontMatter{
		WorkflowEngine: rfm.WorkflowEngine,
		Description:    rfm.Description,
		WeekStartDay:   time.Monday,
		TokenThreshold: rfm.TokenThreshold,
	}

	if fm.WorkflowEngine != "" && fm.WorkflowEngine != "step" {
		return FrontMatter{}, newParseError(line, "workflow_engine",
			fmt.Sprintf("unsupported engine %q: only \"step\" is defined", fm.WorkflowEngine))
	}

	if rfm.Schedule != "" {
		fm.HasSchedule = true
		fm.Schedule = rfm.Schedule
		if err := validateSchedule(rfm.Schedule); err != nil {
			return FrontMatter{}, newParseError(line, "schedule", err.Error())
		}
	}

	if rfm.Enabled != nil {
		fm.HasEnabled = true
		fm.Enabled = *rfm.Enabled
	}

	if rfm.WeekStartDay != "" {
		d, err := core.ParseWeekday(rfm.WeekStartDay)
		if err != nil {
			return FrontMatter{}, newParseError(line, "week_start_day", err.Error())
		}
		fm.WeekStartDay = d
	}

	if rfm.PassthroughRuns != nil {
		s, err := normalizeCountValue(rfm.PassthroughRuns)
		if err != nil {
			return FrontMatter{}, newParseError(line, "passthrough_runs", err.Error())
		}
		fm.PassthroughRuns = s
	}

	fm.Extra = map[string]any{}
	known := map[string]bool{
		"workflow_engine": true, "schedule": true, "enabled": true,
		"week_start_day": true, "description": true,
		"passthrough_runs": true, "token_threshold": true,
	}
	for k, v := range all {
		if !known[k] {
			fm.Extra[k] = v
		}
	}

	return fm, nil
}

// validateSchedule checks the "cron: <5-field>" / "once: <datetime>" shape
// (spec §4.B, §4.K). once-dates must be strictly in the future is a
// Scheduler-time check (it depends on "now"), not a parse-time one.
func validateSchedule(s string) error {
	s = strings.TrimSpace(s)
	if cronScheduleRe.MatchString(s) {
		return nil
	}
	if onceScheduleRe.MatchString(s) {
		return nil
	}
	return fmt.Errorf("schedule must match \"cron: <5-field>\" or \"once: <datetime>\", got %q", s)
}

// normalizeCountValue accepts a YAML scalar that should render to "all" or
// a non-negative integer string.
func normalizeCountValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(t), "all") {
			return "all", nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || n < 0 {
			return "", fmt.Errorf("must be \"all\" or a non-negative integer, got %q", t)
		}
		return strconv.Itoa(n), nil
	case int:
		if t < 0 {
			return "", fmt.Errorf("must be non-negative, got %d", t)
		}
		return strconv.Itoa(t), nil
	default:
		return "", fmt.Errorf("must be \"all\" or a non-negative integer")
	}
}
