package directive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var directiveLineRe = regexp.MustCompile(`^@([A-Za-z][A-Za-z0-9_-]*)\s*:?\s*(.*)$`)

// normalizeName makes directive-name matching tolerant of '-' vs '_'
// (spec §4.B: "Name matching is tolerant of -/_").
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}

var knownDirectives = map[string]bool{
	"output": true, "input": true, "header": true, "model": true,
	"write_mode": true, "run_on": true, "tools": true, "cache": true,
	"recent_runs": true, "recent_summaries": true,
}

// applyDirectiveLine parses one `@name ...` line and merges it into agg.
func applyDirectiveLine(agg *StepDirectives, mode Mode, lineNo int, line string) error {
	m := directiveLineRe.FindStringSubmatch(line)
	if m == nil {
		return newParseError(lineNo, "", fmt.Sprintf("malformed directive line: %q", line))
	}
	rawName, rest := m[1], m[2]
	name := normalizeName(rawName)
	if !knownDirectives[name] {
		return newParseError(lineNo, rawName, "unknown directive")
	}
	if err := checkAppliesTo(mode, name); err != nil {
		return newParseError(lineNo, rawName, err.Error())
	}
	switch name {
	case "output":
		return applyOutput(agg, lineNo, rawName, rest)
	case "input":
		return applyInput(agg, lineNo, rawName, rest)
	case "header":
		return applyHeader(agg, lineNo, rest)
	case "model":
		return applyModel(agg, lineNo, rawName, rest)
	case "write_mode":
		return applyWriteMode(agg, lineNo, rawName, rest)
	case "run_on":
		return applyRunOn(agg, lineNo, rest)
	case "tools":
		return applyTools(agg, lineNo, rawName, rest)
	case "cache":
		agg.HasCache = true
		agg.Cache = strings.TrimSpace(rest)
		return nil
	case "recent_runs":
		spec, err := parseRecentSpec(rest)
		if err != nil {
			return newParseError(lineNo, rawName, err.Error())
		}
		agg.RecentRuns = spec
		return nil
	case "recent_summaries":
		spec, err := parseRecentSpec(rest)
		if err != nil {
			return newParseError(lineNo, rawName, err.Error())
		}
		agg.RecentSummaries = spec
		return nil
	}
	return nil // unreachable
}

func checkAppliesTo(mode Mode, name string) error {
	contextOnly := map[string]bool{"cache": true, "recent_runs": true, "recent_summaries": true}
	workflowOnly := map[string]bool{"header": true}
	if mode == ModeWorkflow && contextOnly[name] {
		return fmt.Errorf("@%s is only valid in a context template", name)
	}
	if mode == ModeContext && workflowOnly[name] {
		return fmt.Errorf("@%s is only valid in a workflow step", name)
	}
	return nil
}

func parseDest(raw string) (OutputTarget, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "inline":
		return OutputTarget{Kind: OutputInline}, nil
	case raw == "context":
		return OutputTarget{Kind: OutputContext}, nil
	case raw == "discard":
		return OutputTarget{Kind: OutputDiscard}, nil
	case strings.HasPrefix(raw, "variable:"):
		return OutputTarget{Kind: OutputVariable, Name: strings.TrimSpace(strings.TrimPrefix(raw, "variable:"))}, nil
	case strings.HasPrefix(raw, "file:"):
		return OutputTarget{Kind: OutputFile, Name: strings.TrimSpace(strings.TrimPrefix(raw, "file:"))}, nil
	default:
		return OutputTarget{}, fmt.Errorf(
			"invalid destination %q: expected inline|variable:NAME|file:PATH|context|discard", raw)
	}
}

func applyOutput(agg *StepDirectives, lineNo int, rawName, rest string) error {
	value, paramsStr, _ := extractTrailingParams(rest)
	target, err := parseDest(value)
	if err != nil {
		return newParseError(lineNo, rawName, err.Error())
	}
	params, err := parseParams(paramsStr)
	if err != nil {
		return newParseError(lineNo, rawName, err.Error())
	}
	if p, ok := params["scope"]; ok {
		target.Scope = Scope(p.Value)
	}
	if p, ok := params["write_mode"]; ok {
		wm, err := parseWriteModeValue(p.Value)
		if err != nil {
			return newParseError(lineNo, rawName, err.Error())
		}
		target.WriteMode = wm
	}
	agg.Outputs = append(agg.Outputs, target)
	return nil
}

func applyInput(agg *StepDirectives, lineNo int, rawName, rest string) error {
	value, paramsStr, _ := extractTrailingParams(rest)
	value = strings.TrimSpace(value)
	var in InputDirective
	switch {
	case strings.HasPrefix(value, "file:"):
		in.Kind = InputFile
		in.Pattern = strings.TrimSpace(strings.TrimPrefix(value, "file:"))
	case strings.HasPrefix(value, "variable:"):
		in.Kind = InputVariable
		in.Pattern = strings.TrimSpace(strings.TrimPrefix(value, "variable:"))
	default:
		return newParseError(lineNo, rawName, fmt.Sprintf("invalid @input value %q: expected file:PATTERN or variable:NAME", value))
	}
	params, err := parseParams(paramsStr)
	if err != nil {
		return newParseError(lineNo, rawName, err.Error())
	}
	if _, ok := params["required"]; ok {
		in.Required = true
	}
	if _, ok := params["refs_only"]; ok {
		in.RefsOnly = true
	}
	if p, ok := params["head"]; ok {
		n, err := strconv.Atoi(p.Value)
		if err != nil || n < 0 {
			return newParseError(lineNo, rawName, fmt.Sprintf("invalid head=%q: must be a non-negative integer", p.Value))
		}
		in.Head = n
	}
	if p, ok := params["properties"]; ok {
		if p.IsFlag || p.Value == "" {
			in.Properties = []string{}
		} else {
			var keys []string
			for _, k := range strings.Split(p.Value, ",") {
				k = strings.TrimSpace(k)
				if k != "" {
					keys = append(keys, k)
				}
			}
			in.Properties = keys
		}
	}
	if p, ok := params["scope"]; ok {
		in.Scope = Scope(p.Value)
	}
	if p, ok := params["output"]; ok {
		target, err := parseDest(p.Value)
		if err != nil {
			return newParseError(lineNo, rawName, err.Error())
		}
		in.HasOutput = true
		in.Output = target
	}
	if p, ok := params["write_mode"]; ok {
		wm, err := parseWriteModeValue(p.Value)
		if err != nil {
			return newParseError(lineNo, rawName, err.Error())
		}
		in.Output.WriteMode = wm
	}
	agg.Inputs = append(agg.Inputs, in)
	return nil
}

func applyHeader(agg *StepDirectives, _ int, rest string) error {
	agg.HasHeader = true
	agg.Header = strings.TrimSpace(rest)
	return nil
}

func applyModel(agg *StepDirectives, lineNo int, rawName, rest string) error {
	value, paramsStr, _ := extractTrailingParams(rest)
	value = strings.TrimSpace(value)
	params, err := parseParams(paramsStr)
	if err != nil {
		return newParseError(lineNo, rawName, err.Error())
	}
	md := &ModelDirective{Alias: value, None: value == "none"}
	if p, ok := params["thinking"]; ok {
		if p.IsFlag || strings.EqualFold(p.Value, "true") {
			md.Thinking = true
		}
	}
	agg.Model = md
	return nil
}

func parseWriteModeValue(s string) (WriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "append":
		return WriteAppend, nil
	case "replace":
		return WriteReplace, nil
	case "new":
		return WriteNew, nil
	default:
		return "", fmt.Errorf("invalid write_mode %q: expected append|replace|new", s)
	}
}

func applyWriteMode(agg *StepDirectives, lineNo int, rawName, rest string) error {
	wm, err := parseWriteModeValue(rest)
	if err != nil {
		return newParseError(lineNo, rawName, err.Error())
	}
	agg.HasWriteMode = true
	agg.WriteMode = wm
	return nil
}

func applyRunOn(agg *StepDirectives, lineNo int, rest string) error {
	rest = strings.TrimSpace(rest)
	parsed, err := parseRunOn(rest)
	if err != nil {
		return newParseError(lineNo, "run_on", err.Error())
	}
	agg.HasRunOn = true
	agg.RunOn = parsed
	return nil
}

func applyTools(agg *StepDirectives, lineNo int, rawName, rest string) error {
	tokens := splitTopLevel(rest, ',')
	for _, raw := range tokens {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		name, paramsStr, hasParams := extractTrailingParams(tok)
		name = strings.TrimSpace(name)
		if name == "" {
			return newParseError(lineNo, rawName, fmt.Sprintf("malformed tool token %q", tok))
		}
		tt := ToolToken{Name: name}
		if hasParams {
			params, err := parseParams(paramsStr)
			if err != nil {
				return newParseError(lineNo, rawName, err.Error())
			}
			var target OutputTarget
			hasTarget := false
			if p, ok := params["output"]; ok {
				target, err = parseDest(p.Value)
				if err != nil {
					return newParseError(lineNo, rawName, err.Error())
				}
				hasTarget = true
			}
			if p, ok := params["scope"]; ok {
				target.Scope = Scope(p.Value)
				hasTarget = true
			}
			if p, ok := params["write_mode"]; ok {
				wm, err := parseWriteModeValue(p.Value)
				if err != nil {
					return newParseError(lineNo, rawName, err.Error())
				}
				target.WriteMode = wm
				hasTarget = true
			}
			tt.HasOutput = hasTarget
			tt.Output = target
		}
		// Aggregation rule (spec §4.F): if the same tool name repeats, the
		// last output=/write_mode=/scope= parameters win.
		replaced := false
		for i := range agg.Tools {
			if agg.Tools[i].Name == tt.Name {
				if tt.HasOutput {
					agg.Tools[i].HasOutput = true
					agg.Tools[i].Output = tt.Output
				}
				replaced = true
				break
			}
		}
		if !replaced {
			agg.Tools = append(agg.Tools, tt)
		}
	}
	return nil
}

func parseRecentSpec(rest string) (*RecentSpec, error) {
	rest = strings.TrimSpace(rest)
	if strings.EqualFold(rest, "all") {
		return &RecentSpec{All: true}, nil
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("must be \"all\" or a non-negative integer, got %q", rest)
	}
	return &RecentSpec{N: n}, nil
}
