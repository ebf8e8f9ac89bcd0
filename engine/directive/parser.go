package directive

import (
	"strings"
	"time"
)

// Parse decodes the frontmatter + body of a Workflow Definition or Context
// Template into a single typed AST. Both the loader and the validator
// consume this AST directly; nothing re-parses the source at run time
// (spec §9).
func Parse(data []byte, mode Mode) (*Document, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	fm := FrontMatter{WeekStartDay: time.Monday, Extra: map[string]any{}}
	bodyStart := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return nil, newParseError(1, "", "unterminated frontmatter fence")
		}
		fmText := strings.Join(lines[1:end], "\n")
		parsed, err := parseFrontMatter(fmText, 2)
		if err != nil {
			return nil, err
		}
		fm = parsed
		bodyStart = end + 1
	}

	sections, err := splitSections(lines, bodyStart)
	if err != nil {
		return nil, err
	}

	doc := &Document{FrontMatter: fm}
	for _, rs := range sections {
		sec, err := processSection(rs, mode)
		if err != nil {
			return nil, err
		}
		doc.Sections = append(doc.Sections, sec)
	}
	return doc, nil
}

// rawSection is a `##` heading and its unparsed content lines, kept with
// their absolute source line numbers for error reporting.
type rawSection struct {
	heading string
	line    int
	content []string
	lineNos []int
}

func splitSections(lines []string, bodyStart int) ([]rawSection, error) {
	var sections []rawSection
	var cur *rawSection
	for i := bodyStart; i < len(lines); i++ {
		lineNo := i + 1
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") || trimmed == "##" {
			heading := strings.TrimSpace(strings.TrimPrefix(trimmed, "##"))
			sections = append(sections, rawSection{heading: heading, line: lineNo})
			cur = &sections[len(sections)-1]
			continue
		}
		if strings.HasPrefix(trimmed, "# ") && cur == nil {
			// document title; ignored
			continue
		}
		if cur == nil {
			if trimmed != "" {
				return nil, newParseError(lineNo, "", "content before the first \"## \" section heading")
			}
			continue
		}
		cur.content = append(cur.content, line)
		cur.lineNos = append(cur.lineNos, lineNo)
	}
	return sections, nil
}

func classifyRole(heading string) SectionRole {
	switch strings.ToLower(strings.TrimSpace(heading)) {
	case "instructions":
		return RoleInstructions
	case "chat instructions":
		return RoleChatInstructions
	case "context instructions":
		return RoleContextInstructions
	default:
		return RoleExecutable
	}
}

// processSection consumes directive lines from the top of a section's
// content until the first non-blank, non-directive line, which (and
// everything after it) becomes the prompt body (spec §4.B).
func processSection(rs rawSection, mode Mode) (Section, error) {
	sec := Section{Heading: rs.heading, Role: classifyRole(rs.heading), Line: rs.line}
	i := 0
	for ; i < len(rs.content); i++ {
		trimmed := strings.TrimSpace(rs.content[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			if err := applyDirectiveLine(&sec.Directives, mode, rs.lineNos[i], trimmed); err != nil {
				return Section{}, err
			}
			continue
		}
		break
	}
	if i < len(rs.content) {
		sec.Body = strings.TrimRight(strings.Join(rs.content[i:], "\n"), "\n")
	}
	return sec, nil
}
