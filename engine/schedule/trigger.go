// Package schedule parses a Workflow Definition's frontmatter `schedule`
// value into a Trigger and computes its next fire time (spec §4.K). The
// syntactic shape ("cron: <5-field>" / "once: <datetime>") is already
// validated at directive-parse time (engine/directive); this package
// re-parses the payload into something the Scheduler can act on.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind distinguishes a recurring cron trigger from a one-shot datetime.
type Kind string

const (
	KindCron Kind = "cron"
	KindOnce Kind = "once"
)

var (
	cronRe = regexp.MustCompile(`^cron:\s*(.+)$`)
	onceRe = regexp.MustCompile(`^once:\s*(.+)$`)

	// onceLayouts is the short set of natural-language/ISO formats spec
	// §4.K names: "YYYY-MM-DD", "YYYY-MM-DD HH:MM", and
	// "Month DD, YYYY at ham/pm".
	onceLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"January 2, 2006 at 3:04pm",
		"January 2, 2006 at 3pm",
	}
)

// Trigger is the parsed form of a `schedule:` frontmatter value.
type Trigger struct {
	Kind     Kind
	Raw      string
	CronExpr string
	At       time.Time
	schedule cron.Schedule
}

// Equal reports whether two Triggers represent the same recurring/once
// schedule — used by the Scheduler's "same trigger+engine" reconciliation
// branch (spec §4.K) to decide update-preserving-timing vs replace.
func (t Trigger) Equal(other Trigger) bool {
	return t.Kind == other.Kind && t.Raw == other.Raw
}

// Parse decodes a frontmatter schedule value in loc's timezone (spec
// §4.A: "Time tokens render in the runtime's configured timezone").
func Parse(raw string, loc *time.Location) (Trigger, error) {
	raw = strings.TrimSpace(raw)
	if m := cronRe.FindStringSubmatch(raw); m != nil {
		expr := strings.TrimSpace(m[1])
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return Trigger{}, fmt.Errorf("schedule: invalid cron expression %q: %w", expr, err)
		}
		return Trigger{Kind: KindCron, Raw: raw, CronExpr: expr, schedule: sched}, nil
	}
	if m := onceRe.FindStringSubmatch(raw); m != nil {
		val := strings.TrimSpace(m[1])
		at, err := parseOnce(val, loc)
		if err != nil {
			return Trigger{}, fmt.Errorf("schedule: invalid once datetime %q: %w", val, err)
		}
		return Trigger{Kind: KindOnce, Raw: raw, At: at}, nil
	}
	return Trigger{}, fmt.Errorf("schedule: unrecognized schedule %q", raw)
}

func parseOnce(val string, loc *time.Location) (time.Time, error) {
	for _, layout := range onceLayouts {
		if t, err := time.ParseInLocation(layout, val, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no known datetime layout matched")
}

// NextFire returns the next time this Trigger fires strictly after
// `after`. For KindOnce it reports ok=false once `after` is at or past
// At — a fired once-trigger is one-shot (spec §4.K).
func (t Trigger) NextFire(after time.Time) (time.Time, bool) {
	switch t.Kind {
	case KindCron:
		return t.schedule.Next(after), true
	case KindOnce:
		if t.At.After(after) {
			return t.At, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// InFuture reports whether a `once:` trigger is strictly in the future of
// now (spec §4.K: "must be strictly in the future at reconciliation
// time"). Always true for cron triggers.
func (t Trigger) InFuture(now time.Time) bool {
	if t.Kind != KindOnce {
		return true
	}
	return t.At.After(now)
}
