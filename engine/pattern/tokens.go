package pattern

import (
	"regexp"
	"strings"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// formatTokenOrder lists the {today:FORMAT} mini-language tokens from most
// to least specific so the replacer never matches a prefix of a longer
// token (YYYY before YY, MMMM before MMM before MM before M, ...).
var formatTokenOrder = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

var formatTokenRe = regexp.MustCompile(`YYYY|YY|MMMM|MMM|MM|M|DD|D|dddd|ddd|HH|mm|ss`)

// renderFormat converts the custom format mini-language into a Go
// reference-time layout and formats t with it.
func renderFormat(t time.Time, format string) string {
	layout := formatTokenRe.ReplaceAllStringFunc(format, func(tok string) string {
		for _, f := range formatTokenOrder {
			if f.token == tok {
				return f.layout
			}
		}
		return tok
	})
	return t.Format(layout)
}

// dayToken describes a scalar date/day/month token and how to compute its
// reference instant and default format.
type dayToken struct {
	name          string
	defaultFormat string
	resolve       func(r *Resolver, format string) string
}

func newDayTokens() map[string]dayToken {
	iso := func(compute func(r *Resolver) time.Time) func(r *Resolver, format string) string {
		return func(r *Resolver, format string) string {
			return renderFormat(compute(r), format)
		}
	}
	return map[string]dayToken{
		"today": {"today", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return startOfDay(r.clock.Now())
		})},
		"yesterday": {"yesterday", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return startOfDay(r.clock.Now()).AddDate(0, 0, -1)
		})},
		"tomorrow": {"tomorrow", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return startOfDay(r.clock.Now()).AddDate(0, 0, 1)
		})},
		"this-week": {"this-week", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return core.WeekStart(r.clock.Now(), r.weekStart)
		})},
		"last-week": {"last-week", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return core.WeekStart(r.clock.Now(), r.weekStart).AddDate(0, 0, -7)
		})},
		"next-week": {"next-week", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return core.WeekStart(r.clock.Now(), r.weekStart).AddDate(0, 0, 7)
		})},
		"this-month": {"this-month", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return startOfMonth(r.clock.Now())
		})},
		"last-month": {"last-month", "YYYY-MM-DD", iso(func(r *Resolver) time.Time {
			return startOfMonth(startOfMonth(r.clock.Now()).AddDate(0, 0, -1))
		})},
		"day-name": {"day-name", "dddd", iso(func(r *Resolver) time.Time {
			return r.clock.Now()
		})},
		"month-name": {"month-name", "MMMM", iso(func(r *Resolver) time.Time {
			return r.clock.Now()
		})},
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// tokenRe matches any `{name}` or `{name:format}` substring.
var tokenRe = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z-]*)(:([^}]*))?\}`)

// listFileTokenRe matches a segment that is *exactly* {latest}, {latest:N},
// {pending}, or {pending:N} — the only form valid in file-list position.
var listFileTokenRe = regexp.MustCompile(`^\{(latest|pending)(:(\d+))?\}$`)

func isListFileToken(segment string) (name string, n int, ok bool) {
	m := listFileTokenRe.FindStringSubmatch(strings.TrimSpace(segment))
	if m == nil {
		return "", 0, false
	}
	if m[3] == "" {
		if m[1] == "pending" {
			return m[1], defaultPendingN, true
		}
		return m[1], defaultLatestN, true
	}
	n = atoiSafe(m[3])
	return m[1], n, true
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

const (
	defaultLatestN  = 1
	defaultPendingN = 10
)
