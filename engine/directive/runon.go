package directive

import (
	"fmt"
	"strings"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// parseRunOn parses an `@run_on` value: "daily", "never", or a comma
// separated weekday list such as "mon,wed,fri" (spec §6).
func parseRunOn(rest string) (RunOnMask, error) {
	switch strings.ToLower(rest) {
	case "daily", "":
		return RunOnMask{Daily: true}, nil
	case "never":
		return RunOnMask{Never: true}, nil
	}
	days := map[time.Weekday]bool{}
	for _, tok := range strings.Split(rest, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		d, err := core.ParseWeekday(tok)
		if err != nil {
			return RunOnMask{}, fmt.Errorf("invalid @run_on value %q: %w", rest, err)
		}
		days[d] = true
	}
	if len(days) == 0 {
		return RunOnMask{}, fmt.Errorf("invalid @run_on value %q: expected daily|never|comma-separated weekdays", rest)
	}
	return RunOnMask{Days: days}, nil
}
