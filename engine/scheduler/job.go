// Package scheduler implements the Scheduler (spec §4.K): a persistent
// job store keyed by global_id, reconciled against the Workflow Loader's
// discovered definitions, driving the Step Engine on each fire.
package scheduler

import (
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/schedule"
)

// Job is a Scheduler Job record (spec §3): deliberately picklable —
// {global_id, data_root} plus the parsed Trigger and engine tag.
type Job struct {
	GlobalID  string
	Trigger   schedule.Trigger
	EngineTag string
	DataRoot  string
	NextFire  time.Time
}

// Args are the minimal, serializable fields re-resolved against the
// Loader at fire time (spec §4.K: "Job args are deliberately picklable
// and minimal").
type Args struct {
	GlobalID string
	DataRoot string
}
