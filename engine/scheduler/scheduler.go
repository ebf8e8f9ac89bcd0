package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/schedule"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/workflow"
)

// RunFunc is how the Scheduler invokes the Step Engine on a fire (spec
// §4.K: "K calls H with {vault, name, data_root}"). Implementations
// re-resolve the Workflow Definition via the Loader at fire time so edits
// between reconciliations take effect on the next run.
type RunFunc func(ctx context.Context, globalID, dataRoot string)

// ReconcileReport names which global_ids were created, updated in place,
// replaced (trigger/engine changed), or removed by one Reconcile call
// (spec §4.K's reconciliation table).
type ReconcileReport struct {
	Created []string
	Updated []string
	Replaced []string
	Removed  []string
	Invalid  map[string]error
}

// Scheduler reconciles discovered Workflow Definitions against the
// persistent Store and, once started, fires due jobs on a bounded worker
// pool (spec §4.K, §5).
type Scheduler struct {
	store       *Store
	clock       core.Clock
	loc         *time.Location
	workerLimit int

	reservedMu sync.RWMutex
	reserved   map[string]bool

	runMu   sync.Mutex
	running map[string]bool
	sem     chan struct{}

	runFn RunFunc
}

// New builds a Scheduler. workerLimit bounds how many workflow runs
// execute concurrently (spec §5 "scheduler_worker_limit, default small,
// e.g., 4"); runFn is called once per due job, on its own goroutine.
func New(store *Store, clock core.Clock, loc *time.Location, workerLimit int, runFn RunFunc) *Scheduler {
	if workerLimit <= 0 {
		workerLimit = 4
	}
	return &Scheduler{
		store: store, clock: clock, loc: loc, workerLimit: workerLimit,
		reserved: map[string]bool{}, running: map[string]bool{},
		sem: make(chan struct{}, workerLimit), runFn: runFn,
	}
}

// Reserve marks a global_id as a reserved non-workflow job (spec §4.K:
// "Reserved non-workflow jobs (e.g., an ingestion worker tick): protect
// (never touched)"). Reconcile never creates, updates, or removes a
// reserved id; Tick never fires one through this Scheduler.
func (s *Scheduler) Reserve(globalID string) {
	s.reservedMu.Lock()
	defer s.reservedMu.Unlock()
	s.reserved[globalID] = true
}

func (s *Scheduler) isReserved(globalID string) bool {
	s.reservedMu.RLock()
	defer s.reservedMu.RUnlock()
	return s.reserved[globalID]
}

// Reconcile implements spec §4.K's table: create/update-preserving-
// timing/replace/remove, skipping reserved ids entirely.
func (s *Scheduler) Reconcile(definitions []*workflow.Definition, dataRoot string) *ReconcileReport {
	report := &ReconcileReport{Invalid: map[string]error{}}
	now := s.clock.Now()

	desired := map[string]*workflow.Definition{}
	for _, d := range definitions {
		if d.Enabled && d.HasSchedule && !s.isReserved(d.GlobalID) {
			desired[d.GlobalID] = d
		}
	}

	for id, def := range desired {
		trig, err := schedule.Parse(def.Schedule, s.loc)
		if err != nil {
			report.Invalid[id] = err
			continue
		}
		if !trig.InFuture(now) {
			// an expired once: trigger never schedules (spec §4.K "must be
			// strictly in the future at reconciliation time"); if it was
			// previously scheduled, let it fall through to the removal pass.
			delete(desired, id)
			continue
		}
		existing, ok := s.store.Get(id)
		switch {
		case !ok:
			next, _ := trig.NextFire(now)
			_ = s.store.Put(Job{GlobalID: id, Trigger: trig, EngineTag: def.EngineTag, DataRoot: dataRoot, NextFire: next})
			report.Created = append(report.Created, id)
		case existing.Trigger.Equal(trig) && existing.EngineTag == def.EngineTag:
			existing.DataRoot = dataRoot
			_ = s.store.Put(existing) // preserves NextFire
			report.Updated = append(report.Updated, id)
		default:
			next, _ := trig.NextFire(now)
			_ = s.store.Put(Job{GlobalID: id, Trigger: trig, EngineTag: def.EngineTag, DataRoot: dataRoot, NextFire: next})
			report.Replaced = append(report.Replaced, id)
		}
	}

	for _, existing := range s.store.List() {
		if s.isReserved(existing.GlobalID) {
			continue
		}
		if _, ok := desired[existing.GlobalID]; !ok {
			_ = s.store.Delete(existing.GlobalID)
			report.Removed = append(report.Removed, existing.GlobalID)
		}
	}
	return report
}

// Start launches the scheduling loop, ticking every interval until ctx is
// canceled. Each tick is a single call to Tick.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick fires every job whose NextFire has elapsed and which isn't already
// running (spec §5: "no two concurrent runs of the same global_id").
// Firing happens on its own goroutine, bounded by workerLimit.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	var due []Job

	s.runMu.Lock()
	for _, j := range s.store.List() {
		if s.isReserved(j.GlobalID) || s.running[j.GlobalID] {
			continue
		}
		if j.NextFire.After(now) {
			continue
		}
		s.running[j.GlobalID] = true
		due = append(due, j)
	}
	s.runMu.Unlock()

	for _, j := range due {
		s.sem <- struct{}{}
		go s.fire(ctx, j)
	}
}

func (s *Scheduler) fire(ctx context.Context, j Job) {
	defer func() {
		<-s.sem
		s.runMu.Lock()
		delete(s.running, j.GlobalID)
		s.runMu.Unlock()
	}()

	s.runFn(ctx, j.GlobalID, j.DataRoot)

	if j.Trigger.Kind == schedule.KindCron {
		next, _ := j.Trigger.NextFire(s.clock.Now())
		j.NextFire = next
		_ = s.store.Put(j)
		return
	}
	_ = s.store.Delete(j.GlobalID)
}
