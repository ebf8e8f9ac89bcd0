package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/schedule"
)

// record is the on-disk shape of one Job: the Trigger is persisted as its
// raw frontmatter string and re-parsed on load, since schedule.Trigger
// carries an unexported compiled cron.Schedule (spec §9: "a persistent
// job store must not depend on host-language object graphs").
type record struct {
	GlobalID    string    `json:"global_id"`
	ScheduleRaw string    `json:"schedule_raw"`
	EngineTag   string    `json:"engine"`
	DataRoot    string    `json:"data_root"`
	NextFire    time.Time `json:"next_fire"`
}

// Store is the persistent job store keyed by global_id (spec §4.K, §6
// "Scheduler jobs: keyed by global_id"). A single mutex serializes all
// access. The Scheduler is the store's only writer: Reconcile, plus a
// fired job updating its next-fire time or removing a spent once: job;
// readers see committed state through the same lock.
type Store struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
	jobs map[string]Job
}

// NewStore opens (or initializes) the job store at path, a stable file
// inside system_root. Missing files start empty rather than erroring.
func NewStore(path string, loc *time.Location) (*Store, error) {
	s := &Store{path: path, loc: loc, jobs: map[string]Job{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	for _, r := range records {
		trig, err := schedule.Parse(r.ScheduleRaw, s.loc)
		if err != nil {
			continue // a since-invalidated schedule is dropped rather than blocking load
		}
		s.jobs[r.GlobalID] = Job{GlobalID: r.GlobalID, Trigger: trig, EngineTag: r.EngineTag, DataRoot: r.DataRoot, NextFire: r.NextFire}
	}
	return nil
}

// save persists the full job table, write-temp-then-rename (spec §5:
// "writes are atomic"). Caller must hold s.mu.
func (s *Store) save() error {
	records := make([]record, 0, len(s.jobs))
	for _, j := range s.jobs {
		records = append(records, record{
			GlobalID: j.GlobalID, ScheduleRaw: j.Trigger.Raw, EngineTag: j.EngineTag,
			DataRoot: j.DataRoot, NextFire: j.NextFire,
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-jobs-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Get returns the job for global_id.
func (s *Store) Get(globalID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[globalID]
	return j, ok
}

// List returns every stored job.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// Put inserts or replaces a job and persists the store.
func (s *Store) Put(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.GlobalID] = j
	return s.save()
}

// Delete removes a job (a no-op if absent) and persists the store.
func (s *Store) Delete(globalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[globalID]; !ok {
		return nil
	}
	delete(s.jobs, globalID)
	return s.save()
}
