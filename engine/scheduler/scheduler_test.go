package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/schedule"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/workflow"
)

func def(t *testing.T, globalID, sched string, enabled bool) *workflow.Definition {
	t.Helper()
	return &workflow.Definition{
		GlobalID: globalID, Vault: "v", Name: globalID, EngineTag: "step",
		HasSchedule: sched != "", Schedule: sched, Enabled: enabled,
		Doc: &directive.Document{},
	}
}

func TestScheduler_Reconcile(t *testing.T) {
	clock := core.FixedClock{At: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)}

	t.Run("Should create a job for a new enabled scheduled workflow", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.UTC)
		require.NoError(t, err)
		s := New(store, clock, time.UTC, 4, func(context.Context, string, string) {})

		report := s.Reconcile([]*workflow.Definition{def(t, "v/wf1", "cron: 0 9 * * *", true)}, "/data")
		assert.Equal(t, []string{"v/wf1"}, report.Created)
		job, ok := store.Get("v/wf1")
		require.True(t, ok)
		assert.Equal(t, "/data", job.DataRoot)
	})

	t.Run("Should preserve next-fire when trigger and engine are unchanged", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.UTC)
		require.NoError(t, err)
		s := New(store, clock, time.UTC, 4, func(context.Context, string, string) {})

		s.Reconcile([]*workflow.Definition{def(t, "v/wf1", "cron: 0 9 * * *", true)}, "/data")
		before, _ := store.Get("v/wf1")

		report := s.Reconcile([]*workflow.Definition{def(t, "v/wf1", "cron: 0 9 * * *", true)}, "/data2")
		assert.Equal(t, []string{"v/wf1"}, report.Updated)
		after, _ := store.Get("v/wf1")
		assert.Equal(t, before.NextFire, after.NextFire)
		assert.Equal(t, "/data2", after.DataRoot)
	})

	t.Run("Should replace and reset next-fire when the trigger changes", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.UTC)
		require.NoError(t, err)
		s := New(store, clock, time.UTC, 4, func(context.Context, string, string) {})

		s.Reconcile([]*workflow.Definition{def(t, "v/wf1", "cron: 0 9 * * *", true)}, "/data")
		report := s.Reconcile([]*workflow.Definition{def(t, "v/wf1", "cron: 0 10 * * *", true)}, "/data")
		assert.Equal(t, []string{"v/wf1"}, report.Replaced)
	})

	t.Run("Should remove a job no longer enabled or present", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.UTC)
		require.NoError(t, err)
		s := New(store, clock, time.UTC, 4, func(context.Context, string, string) {})

		s.Reconcile([]*workflow.Definition{def(t, "v/wf1", "cron: 0 9 * * *", true)}, "/data")
		report := s.Reconcile(nil, "/data")
		assert.Equal(t, []string{"v/wf1"}, report.Removed)
		_, ok := store.Get("v/wf1")
		assert.False(t, ok)
	})

	t.Run("Should never touch a reserved global_id", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.UTC)
		require.NoError(t, err)
		s := New(store, clock, time.UTC, 4, func(context.Context, string, string) {})
		s.Reserve("system/ingest")
		_ = store.Put(Job{GlobalID: "system/ingest", Trigger: mustTrigger(t, "cron: * * * * *"), DataRoot: "/x"})

		report := s.Reconcile(nil, "/data")
		assert.Empty(t, report.Removed)
		_, ok := store.Get("system/ingest")
		assert.True(t, ok)
	})
}

func TestScheduler_Tick(t *testing.T) {
	t.Run("Should fire a due job once and serialize per global_id", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "jobs.json"), time.UTC)
		require.NoError(t, err)
		clock := core.FixedClock{At: time.Date(2026, 2, 10, 9, 0, 1, 0, time.UTC)}

		var mu sync.Mutex
		var calls int
		done := make(chan struct{})
		s := New(store, clock, time.UTC, 1, func(ctx context.Context, globalID, dataRoot string) {
			mu.Lock()
			calls++
			mu.Unlock()
			close(done)
		})
		_ = store.Put(Job{
			GlobalID: "v/wf1", EngineTag: "step", DataRoot: "/data",
			Trigger:  mustTrigger(t, "cron: 0 9 * * *"),
			NextFire: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		})

		s.Tick(context.Background())
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job never fired")
		}
		time.Sleep(10 * time.Millisecond) // let fire()'s store.Put land
		mu.Lock()
		assert.Equal(t, 1, calls)
		mu.Unlock()

		job, ok := store.Get("v/wf1")
		require.True(t, ok)
		assert.True(t, job.NextFire.After(clock.Now()))
	})
}

func mustTrigger(t *testing.T, raw string) schedule.Trigger {
	t.Helper()
	tr, err := schedule.Parse(raw, time.UTC)
	require.NoError(t, err)
	return tr
}
