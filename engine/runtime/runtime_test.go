package runtime_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/runtime"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/step"
)

const sampleWorkflow = `---
description: Say hello
---

## Instructions

Be brief.

## Greet

@model default

Say hello.
`

func writeVault(t *testing.T, dataRoot string) {
	t.Helper()
	dir := filepath.Join(dataRoot, "AssistantMD", "Workflows")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.md"), []byte(sampleWorkflow), 0o644))
}

func TestBootstrap(t *testing.T) {
	t.Run("Should reject pre-bootstrap access with a RuntimeStateError", func(t *testing.T) {
		_, err := runtime.Current()
		require.Error(t, err)
		var cerr *core.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, core.CodeRuntimeStateError, cerr.Code)
	})

	t.Run("Should bootstrap a single-vault data root and rescan it", func(t *testing.T) {
		dataRoot := t.TempDir()
		systemRoot := t.TempDir()
		writeVault(t, dataRoot)

		rc, err := runtime.Bootstrap(context.Background(), runtime.Config{
			DataRoot:             dataRoot,
			SystemRoot:           systemRoot,
			SchedulerWorkerLimit: 2,
		})
		require.NoError(t, err)
		require.NotNil(t, rc)

		assert.FileExists(t, filepath.Join(systemRoot, "settings.yaml"))
		assert.FileExists(t, filepath.Join(systemRoot, "secrets.yaml"))

		current, err := runtime.Current()
		require.NoError(t, err)
		assert.Same(t, rc, current)
	})

	t.Run("Should skip a vault directory marked with .vaultignore", func(t *testing.T) {
		dataRoot := t.TempDir()
		systemRoot := t.TempDir()

		keep := filepath.Join(dataRoot, "keep")
		skip := filepath.Join(dataRoot, "skip")
		writeVault(t, keep)
		writeVault(t, skip)
		require.NoError(t, os.WriteFile(filepath.Join(skip, ".vaultignore"), []byte(""), 0o644))

		rc, err := runtime.Bootstrap(context.Background(), runtime.Config{
			DataRoot:             dataRoot,
			SystemRoot:           systemRoot,
			SchedulerWorkerLimit: 2,
		})
		require.NoError(t, err)

		result, err := rc.Rescan(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.DefinitionsLoaded)

		var ids []string
		for _, def := range rc.Workflows() {
			ids = append(ids, def.GlobalID)
		}
		assert.Contains(t, ids, "keep/greet")
		assert.NotContains(t, ids, "skip/greet")
	})
}

func TestRunWorkflow(t *testing.T) {
	t.Run("Should reject an unknown workflow global_id", func(t *testing.T) {
		dataRoot := t.TempDir()
		systemRoot := t.TempDir()
		writeVault(t, dataRoot)

		rc, err := runtime.Bootstrap(context.Background(), runtime.Config{
			DataRoot:             dataRoot,
			SystemRoot:           systemRoot,
			SchedulerWorkerLimit: 2,
		})
		require.NoError(t, err)

		_, err = rc.RunWorkflow(context.Background(), "default/does-not-exist", step.CauseManual, "")
		assert.Error(t, err)
	})
}
