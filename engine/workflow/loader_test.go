package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoader_Rescan(t *testing.T) {
	root := t.TempDir()
	vault, err := core.NewVault(root)
	require.NoError(t, err)
	vaults := []VaultRef{{Name: "personal", Vault: vault}}

	writeFile(t, filepath.Join(root, "AssistantMD/Workflows/daily-haiku.md"),
		"---\nschedule: \"cron: 0 9 * * *\"\n---\n\n## Step one\n@model none\nbody\n")
	writeFile(t, filepath.Join(root, "AssistantMD/Workflows/nested/sub.md"),
		"## Step one\n@model none\nbody\n")
	writeFile(t, filepath.Join(root, "AssistantMD/Workflows/_ignored/skip.md"),
		"## Step one\nbody\n")
	writeFile(t, filepath.Join(root, "AssistantMD/Workflows/broken.md"),
		"## Step one\n@unknown-directive value\nbody\n")

	l := New()

	t.Run("Should index valid files by global_id and skip _-prefixed dirs", func(t *testing.T) {
		result, err := l.Rescan(context.Background(), vaults)
		require.NoError(t, err)
		assert.Equal(t, 3, result.FilesProcessed) // daily-haiku, nested/sub, broken (not _ignored)
		assert.Equal(t, 2, result.DefinitionsLoaded)
		assert.Len(t, result.Errors, 1)
		assert.Equal(t, 1, result.ErrorSummary.ParseErrors)

		def, ok := l.Get("personal/daily-haiku")
		require.True(t, ok)
		assert.True(t, def.HasSchedule)
		assert.True(t, def.Enabled)

		_, ok = l.Get("personal/nested/sub")
		require.True(t, ok)

		_, ok = l.Get("personal/_ignored/skip")
		assert.False(t, ok)
	})

	t.Run("Should replace the index atomically on a second rescan", func(t *testing.T) {
		os.Remove(filepath.Join(root, "AssistantMD/Workflows/daily-haiku.md"))
		_, err := l.Rescan(context.Background(), vaults)
		require.NoError(t, err)
		_, ok := l.Get("personal/daily-haiku")
		assert.False(t, ok)
	})
}

func TestLoader_Validate(t *testing.T) {
	root := t.TempDir()
	vault, err := core.NewVault(root)
	require.NoError(t, err)
	vaults := []VaultRef{{Name: "personal", Vault: vault}}
	writeFile(t, filepath.Join(root, "AssistantMD/Workflows/broken.md"),
		"## Step one\n@unknown-directive value\nbody\n")

	l := New()
	t.Run("Should report errors without mutating the live index", func(t *testing.T) {
		result, err := l.Validate(context.Background(), vaults)
		require.NoError(t, err)
		assert.Equal(t, 1, len(result.Errors))
		assert.Empty(t, l.List())
	})
}
