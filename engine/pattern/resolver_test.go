package pattern

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

func newTestResolver(t *testing.T, at string, pending PendingStore) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	vault, err := core.NewVault(dir)
	require.NoError(t, err)
	when, err := time.Parse("2006-01-02", at)
	require.NoError(t, err)
	clock := core.FixedClock{At: when}
	return New(vault, clock, time.Monday, pending), dir
}

func TestResolveScalar(t *testing.T) {
	r, _ := newTestResolver(t, "2026-02-11", nil) // Wednesday

	t.Run("Should expand {today} with default format", func(t *testing.T) {
		out, err := r.ResolveScalar("notes/{today}")
		require.NoError(t, err)
		assert.Equal(t, "notes/2026-02-11", out)
	})

	t.Run("Should expand {yesterday} and {tomorrow}", func(t *testing.T) {
		out, err := r.ResolveScalar("{yesterday}")
		require.NoError(t, err)
		assert.Equal(t, "2026-02-10", out)

		out, err = r.ResolveScalar("{tomorrow}")
		require.NoError(t, err)
		assert.Equal(t, "2026-02-12", out)
	})

	t.Run("Should honor a custom format suffix", func(t *testing.T) {
		out, err := r.ResolveScalar("{today:MM/DD/YYYY}")
		require.NoError(t, err)
		assert.Equal(t, "02/11/2026", out)
	})

	t.Run("Should expand day-name and month-name", func(t *testing.T) {
		out, err := r.ResolveScalar("{day-name}")
		require.NoError(t, err)
		assert.Equal(t, "Wednesday", out)

		out, err = r.ResolveScalar("{month-name}")
		require.NoError(t, err)
		assert.Equal(t, "February", out)
	})

	t.Run("Should error on unknown tokens", func(t *testing.T) {
		_, err := r.ResolveScalar("{bogus}")
		require.Error(t, err)
		var ce *core.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, core.CodeInvalidPattern, ce.Code)
	})

	t.Run("Should error when {latest} appears in scalar position", func(t *testing.T) {
		_, err := r.ResolveScalar("{latest}")
		require.Error(t, err)
	})

	t.Run("Should reject '..' ", func(t *testing.T) {
		_, err := r.ResolveScalar("../escape")
		require.Error(t, err)
	})
}

func TestResolveFileList_Literal(t *testing.T) {
	r, _ := newTestResolver(t, "2026-02-10", nil)

	t.Run("Should resolve a literal pattern with a date token", func(t *testing.T) {
		out, err := r.ResolveFileList(t.Context(), "vault/wf", "test/{today}")
		require.NoError(t, err)
		assert.Equal(t, []string{"test/2026-02-10"}, out)
	})

	t.Run("Should reject '**'", func(t *testing.T) {
		_, err := r.ResolveFileList(t.Context(), "vault/wf", "notes/**/x.md")
		require.Error(t, err)
	})
}

func TestResolveFileList_Glob(t *testing.T) {
	r, dir := newTestResolver(t, "2026-02-10", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "a.md"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "b.md"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "c.txt"), []byte("c"), 0o600))

	t.Run("Should expand a single-segment glob", func(t *testing.T) {
		out, err := r.ResolveFileList(t.Context(), "vault/wf", "notes/*.md")
		require.NoError(t, err)
		assert.Equal(t, []string{"notes/a.md", "notes/b.md"}, out)
	})
}

func TestResolveFileList_Latest(t *testing.T) {
	r, dir := newTestResolver(t, "2026-02-10", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "journal"), 0o755))
	for _, name := range []string{"2026-02-08.md", "2026-02-09.md", "2026-02-10.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "journal", name), []byte("x"), 0o600))
	}

	t.Run("Should select the single most recent file by default", func(t *testing.T) {
		out, err := r.ResolveFileList(t.Context(), "vault/wf", "journal/{latest}")
		require.NoError(t, err)
		assert.Equal(t, []string{"journal/2026-02-10.md"}, out)
	})

	t.Run("Should select the N most recent files", func(t *testing.T) {
		out, err := r.ResolveFileList(t.Context(), "vault/wf", "journal/{latest:2}")
		require.NoError(t, err)
		assert.Equal(t, []string{"journal/2026-02-10.md", "journal/2026-02-09.md"}, out)
	})
}

type stubPending struct {
	files []string
}

func (s *stubPending) Candidates(_ context.Context, _, _ string, _ []string) ([]string, error) {
	return s.files, nil
}

func TestResolveFileList_Pending(t *testing.T) {
	t.Run("Should delegate to the pending store and cap at N", func(t *testing.T) {
		dir := t.TempDir()
		vault, err := core.NewVault(dir)
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "inbox"), 0o755))
		for _, name := range []string{"a.md", "b.md", "c.md"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "inbox", name), []byte("x"), 0o600))
		}
		store := &stubPending{files: []string{"inbox/a.md", "inbox/b.md", "inbox/c.md"}}
		r := New(vault, core.FixedClock{At: time.Now()}, time.Monday, store)

		out, err := r.ResolveFileList(t.Context(), "vault/wf", "inbox/{pending:2}")
		require.NoError(t, err)
		assert.Equal(t, []string{"inbox/a.md", "inbox/b.md"}, out)
	})
}
