package router_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/router"
)

func newTestRouter(t *testing.T) (*router.Router, string) {
	t.Helper()
	dir := t.TempDir()
	vault, err := core.NewVault(dir)
	require.NoError(t, err)
	bufs := buffer.New(core.FixedClock{At: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)})
	return router.New(vault, bufs), dir
}

func TestRouter_Route(t *testing.T) {
	t.Run("Should pass inline content through unchanged", func(t *testing.T) {
		r, _ := newTestRouter(t)
		res, err := r.Route(router.Destination{Kind: router.KindInline}, router.Payload{Content: "hello"}, "step1")
		require.NoError(t, err)
		assert.Equal(t, "hello", res.Text)
		assert.False(t, res.Manifested)
	})

	t.Run("Should discard silently", func(t *testing.T) {
		r, _ := newTestRouter(t)
		res, err := r.Route(router.Destination{Kind: router.KindDiscard}, router.Payload{Content: "hello"}, "step1")
		require.NoError(t, err)
		assert.Equal(t, "", res.Text)
	})

	t.Run("Should mark context destinations for preamble append", func(t *testing.T) {
		r, _ := newTestRouter(t)
		res, err := r.Route(router.Destination{Kind: router.KindContext}, router.Payload{Content: "ctx text"}, "section1")
		require.NoError(t, err)
		assert.True(t, res.ContextAppend)
		assert.Equal(t, "ctx text", res.Text)
	})

	t.Run("Should write a variable and return a manifest, not raw content", func(t *testing.T) {
		r, _ := newTestRouter(t)
		res, err := r.Route(
			router.Destination{Kind: router.KindVariable, Name: "foo", Scope: buffer.ScopeRun},
			router.Payload{Content: "secret content", Labels: []string{"notes/a.md"}},
			"stepA",
		)
		require.NoError(t, err)
		assert.True(t, res.Manifested)
		assert.NotContains(t, res.Text, "secret content")
		assert.Contains(t, res.Text, "variable:foo")
	})

	t.Run("Should auto-append .md to an extensionless file destination", func(t *testing.T) {
		r, dir := newTestRouter(t)
		_, err := r.Route(
			router.Destination{Kind: router.KindFile, Name: "test/2026-02-10"},
			router.Payload{Content: "a haiku"},
			"step1",
		)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dir, "test", "2026-02-10.md"))
		require.NoError(t, err)
		assert.Equal(t, "a haiku", string(data))
	})

	t.Run("Should append with a separator newline", func(t *testing.T) {
		r, dir := newTestRouter(t)
		dest := router.Destination{Kind: router.KindFile, Name: "test/2026-02-10.md"}
		_, err := r.Route(dest, router.Payload{Content: "first"}, "step1")
		require.NoError(t, err)
		dest.WriteMode = router.WriteAppend
		_, err = r.Route(dest, router.Payload{Content: "second"}, "step2")
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dir, "test", "2026-02-10.md"))
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond", string(data))
	})

	t.Run("Should number successive new-mode files with no collisions", func(t *testing.T) {
		r, dir := newTestRouter(t)
		dest := router.Destination{Kind: router.KindFile, Name: "scratch/note.md", WriteMode: router.WriteNew}
		_, err := r.Route(dest, router.Payload{Content: "one"}, "")
		require.NoError(t, err)
		_, err = r.Route(dest, router.Payload{Content: "two"}, "")
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "scratch", "note_000.md"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "scratch", "note_001.md"))
		require.NoError(t, err)
	})

	t.Run("Should reject a file destination that escapes the vault", func(t *testing.T) {
		r, _ := newTestRouter(t)
		_, err := r.Route(router.Destination{Kind: router.KindFile, Name: "../escape.md"}, router.Payload{Content: "x"}, "")
		require.Error(t, err)
	})
}
