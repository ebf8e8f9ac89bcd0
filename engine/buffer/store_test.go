package buffer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

func newTestStore() *buffer.Store {
	return buffer.New(core.FixedClock{At: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)})
}

func TestStore_Put(t *testing.T) {
	t.Run("Should replace existing content in replace mode", func(t *testing.T) {
		s := newTestStore()
		_, err := s.Put(buffer.ScopeRun, "foo", "one", buffer.WriteReplace, "step1")
		require.NoError(t, err)
		_, err = s.Put(buffer.ScopeRun, "foo", "two", buffer.WriteReplace, "step2")
		require.NoError(t, err)
		b, ok := s.Get(buffer.ScopeRun, "foo")
		require.True(t, ok)
		assert.Equal(t, "two", b.Content)
	})

	t.Run("Should insert a separator newline between appends", func(t *testing.T) {
		s := newTestStore()
		_, err := s.Put(buffer.ScopeRun, "foo", "a.md", buffer.WriteAppend, "stepA")
		require.NoError(t, err)
		_, err = s.Put(buffer.ScopeRun, "foo", "b.md", buffer.WriteAppend, "stepB")
		require.NoError(t, err)
		b, ok := s.Get(buffer.ScopeRun, "foo")
		require.True(t, ok)
		assert.Equal(t, "a.md\nb.md", b.Content)
	})

	t.Run("Should number successive new writes with zero collisions", func(t *testing.T) {
		s := newTestStore()
		n0, err := s.Put(buffer.ScopeRun, "note", "first", buffer.WriteNew, "")
		require.NoError(t, err)
		n1, err := s.Put(buffer.ScopeRun, "note", "second", buffer.WriteNew, "")
		require.NoError(t, err)
		n2, err := s.Put(buffer.ScopeRun, "note", "third", buffer.WriteNew, "")
		require.NoError(t, err)
		assert.Equal(t, "note_000", n0)
		assert.Equal(t, "note_001", n1)
		assert.Equal(t, "note_002", n2)
	})

	t.Run("Should keep the same name unique across scopes", func(t *testing.T) {
		s := newTestStore()
		_, err := s.Put(buffer.ScopeRun, "shared", "run value", buffer.WriteReplace, "")
		require.NoError(t, err)
		_, err = s.Put(buffer.ScopeSession, "shared", "session value", buffer.WriteReplace, "")
		require.NoError(t, err)
		runB, _ := s.Get(buffer.ScopeRun, "shared")
		sessionB, _ := s.Get(buffer.ScopeSession, "shared")
		assert.Equal(t, "run value", runB.Content)
		assert.Equal(t, "session value", sessionB.Content)
	})
}

func TestStore_ClearRun(t *testing.T) {
	t.Run("Should drop only run-scoped buffers", func(t *testing.T) {
		s := newTestStore()
		_, _ = s.Put(buffer.ScopeRun, "r", "x", buffer.WriteReplace, "")
		_, _ = s.Put(buffer.ScopeSession, "s", "y", buffer.WriteReplace, "")
		s.ClearRun()
		_, runOK := s.Get(buffer.ScopeRun, "r")
		_, sessionOK := s.Get(buffer.ScopeSession, "s")
		assert.False(t, runOK)
		assert.True(t, sessionOK)
	})
}

func TestStore_SearchAndList(t *testing.T) {
	t.Run("Should find buffers containing a substring", func(t *testing.T) {
		s := newTestStore()
		_, _ = s.Put(buffer.ScopeRun, "a", "hello world", buffer.WriteReplace, "")
		_, _ = s.Put(buffer.ScopeRun, "b", "goodbye", buffer.WriteReplace, "")
		matches := s.Search(buffer.ScopeRun, "hello")
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].Name)
	})

	t.Run("Should list buffers sorted by name", func(t *testing.T) {
		s := newTestStore()
		_, _ = s.Put(buffer.ScopeRun, "zeta", "1", buffer.WriteReplace, "")
		_, _ = s.Put(buffer.ScopeRun, "alpha", "2", buffer.WriteReplace, "")
		list := s.List(buffer.ScopeRun)
		require.Len(t, list, 2)
		assert.Equal(t, "alpha", list[0].Name)
		assert.Equal(t, "zeta", list[1].Name)
	})
}
