package tooladapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/directive"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/router"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/tooladapter"
)

type stubTool struct {
	name string
	out  string
}

func (s stubTool) Name() string         { return s.name }
func (s stubTool) Instructions() string { return "a stub tool" }
func (s stubTool) Invoke(_ context.Context, _ map[string]any) (tooladapter.Result, error) {
	return tooladapter.Result{Kind: tooladapter.ResultText, Text: s.out}, nil
}

func newTestAdapter(t *testing.T, tokens []directive.ToolToken) *tooladapter.Adapter {
	t.Helper()
	dir := t.TempDir()
	vault, err := core.NewVault(dir)
	require.NoError(t, err)
	clock := core.FixedClock{At: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)}
	bufs := buffer.New(clock)
	rt := router.New(vault, bufs)
	registry := map[string]tooladapter.Tool{
		"web_search": stubTool{name: "web_search", out: "search results"},
	}
	return tooladapter.New(tokens, registry, rt)
}

func TestAdapter_Call(t *testing.T) {
	t.Run("Should return raw text when no output routing is set", func(t *testing.T) {
		a := newTestAdapter(t, []directive.ToolToken{{Name: "web_search"}})
		event := a.Call(context.Background(), "call1", "web_search", nil)
		require.NoError(t, event.Err)
		assert.Equal(t, "search results", event.Result)
	})

	t.Run("Should route the result and return a manifest", func(t *testing.T) {
		a := newTestAdapter(t, []directive.ToolToken{
			{Name: "web_search", HasOutput: true, Output: directive.OutputTarget{Kind: directive.OutputVariable, Name: "hits"}},
		})
		event := a.Call(context.Background(), "call1", "web_search", nil)
		require.NoError(t, event.Err)
		assert.NotContains(t, event.Result, "search results")
	})

	t.Run("Should error on a tool that isn't enabled", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		event := a.Call(context.Background(), "call1", "web_search", nil)
		require.Error(t, event.Err)
	})
}
