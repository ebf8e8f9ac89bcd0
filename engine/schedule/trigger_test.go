package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	loc := time.UTC

	t.Run("Should parse a 5-field cron schedule", func(t *testing.T) {
		tr, err := Parse("cron: 0 9 * * *", loc)
		require.NoError(t, err)
		assert.Equal(t, KindCron, tr.Kind)

		after := time.Date(2026, 2, 10, 0, 0, 0, 0, loc)
		next, ok := tr.NextFire(after)
		require.True(t, ok)
		assert.Equal(t, "2026-02-10T09:00:00Z", next.Format(time.RFC3339))
	})

	t.Run("Should parse a once schedule and report one-shot exhaustion", func(t *testing.T) {
		tr, err := Parse("once: 2030-01-01 09:00", loc)
		require.NoError(t, err)
		assert.Equal(t, KindOnce, tr.Kind)

		before := time.Date(2029, 12, 31, 0, 0, 0, 0, loc)
		next, ok := tr.NextFire(before)
		require.True(t, ok)
		assert.Equal(t, 2030, next.Year())

		after := time.Date(2030, 1, 2, 0, 0, 0, 0, loc)
		_, ok = tr.NextFire(after)
		assert.False(t, ok)
	})

	t.Run("Should reject an unrecognized schedule shape", func(t *testing.T) {
		_, err := Parse("weekly: monday", loc)
		require.Error(t, err)
	})

	t.Run("Should reject an invalid cron expression", func(t *testing.T) {
		_, err := Parse("cron: not a cron", loc)
		require.Error(t, err)
	})
}

func TestTrigger_Equal(t *testing.T) {
	t.Run("Should compare by kind and raw value", func(t *testing.T) {
		a, err := Parse("cron: 0 9 * * *", time.UTC)
		require.NoError(t, err)
		b, err := Parse("cron: 0 9 * * *", time.UTC)
		require.NoError(t, err)
		c, err := Parse("cron: 0 10 * * *", time.UTC)
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(c))
	})
}

func TestTrigger_InFuture(t *testing.T) {
	t.Run("Should be false for a past once trigger", func(t *testing.T) {
		tr, err := Parse("once: 2020-01-01", time.UTC)
		require.NoError(t, err)
		assert.False(t, tr.InFuture(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("Should always be true for cron triggers", func(t *testing.T) {
		tr, err := Parse("cron: 0 9 * * *", time.UTC)
		require.NoError(t, err)
		assert.True(t, tr.InFuture(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)))
	})
}
