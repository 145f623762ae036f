package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolOptions_RuntimeParams(t *testing.T) {
	params := DefaultPoolOptions().runtimeParams()
	assert.Equal(t, "course-nudge", params["application_name"])
	assert.Equal(t, "30000", params["statement_timeout"])

	assert.Empty(t, PoolOptions{}.runtimeParams())
}

func TestPendingMigrations(t *testing.T) {
	all := GetMigrations()
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("fresh database", func(t *testing.T) {
		pending := pendingMigrations(all, map[int]time.Time{})
		assert.Len(t, pending, len(all))
		assert.Equal(t, 0, latestApplied(nil))
	})

	t.Run("gap is reported in order", func(t *testing.T) {
		applied := map[int]time.Time{1: at, 3: at}
		pending := pendingMigrations(all, applied)
		if assert.Len(t, pending, 1) {
			assert.Equal(t, 2, pending[0].Version)
		}
		assert.Equal(t, 3, latestApplied(applied))
	})

	t.Run("up to date", func(t *testing.T) {
		applied := map[int]time.Time{}
		for _, m := range all {
			applied[m.Version] = at
		}
		assert.Empty(t, pendingMigrations(all, applied))
	})
}

func TestMigrations_AreComplete(t *testing.T) {
	seen := map[int]bool{}
	for i, m := range GetMigrations() {
		assert.Equal(t, i+1, m.Version, "versions are consecutive")
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
		assert.False(t, seen[m.Version])
		seen[m.Version] = true
	}
}
