package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

type counts struct {
	pending           int
	delivered, silent int
	day               timeutil.Date
	err               error
}

func (c *counts) CountPending(context.Context) (int, error) { return c.pending, c.err }

func (c *counts) CountSentOn(_ context.Context, day timeutil.Date) (int, int, error) {
	c.day = day
	return c.delivered, c.silent, nil
}

func TestOutboxMonitorJob(t *testing.T) {
	todayFn := func() timeutil.Date { return today }

	t.Run("records counts", func(t *testing.T) {
		c := &counts{pending: 12, delivered: 40, silent: 9}
		job := NewOutboxMonitorJob(c, c, todayFn, 100, nil)
		assert.Nil(t, job.Last())

		require.NoError(t, job.Run(context.Background()))
		last := job.Last()
		require.NotNil(t, last)
		assert.Equal(t, OutboxSnapshot{Pending: 12, DeliveredToday: 40, SilentToday: 9, Date: "2026-10-14"}, *last)
		assert.Equal(t, today, c.day)
	})

	t.Run("flags a backlog", func(t *testing.T) {
		c := &counts{pending: 101}
		job := NewOutboxMonitorJob(c, c, todayFn, 100, nil)
		require.NoError(t, job.Run(context.Background()))
		assert.True(t, job.Last().Backlogged)
	})

	t.Run("database errors fail the run", func(t *testing.T) {
		c := &counts{err: errors.New("db down")}
		job := NewOutboxMonitorJob(c, c, todayFn, 0, nil)
		assert.Error(t, job.Run(context.Background()))
		assert.Nil(t, job.Last())
	})
}
