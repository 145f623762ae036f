package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceSkippingWeekend(t *testing.T) {
	tests := []struct {
		name  string
		start string
		want  string
	}{
		{"monday", "2026-10-12", "2026-10-15"},
		{"wednesday crosses weekend", "2026-10-14", "2026-10-19"},
		{"thursday", "2026-10-15", "2026-10-20"},
		{"friday", "2026-10-16", "2026-10-21"},
		{"saturday", "2026-10-17", "2026-10-21"},
		{"sunday", "2026-10-18", "2026-10-21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParseDate(tt.start).AdvanceSkippingWeekend(3)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestWeekdaysBetween(t *testing.T) {
	fri := MustParseDate("2026-10-16")

	assert.Equal(t, 1, WeekdaysBetween(fri, MustParseDate("2026-10-19")))
	assert.Equal(t, 5, WeekdaysBetween(MustParseDate("2026-10-12"), MustParseDate("2026-10-19")))
	assert.Equal(t, 0, WeekdaysBetween(fri, fri))
	assert.Equal(t, 0, WeekdaysBetween(fri, fri.AddDays(-3)))
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2026, time.February, 27)

	assert.Equal(t, "2026-03-02", d.AddDays(3).String())
	assert.Equal(t, 3, d.DaysUntil(d.AddDays(3)))
	assert.Equal(t, -3, d.DaysSince(d.AddDays(3)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.True(t, d.Equal(NewDate(2026, time.February, 27)))
	assert.Equal(t, "Friday", d.WeekdayName())
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	instant := time.Date(2026, time.October, 16, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-10-17", DateOf(instant, loc).String())
	assert.Equal(t, "2026-10-16", DateOf(instant, time.UTC).String())
	assert.True(t, DateOf(time.Time{}, loc).IsZero())
}

func TestDateText(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2026-12-11")))
	assert.Equal(t, NewDate(2026, time.December, 11), d)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2026-12-11", string(out))

	assert.Error(t, d.UnmarshalText([]byte("11.12.2026")))
}
