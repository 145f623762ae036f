package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Format: "json"})

	log.WithRunID("r-42").With(Component("engine")).Info("nudge decided",
		StudentID("0012345"),
		CourseID("MATH0300"),
		Code("PNTSRrt00"),
		Int("points", 12),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "nudge decided", e["message"])
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "r-42", e[RunIDKey])
	assert.Equal(t, "engine", e["component"])
	assert.Equal(t, "0012345", e["student_id"])
	assert.Equal(t, "MATH0300", e["course_id"])
	assert.Equal(t, "PNTSRrt00", e["code"])
	assert.EqualValues(t, 12, e["points"])
	assert.Contains(t, e, "timestamp")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"Error":   LevelError,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).With(String("request_id", "abc"))

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("from context")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["request_id"])

	assert.NotNil(t, FromContext(context.Background()))
}
