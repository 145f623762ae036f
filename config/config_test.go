package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
	"github.com/alem-hub/course-nudge/internal/domain/shared"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "course-nudge", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 6, cfg.Scheduler.RunHour)
	assert.Equal(t, DeliveryOutbox, cfg.Delivery.Mode)
	assert.False(t, cfg.DryRun())
	assert.Equal(t, nudge.DefaultRules(), cfg.Engine.Rules)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SCHEDULER_RUN_HOUR", "7")
	t.Setenv("SCHEDULER_RATE_PER_SECOND", "2.5")
	t.Setenv("FEATURE_NUDGE_WELCOME", "false")
	t.Setenv("FEATURE_DELIVERY_DRY_RUN", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scheduler.RunHour)
	assert.InDelta(t, 2.5, cfg.Scheduler.RatePerSecond, 0.001)
	assert.False(t, cfg.Engine.Rules.Features.Welcome)
	assert.True(t, cfg.Engine.Rules.Features.GradeNudge)
	assert.True(t, cfg.Engine.FileRules.Features.Welcome)
	assert.True(t, cfg.DryRun())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SCHEDULER_RUN_HOUR", "24")
	t.Setenv("DELIVERY_MODE", "smtp")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SCHEDULER_RUN_HOUR must be 0-23")
	assert.Contains(t, err.Error(), "DELIVERY_MODE")
	assert.Contains(t, err.Error(), "HTTP_API_KEYS is required")
}

func TestLoad_HTTPKeys(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("HTTP_API_KEYS", " alpha, ,beta ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.HTTP.APIKeys)
	assert.Equal(t, 500, cfg.Scheduler.OutboxBacklogThreshold)
}

func TestLoad_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("activity_gate_days: 5\nfeatures:\n  welcome: false\n"), 0o600))

	t.Setenv("APP_ENV", "development")
	t.Setenv("NUDGE_RULES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.Rules.ActivityGateDays)
	assert.False(t, cfg.Engine.Rules.Features.Welcome)
}

func TestParseRules(t *testing.T) {
	t.Run("empty input keeps defaults", func(t *testing.T) {
		rules, err := ParseRules(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, nudge.DefaultRules(), rules)
	})

	t.Run("partial override", func(t *testing.T) {
		rules, err := ParseRules(strings.NewReader(`
many_attempts: 5
cadence:
  bands:
    - {max_score: 3, quiet_days: 6}
`))
		require.NoError(t, err)
		assert.Equal(t, 5, rules.ManyAttempts)
		assert.Equal(t, []nudge.CadenceBand{{MaxScore: 3, QuietDays: 6}}, rules.Cadence.Bands)
		assert.Equal(t, 4, rules.Cadence.OnTimeQuietDays)
		assert.Equal(t, 54, rules.PassingScore)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := ParseRules(strings.NewReader("activity_gate: 3\n"))
		assert.Error(t, err)
	})

	t.Run("inconsistent scores", func(t *testing.T) {
		_, err := ParseRules(strings.NewReader("grade_b_score: 70\n"))
		require.Error(t, err)
		assert.True(t, shared.IsConfig(err))
	})

	t.Run("round trip", func(t *testing.T) {
		data, err := MarshalRules(nudge.DefaultRules())
		require.NoError(t, err)
		rules, err := ParseRules(strings.NewReader(string(data)))
		require.NoError(t, err)
		assert.Equal(t, nudge.DefaultRules(), rules)
	})
}

func TestFeatureFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		ff := NewFeatureFlags()
		assert.True(t, ff.IsEnabled(FeatureWelcome, nil))
		assert.False(t, ff.IsEnabled(FeatureDeliveryDryRun, nil))
		assert.False(t, ff.IsEnabled("nudge.unknown", nil))
		assert.Equal(t, nudge.DefaultRules(), ff.ApplyTo(nudge.DefaultRules()))
	})

	t.Run("apply to rules", func(t *testing.T) {
		ff := NewFeatureFlags()
		require.NoError(t, ff.DisableFeature(FeatureLockoutFollowUp))
		require.NoError(t, ff.DisableFeature(FeatureCadence))

		rules := ff.ApplyTo(nudge.DefaultRules())
		assert.False(t, rules.Features.LockoutFollowUp)
		assert.False(t, rules.Cadence.Enabled)
		assert.True(t, rules.Features.Welcome)
	})

	t.Run("rollout is stable per student", func(t *testing.T) {
		ff := NewFeatureFlags()
		require.NoError(t, ff.SetRolloutPercent(FeatureNudgeRollout, 50))

		in := 0
		for i := 0; i < 1000; i++ {
			id := "83" + strings.Repeat("0", 3) + string(rune('a'+i%26)) + string(rune('a'+i/26))
			first := ff.InRollout(id)
			assert.Equal(t, first, ff.InRollout(id))
			if first {
				in++
			}
		}
		assert.InDelta(t, 500, in, 150)
	})

	t.Run("student override wins", func(t *testing.T) {
		ff := NewFeatureFlags()
		require.NoError(t, ff.DisableFeature(FeatureNudgeRollout))
		ff.SetStudentOverride("830000001", FeatureNudgeRollout, true)

		assert.True(t, ff.InRollout("830000001"))
		assert.False(t, ff.InRollout("830000002"))

		ff.ClearStudentOverrides("830000001")
		assert.False(t, ff.InRollout("830000001"))
	})

	t.Run("invalid percent", func(t *testing.T) {
		ff := NewFeatureFlags()
		assert.ErrorIs(t, ff.SetRolloutPercent(FeatureWelcome, 101), ErrInvalidRolloutPercent)
		assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("FEATURE_NUDGE_ROLLOUT", "0")
		t.Setenv("FEATURE_NUDGE_GRADE_NUDGE", "false")
		ff := LoadFeatureFlags()
		assert.False(t, ff.InRollout("830000001"))
		assert.False(t, ff.IsEnabled(FeatureGradeNudge, nil))
	})
}
