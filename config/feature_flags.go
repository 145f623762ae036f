package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
)

// FeatureFlags manages feature toggles and gradual rollout.
// Message flows can be switched off per term without a deploy, and nudging
// as a whole can be rolled out to a stable percentage of students.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	studentOverrides map[string]map[string]bool // studentID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Students are assigned based on hash of their ID
	RolloutPercent int

	// Term targeting (e.g., "2026-fall")
	// Empty means all terms
	TargetTerms []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// StartupOnly flags are read once when the worker starts; changing
	// them at runtime has no effect.
	StartupOnly bool
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	StudentID string
	Term      string
}

// Predefined feature flag names.
const (
	// === Message flows ===
	FeatureWelcome         = "nudge.welcome"           // First message of the first course
	FeatureGradeNudge      = "nudge.grade_nudge"       // Re-test nudges after the final
	FeatureLockoutFollowUp = "nudge.lockout_follow_up" // Withdraw/options message after lockout
	FeatureCadence         = "nudge.cadence"           // Urgency-based quiet periods

	// === Rollout ===
	FeatureNudgeRollout = "nudge.rollout" // Share of students evaluated at all

	// === Delivery ===
	FeatureDeliveryDryRun = "delivery.dry_run" // Log content decisions instead of writing the outbox
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// NewFeatureFlags returns flags with default values only.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		studentOverrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureWelcome] = &Feature{
		Name:           FeatureWelcome,
		Description:    "Send a welcome message for the first course",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGradeNudge] = &Feature{
		Name:           FeatureGradeNudge,
		Description:    "Suggest re-tests when a higher grade is reachable",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLockoutFollowUp] = &Feature{
		Name:           FeatureLockoutFollowUp,
		Description:    "Follow the lockout notice with withdraw or options advice",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCadence] = &Feature{
		Name:           FeatureCadence,
		Description:    "Throttle messages by urgency",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNudgeRollout] = &Feature{
		Name:           FeatureNudgeRollout,
		Description:    "Evaluate this share of students",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureDeliveryDryRun] = &Feature{
		Name:           FeatureDeliveryDryRun,
		Description:    "Log content decisions without delivering them",
		Enabled:        false,
		RolloutPercent: 0,
		StartupOnly:    true,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_NUDGE_WELCOME=false
// Example: FEATURE_NUDGE_ROLLOUT=25 (25% of students)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "nudge.grade_nudge" -> "FEATURE_NUDGE_GRADE_NUDGE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context asks whether the feature is on at all.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check student overrides first
	if ctx != nil && ctx.StudentID != "" {
		if overrides, ok := ff.studentOverrides[ctx.StudentID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check term targeting
	if len(feature.TargetTerms) > 0 && ctx != nil && ctx.Term != "" {
		termMatch := false
		for _, t := range feature.TargetTerms {
			if t == ctx.Term {
				termMatch = true
				break
			}
		}
		if !termMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.StudentID != "" {
		return isInRollout(ctx.StudentID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a student is in the rollout percentage.
// Uses consistent hashing so students stay in their bucket.
func isInRollout(studentID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(studentID))
	bucket := int(h.Sum32() % 100)

	return bucket < percent
}

// InRollout reports whether a student takes part in nudging at all.
func (ff *FeatureFlags) InRollout(studentID string) bool {
	return ff.IsEnabled(FeatureNudgeRollout, &FeatureContext{StudentID: studentID})
}

// ApplyTo copies the message-flow switches into engine rules.
func (ff *FeatureFlags) ApplyTo(rules nudge.Rules) nudge.Rules {
	rules.Features.Welcome = rules.Features.Welcome && ff.IsEnabled(FeatureWelcome, nil)
	rules.Features.GradeNudge = rules.Features.GradeNudge && ff.IsEnabled(FeatureGradeNudge, nil)
	rules.Features.LockoutFollowUp = rules.Features.LockoutFollowUp && ff.IsEnabled(FeatureLockoutFollowUp, nil)
	rules.Cadence.Enabled = rules.Cadence.Enabled && ff.IsEnabled(FeatureCadence, nil)
	return rules
}

// SetStudentOverride sets a feature override for a specific student.
// Operators use it to pull one student into or out of the rollout.
func (ff *FeatureFlags) SetStudentOverride(studentID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.studentOverrides[studentID]; !ok {
		ff.studentOverrides[studentID] = make(map[string]bool)
	}
	ff.studentOverrides[studentID][featureName] = enabled
}

// ClearStudentOverrides removes all overrides for a student.
func (ff *FeatureFlags) ClearStudentOverrides(studentID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.studentOverrides, studentID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
