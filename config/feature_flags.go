package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles for the gamification engine.
// Supports gradual rollout with consistent per-student bucketing, so a
// student's experience does not flicker between requests.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Per-student overrides for testing and support.
	studentOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent (0-100). Students are assigned by hash of their ID.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Notification Features ===
	FeatureNotifyLevelUp       = "notify.level_up"        // Level-up congratulations
	FeatureNotifyBadgeUnlocked = "notify.badge_unlocked"  // Badge announcements
	FeatureNotifyStreakBroken  = "notify.streak_broken"   // "Your streak ended"
	FeatureNotifyStreakAtRisk  = "notify.streak_at_risk"  // Evening streak reminders
	FeatureNotifyXPGain        = "notify.xp_gain"         // Per-award notices

	// === Leaderboard Features ===
	FeatureLeaderboardCache = "leaderboard.cache" // Redis page cache
)

// LoadFeatureFlags loads feature flags with env overrides applied.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		studentOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureNotifyLevelUp] = &Feature{
		Name:           FeatureNotifyLevelUp,
		Description:    "Congratulate students on reaching a new level",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyBadgeUnlocked] = &Feature{
		Name:           FeatureNotifyBadgeUnlocked,
		Description:    "Announce newly unlocked badges",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStreakBroken] = &Feature{
		Name:           FeatureNotifyStreakBroken,
		Description:    "Tell students their streak ended",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStreakAtRisk] = &Feature{
		Name:           FeatureNotifyStreakAtRisk,
		Description:    "Evening reminder before a streak breaks",
		Enabled:        true,
		RolloutPercent: 50, // gradual rollout, reminders can feel pushy
	}

	ff.features[FeatureNotifyXPGain] = &Feature{
		Name:           FeatureNotifyXPGain,
		Description:    "Notice for every XP award",
		Enabled:        false, // too noisy next to level-ups and badges
		RolloutPercent: 0,
	}

	ff.features[FeatureLeaderboardCache] = &Feature{
		Name:           FeatureLeaderboardCache,
		Description:    "Serve the leaderboard from the Redis page cache",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment applies env overrides.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_NOTIFY_STREAK_AT_RISK=100
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts a feature name to its env var key.
// "notify.level_up" -> "FEATURE_NOTIFY_LEVEL_UP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks whether a feature is enabled for a student. An empty
// student ID evaluates the flag globally: full rollouts pass, partial ones
// do not.
func (ff *FeatureFlags) IsEnabled(featureName, studentID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if studentID != "" {
		if overrides, ok := ff.studentOverrides[studentID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if studentID == "" {
		return false
	}

	return isInRollout(studentID, featureName, feature.RolloutPercent)
}

// isInRollout buckets a student consistently for a partial rollout.
func isInRollout(studentID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(studentID))
	bucket := int(h.Sum32() % 100)
	return bucket < percent
}

// SetStudentOverride sets a feature override for a specific student.
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

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		cp := *v
		result[k] = &cp
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
