// Package classify selects which classification path serves a dialog: the
// legacy classifier or the new one, rolled out gradually by deterministic
// per-dialog bucketing. Shadow mode additionally runs the new path on a
// sample of legacy-routed dialogs for comparison only.
package classify

import "strings"

// Classification paths.
const (
	ModeLegacy = "legacy"
	ModeNew    = "new"
)

// Pin values accepted from configuration. Empty means no pin.
const (
	PinLegacy = "legacy"
	PinNew    = "new"
)

// Config holds rollout parameters. Percent fields are clamped to [0, 100]
// at load time; Bucket assumes they already are.
type Config struct {
	// Pin forces every dialog onto one path, bypassing bucketing.
	Pin string
	// CanaryPercent of dialogs route to the new path.
	CanaryPercent int
	// ShadowEnabled turns on advisory shadow runs for legacy-routed dialogs.
	ShadowEnabled bool
	// ShadowSamplePercent of legacy-routed dialogs get a shadow run.
	ShadowSamplePercent int
}

// FNV-1a, 32 bit. Kept inline so the bucketing formula is explicit: buckets
// must stay stable across restarts and across implementations.
const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// Bucket maps a dialog ID onto a stable bucket in [0, 100).
func Bucket(dialogID string) int {
	h := uint32(fnvOffset32)
	for i := 0; i < len(dialogID); i++ {
		h ^= uint32(dialogID[i])
		h *= fnvPrime32
	}
	return int(h % 100)
}

// Resolve returns the classification path for a dialog. A pin wins over
// bucketing; otherwise dialogs with bucket < CanaryPercent take the new path.
func (c Config) Resolve(dialogID string) string {
	switch strings.ToLower(strings.TrimSpace(c.Pin)) {
	case PinLegacy:
		return ModeLegacy
	case PinNew:
		return ModeNew
	}
	if c.CanaryPercent >= 100 {
		return ModeNew
	}
	if c.CanaryPercent <= 0 {
		return ModeLegacy
	}
	if Bucket(dialogID) < c.CanaryPercent {
		return ModeNew
	}
	return ModeLegacy
}

// ShouldShadow reports whether a legacy-routed dialog gets an advisory run of
// the new path. Shadow results never influence the actual decision.
func (c Config) ShouldShadow(dialogID, resolvedMode string) bool {
	if !c.ShadowEnabled || resolvedMode != ModeLegacy {
		return false
	}
	if c.ShadowSamplePercent >= 100 {
		return true
	}
	if c.ShadowSamplePercent <= 0 {
		return false
	}
	return Bucket(dialogID) < c.ShadowSamplePercent
}
