package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SyncPolicy tunes the alignment engine. The thresholds trade off
// false-fallback (an unnecessary full rewrite) against false-alignment
// (a wrong diff applied), so they are configuration rather than constants.
type SyncPolicy struct {
	// MinMatchRatio is the minimum fraction of compared window positions
	// whose signatures must match for an alignment to be trusted.
	MinMatchRatio float64 `yaml:"min_match_ratio"`
	// StrictRoles rejects any alignment whose window contains a positional
	// role mismatch. Disabling it demotes role mismatches to ordinary
	// signature mismatches: the alignment is tolerated, but the stored role
	// is kept as-is - sync updates never rewrite a message's role.
	StrictRoles bool `yaml:"strict_roles"`
}

// DefaultSyncPolicy mirrors the observed behavior this engine replaces:
// 30% minimum overlap, role mismatches always force fallback.
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		MinMatchRatio: 0.30,
		StrictRoles:   true,
	}
}

// LoadSyncPolicy reads the policy file when path is set, then applies env
// overrides (SYNC_MIN_MATCH_RATIO, SYNC_STRICT_ROLES). Missing file fields
// keep their defaults.
func LoadSyncPolicy(path string) (SyncPolicy, error) {
	policy := DefaultSyncPolicy()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return policy, fmt.Errorf("read sync policy: %w", err)
		}
		if err := yaml.Unmarshal(data, &policy); err != nil {
			return policy, fmt.Errorf("parse sync policy: %w", err)
		}
	}

	if v := os.Getenv("SYNC_MIN_MATCH_RATIO"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return policy, fmt.Errorf("parse SYNC_MIN_MATCH_RATIO: %w", err)
		}
		policy.MinMatchRatio = ratio
	}
	if v := os.Getenv("SYNC_STRICT_ROLES"); v != "" {
		policy.StrictRoles = v == "true"
	}

	if policy.MinMatchRatio < 0 || policy.MinMatchRatio > 1 {
		return policy, fmt.Errorf("min_match_ratio must be within [0, 1], got %v", policy.MinMatchRatio)
	}

	return policy, nil
}
