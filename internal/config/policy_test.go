package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSyncPolicyDefaults(t *testing.T) {
	policy, err := LoadSyncPolicy("")
	if err != nil {
		t.Fatalf("LoadSyncPolicy: %v", err)
	}
	if policy.MinMatchRatio != 0.30 {
		t.Errorf("MinMatchRatio = %v, want 0.30", policy.MinMatchRatio)
	}
	if !policy.StrictRoles {
		t.Error("StrictRoles should default to true")
	}
}

func TestLoadSyncPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("min_match_ratio: 0.5\nstrict_roles: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	policy, err := LoadSyncPolicy(path)
	if err != nil {
		t.Fatalf("LoadSyncPolicy: %v", err)
	}
	if policy.MinMatchRatio != 0.5 {
		t.Errorf("MinMatchRatio = %v, want 0.5", policy.MinMatchRatio)
	}
	if policy.StrictRoles {
		t.Error("StrictRoles should be false")
	}
}

func TestLoadSyncPolicyEnvOverride(t *testing.T) {
	t.Setenv("SYNC_MIN_MATCH_RATIO", "0.75")
	t.Setenv("SYNC_STRICT_ROLES", "false")

	policy, err := LoadSyncPolicy("")
	if err != nil {
		t.Fatalf("LoadSyncPolicy: %v", err)
	}
	if policy.MinMatchRatio != 0.75 {
		t.Errorf("MinMatchRatio = %v, want 0.75", policy.MinMatchRatio)
	}
	if policy.StrictRoles {
		t.Error("StrictRoles should be overridden to false")
	}
}

func TestLoadSyncPolicyRejectsOutOfRange(t *testing.T) {
	t.Setenv("SYNC_MIN_MATCH_RATIO", "1.5")

	if _, err := LoadSyncPolicy(""); err == nil {
		t.Error("ratio above 1 must be rejected")
	}
}
