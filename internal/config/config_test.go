package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with defaults: %v", err)
	}
	if cfg.DedupeScore != 0.92 {
		t.Errorf("default dedupe score = %f", cfg.DedupeScore)
	}
	if !cfg.SensitiveFilterEnabled {
		t.Error("sensitive filter should default to enabled")
	}
	if cfg.SensitiveRulesetVersion != "builtin-1" {
		t.Errorf("default ruleset version = %q", cfg.SensitiveRulesetVersion)
	}
}

func TestEnvJSONStrings(t *testing.T) {
	t.Setenv("SENSITIVE_DENY_RULES", `["timezone:", "internal-\\d+"]`)
	got := envJSONStrings("SENSITIVE_DENY_RULES")
	if len(got) != 2 || got[0] != "timezone:" {
		t.Fatalf("unexpected parse result: %v", got)
	}

	// Invalid JSON is ignored, never fatal.
	t.Setenv("SENSITIVE_DENY_RULES", `not json`)
	if got := envJSONStrings("SENSITIVE_DENY_RULES"); got != nil {
		t.Fatalf("invalid JSON should yield nil, got %v", got)
	}
}

func TestRulesFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "version: team-7\ndeny:\n  - 'badge-\\d+'\nallow:\n  - 'timezone:\\s*asia/shanghai'\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SENSITIVE_RULES_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SensitiveRulesetVersion != "team-7" {
		t.Errorf("version not overridden: %q", cfg.SensitiveRulesetVersion)
	}
	if len(cfg.SensitiveDenyRules) != 1 || len(cfg.SensitiveAllowRules) != 1 {
		t.Errorf("rules not loaded: deny=%v allow=%v", cfg.SensitiveDenyRules, cfg.SensitiveAllowRules)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	t.Setenv("DEDUPE_SCORE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for DEDUPE_SCORE > 1")
	}
}

func TestValidateDedupeAboveSemanticFloor(t *testing.T) {
	// Dedup candidates come from a search floored at the semantic minimum,
	// so a dedup threshold below it would mark every candidate a duplicate.
	t.Setenv("MIN_SEMANTIC_SCORE", "0.95")
	t.Setenv("DEDUPE_SCORE", "0.9")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for DEDUPE_SCORE < MIN_SEMANTIC_SCORE")
	}

	t.Setenv("MIN_SEMANTIC_SCORE", "0.55")
	if _, err := Load(); err != nil {
		t.Fatalf("valid thresholds rejected: %v", err)
	}
}
