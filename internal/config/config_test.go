package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "branch_protection.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
gitlab:
  url: https://gitlab.example.com
  group_id: 42
access_levels:
  no_access: 0
  guest: 10
  reporter: 20
  developer: 30
  maintainer: 40
  owner: 50
core_branches:
  - name: develop
    ref: main
    approval_required: true
wildcard_branches:
  - pattern: release/*
retry:
  max_retries: 5
  delay: 2s
pacing: 250ms
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.GitLab.URL != "https://gitlab.example.com" {
		t.Fatalf("unexpected URL: %s", cfg.GitLab.URL)
	}
	if cfg.GitLab.GroupID != 42 {
		t.Fatalf("unexpected group ID: %d", cfg.GitLab.GroupID)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Fatalf("unexpected max retries: %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.Delay.Std() != 2*time.Second {
		t.Fatalf("unexpected retry delay: %v", cfg.Retry.Delay.Std())
	}
	if cfg.Pacing.Std() != 250*time.Millisecond {
		t.Fatalf("unexpected pacing: %v", cfg.Pacing.Std())
	}
}

func TestLoad_AppliesRoleDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	b := cfg.CoreBranches[0]
	if b.PushAccessLevel != "maintainer" || b.MergeAccessLevel != "maintainer" {
		t.Fatalf("core branch defaults not applied: %+v", b)
	}
	w := cfg.WildcardBranches[0]
	if w.PushAccessLevel != "developer" || w.MergeAccessLevel != "developer" {
		t.Fatalf("wildcard defaults not applied: %+v", w)
	}

	if got := cfg.Level("developer"); got != 30 {
		t.Fatalf("Level(developer) = %d, want 30", got)
	}
	if got := cfg.UnprotectLevel(); got != 40 {
		t.Fatalf("UnprotectLevel() = %d, want 40", got)
	}
}

func TestLoad_RejectsUnknownRole(t *testing.T) {
	bad := strings.Replace(validConfig, "approval_required: true",
		"approval_required: true\n    push_access_level: superuser", 1)

	_, err := Load(writeConfig(t, bad))
	if err == nil {
		t.Fatal("want error for unknown role, got nil")
	}
	if !strings.Contains(err.Error(), "superuser") {
		t.Fatalf("error should name the unknown role: %v", err)
	}
}

func TestLoad_RejectsMissingRef(t *testing.T) {
	bad := strings.Replace(validConfig, "    ref: main\n", "", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("want error for missing ref, got nil")
	}
}

func TestLoad_RejectsMissingMaintainer(t *testing.T) {
	bad := strings.Replace(validConfig, "  maintainer: 40\n", "", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("want error when maintainer level is missing, got nil")
	}
}

func TestLoad_EnvFallbacks(t *testing.T) {
	t.Setenv("GROUP_ID", "77")

	minimal := strings.Replace(validConfig, "  group_id: 42\n", "", 1)
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GitLab.GroupID != 77 {
		t.Fatalf("GROUP_ID fallback not applied: %d", cfg.GitLab.GroupID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("want error for missing file, got nil")
	}
}

func TestDuration_RejectsBadValues(t *testing.T) {
	bad := strings.Replace(validConfig, "pacing: 250ms", "pacing: quickly", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("want error for unparseable duration, got nil")
	}
}

func TestValidate_DefaultsPacingWhenUnset(t *testing.T) {
	minimal := strings.Replace(validConfig, "pacing: 250ms\n", "", 1)
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pacing.Std() != DefaultPacing {
		t.Fatalf("want default pacing %v, got %v", DefaultPacing, cfg.Pacing.Std())
	}
}
