package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsOnMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Settings.QualityGates.Build {
		t.Fatal("expected default config to enable every quality gate")
	}
	if cfg.Settings.CoverageThreshold != 80 {
		t.Fatalf("expected default coverage threshold 80, got %v", cfg.Settings.CoverageThreshold)
	}
}

func TestLoadParsesProjectConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project-config.json")
	body := `{"settings":{"qualityGates":{"build":true,"lint":false,"tests":true,"coverage":false,"findings":true},"coverageThreshold":60},"quality":{"testCommands":{"go":"go test ./..."}}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.QualityGates.Lint {
		t.Fatal("expected lint gate disabled per config file")
	}
	if cfg.Quality.TestCommands["go"] != "go test ./..." {
		t.Fatalf("expected test command wired through, got %q", cfg.Quality.TestCommands["go"])
	}
}

func TestLoadReviewerConfigDefaultsOnMissingFile(t *testing.T) {
	cfg, err := LoadReviewerConfig(filepath.Join(t.TempDir(), "reviewer.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Binary != "" || cfg.Model != "" {
		t.Fatalf("expected empty overrides on missing file, got %+v", cfg)
	}
}

func TestLoadReviewerConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewer.yaml")
	body := "binary: /usr/local/bin/claude\nmodel: claude-reviewer-custom\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadReviewerConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Binary != "/usr/local/bin/claude" {
		t.Fatalf("expected binary override, got %q", cfg.Binary)
	}
	if cfg.Model != "claude-reviewer-custom" {
		t.Fatalf("expected model override, got %q", cfg.Model)
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{"MOCK_REVIEW", "SETTLE_INTERVAL_MS", "MIN_TASKS_FOR_REVIEW", "REVIEW_FLAG_STALENESS_MS", "TASK_LIST_ID"} {
		os.Unsetenv(key)
	}

	env := LoadEnv()
	if env.MockReview {
		t.Fatal("expected MockReview false by default")
	}
	if env.SettleIntervalMS != 3000 {
		t.Fatalf("expected default settle interval 3000ms, got %d", env.SettleIntervalMS)
	}
	if env.MinTasksForReview != 2 {
		t.Fatalf("expected default min tasks 2, got %d", env.MinTasksForReview)
	}
}
