package quality

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentgov/core/internal/config"
	"github.com/agentgov/core/internal/trust"
)

func newTestService(t *testing.T, cfg *config.ProjectConfig) *Service {
	t.Helper()
	dir := t.TempDir()
	trustEngine, err := trust.Open(filepath.Join(dir, "trust.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { trustEngine.Close() })
	return New(cfg, trustEngine, dir)
}

func defaultConfigAllEnabled() *config.ProjectConfig {
	return &config.ProjectConfig{
		Settings: config.Settings{
			QualityGates:      config.QualityGates{Build: true, Lint: true, Tests: true, Coverage: true, Findings: true},
			CoverageThreshold: 80,
		},
		Quality: config.Quality{
			TestCommands:   map[string]string{"go": "echo 'coverage: 91.2% of statements'"},
			LintCommands:   map[string]string{"go": "true"},
			BuildCommands:  map[string]string{"go": "true"},
			FormatCommands: map[string]string{"go": "true"},
		},
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"main.go": "go", "app.ts": "typescript", "index.js": "javascript",
		"script.py": "python", "README.md": "",
	}
	for path, want := range cases {
		if got := DetectLanguage(path); got != want {
			t.Fatalf("DetectLanguage(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRunLintPasses(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	res := svc.RunLint(context.Background(), "go")
	if !res.Passed {
		t.Fatalf("expected lint to pass, got %+v", res)
	}
}

func TestRunCommandToolMissing(t *testing.T) {
	cfg := defaultConfigAllEnabled()
	cfg.Quality.LintCommands["go"] = "this-binary-does-not-exist-anywhere"
	svc := newTestService(t, cfg)
	res := svc.RunLint(context.Background(), "go")
	if res.Passed {
		t.Fatal("expected lint to fail for a nonexistent tool")
	}
}

func TestDisabledGateSkipped(t *testing.T) {
	cfg := defaultConfigAllEnabled()
	cfg.Quality.LintCommands["go"] = ""
	svc := newTestService(t, cfg)
	res := svc.RunLint(context.Background(), "go")
	if !res.Passed || res.Detail != "Skipped (disabled)" {
		t.Fatalf("expected skipped-disabled pass, got %+v", res)
	}
}

func TestCheckCoveragePassesAboveThreshold(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	res := svc.CheckCoverage(context.Background(), "go")
	if !res.Passed {
		t.Fatalf("expected coverage to pass, got %+v", res)
	}
}

func TestCheckCoverageFailsBelowThreshold(t *testing.T) {
	cfg := defaultConfigAllEnabled()
	cfg.Quality.TestCommands["go"] = "echo 'coverage: 40.0% of statements'"
	svc := newTestService(t, cfg)
	res := svc.CheckCoverage(context.Background(), "go")
	if res.Passed {
		t.Fatalf("expected coverage below threshold to fail, got %+v", res)
	}
}

func TestCheckAllGatesAllPassed(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	res := svc.CheckAllGates(context.Background(), "go")
	if !res.AllPassed {
		t.Fatalf("expected all gates to pass, got %+v", res)
	}
}

func TestCheckAllGatesDisabledGatesAlwaysPass(t *testing.T) {
	cfg := defaultConfigAllEnabled()
	cfg.Settings.QualityGates = config.QualityGates{} // every gate disabled
	svc := newTestService(t, cfg)
	res := svc.CheckAllGates(context.Background(), "go")
	if !res.AllPassed {
		t.Fatalf("expected all-disabled gates to report pass, got %+v", res)
	}
	if res.Build.Detail != "Skipped (disabled)" {
		t.Fatalf("expected skipped detail, got %+v", res.Build)
	}
}

func TestFindingsGateBlocksOnOpenFinding(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	if err := svc.trust.RecordFinding(trust.Finding{ID: "f1", Tool: "govet", Severity: "high", Description: "unchecked error"}); err != nil {
		t.Fatal(err)
	}
	res := svc.CheckAllGates(context.Background(), "go")
	if res.AllPassed {
		t.Fatal("expected an open finding to block the findings gate")
	}
	if res.Findings.Passed {
		t.Fatalf("expected findings gate to fail, got %+v", res.Findings)
	}
}

func TestFindingsGatePassesAfterDismissal(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	if err := svc.trust.RecordFinding(trust.Finding{ID: "f2", Tool: "govet", Severity: "low", Description: "style nit"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.trust.RecordDismissal("f2", "false positive in generated code", "reviewer-a"); err != nil {
		t.Fatal(err)
	}
	res := svc.CheckAllGates(context.Background(), "go")
	if !res.Findings.Passed {
		t.Fatalf("expected findings gate to pass once classified TRACK, got %+v", res.Findings)
	}
}

func TestGetTrustDecisionDelegates(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	decision, err := svc.GetTrustDecision("unknown-id")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != trust.DecisionBlock {
		t.Fatalf("expected BLOCK for unknown finding, got %+v", decision)
	}
}

func TestRecordDismissalRejectsEmptyJustification(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	result, err := svc.RecordDismissal("f3", "", "someone")
	if err != nil {
		t.Fatal(err)
	}
	if result.Recorded {
		t.Fatal("expected empty justification to be rejected")
	}
}

func TestValidateRunsLintThenTests(t *testing.T) {
	svc := newTestService(t, defaultConfigAllEnabled())
	res := svc.Validate(context.Background(), "go")
	if !res.Passed {
		t.Fatalf("expected validate to pass, got %+v", res)
	}
}
