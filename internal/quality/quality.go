// Package quality implements the C4 Quality Service: language-detected,
// subprocess-delegated format/lint/test/coverage checks, plus the five-gate
// aggregate check_all_gates, wrapping the C3 Trust Engine for the
// findings-related operations spec.md section 4.4 shares with it.
//
// Grounded on internal/captain/captain.go's executeSubagent (temp working
// directory, exec.CommandContext, CombinedOutput, *exec.ExitError exit-code
// handling) for every subprocess call, and on internal/supervisor/decision.go's
// keyword/constant-driven classification style for gate-toggle handling.
package quality

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentgov/core/internal/config"
	"github.com/agentgov/core/internal/logging"
	"github.com/agentgov/core/internal/trust"
)

// defaultTimeout bounds every subprocess call this service makes; none of
// these are named in spec.md section 4.6's reviewer-specific mode
// timeouts, so a single conservative budget is used uniformly.
const defaultTimeout = 5 * time.Minute

// languageByExt maps a file extension to the project-config.json command
// key that addresses it (spec.md section 4.4's "language auto-detected by
// file extension").
var languageByExt = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".rs":   "rust",
	".java": "java",
}

// DetectLanguage returns the project-config.json language key for path's
// extension, or "" if unrecognized.
func DetectLanguage(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// CheckResult is the uniform shape every operation in this service
// returns: never an exception across the service boundary (spec.md
// section 4.4's failure model).
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail"`
	Output  string `json:"output,omitempty"`
}

// Service is the C4 Quality Service.
type Service struct {
	cfg      *config.ProjectConfig
	trust    *trust.Engine
	workDir  string
	log      *logging.Logger
}

// New wires a Quality Service over project config, the shared Trust
// Engine (for get_trust_decision/record_dismissal), and the project's
// working directory (where subprocess tool commands run).
func New(cfg *config.ProjectConfig, trustEngine *trust.Engine, workDir string) *Service {
	return &Service{cfg: cfg, trust: trustEngine, workDir: workDir, log: logging.New("quality")}
}

// runCommand runs a shell command string (as configured in
// project-config.json's quality.*Commands maps) via "sh -c", in workDir,
// under defaultTimeout, returning combined output and a structured
// failure reason instead of raising.
func (s *Service) runCommand(ctx context.Context, command string) (output string, passed bool, detail string) {
	if command == "" {
		return "", true, "Skipped (disabled)"
	}

	runCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = s.workDir

	out, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return string(out), false, "timeout: command exceeded budget"
		}
		if _, ok := err.(*exec.ExitError); ok {
			return string(out), false, "tool_failed: command exited non-zero: " + err.Error()
		}
		return string(out), false, "tool_missing: " + err.Error()
	}
	return string(out), true, "passed"
}

// AutoFormat implements spec.md section 4.4's auto_format.
func (s *Service) AutoFormat(ctx context.Context, language string) CheckResult {
	cmd := s.cfg.Quality.FormatCommands[language]
	out, passed, detail := s.runCommand(ctx, cmd)
	return CheckResult{Name: "format", Passed: passed, Detail: detail, Output: out}
}

// RunLint implements spec.md section 4.4's run_lint.
func (s *Service) RunLint(ctx context.Context, language string) CheckResult {
	cmd := s.cfg.Quality.LintCommands[language]
	out, passed, detail := s.runCommand(ctx, cmd)
	return CheckResult{Name: "lint", Passed: passed, Detail: detail, Output: out}
}

// RunTests implements spec.md section 4.4's run_tests.
func (s *Service) RunTests(ctx context.Context, language string) CheckResult {
	cmd := s.cfg.Quality.TestCommands[language]
	out, passed, detail := s.runCommand(ctx, cmd)
	return CheckResult{Name: "tests", Passed: passed, Detail: detail, Output: out}
}

// runBuild is the fifth gate's command source; spec.md section 6 groups
// build alongside test/lint/format under quality.buildCommands.
func (s *Service) runBuild(ctx context.Context, language string) CheckResult {
	cmd := s.cfg.Quality.BuildCommands[language]
	out, passed, detail := s.runCommand(ctx, cmd)
	return CheckResult{Name: "build", Passed: passed, Detail: detail, Output: out}
}

// CheckCoverage implements spec.md section 4.4's check_coverage: runs the
// configured test command (coverage-instrumented commands are the
// operator's responsibility to configure) and compares a best-effort
// percentage parse of its output against settings.coverageThreshold.
func (s *Service) CheckCoverage(ctx context.Context, language string) CheckResult {
	cmd := s.cfg.Quality.TestCommands[language]
	if cmd == "" {
		return CheckResult{Name: "coverage", Passed: true, Detail: "Skipped (disabled)"}
	}
	out, passed, detail := s.runCommand(ctx, cmd)
	if !passed {
		return CheckResult{Name: "coverage", Passed: false, Detail: detail, Output: out}
	}
	pct, found := parseCoveragePercent(out)
	if !found {
		return CheckResult{Name: "coverage", Passed: false, Detail: "parse_failure: no coverage percentage found in tool output", Output: out}
	}
	if pct < s.cfg.Settings.CoverageThreshold {
		return CheckResult{
			Name: "coverage", Passed: false,
			Detail: formatCoverageDetail(pct, s.cfg.Settings.CoverageThreshold, false),
			Output: out,
		}
	}
	return CheckResult{Name: "coverage", Passed: true, Detail: formatCoverageDetail(pct, s.cfg.Settings.CoverageThreshold, true), Output: out}
}

// AllGatesResult is the return shape of CheckAllGates.
type AllGatesResult struct {
	Build     CheckResult `json:"build"`
	Lint      CheckResult `json:"lint"`
	Tests     CheckResult `json:"tests"`
	Coverage  CheckResult `json:"coverage"`
	Findings  CheckResult `json:"findings"`
	AllPassed bool        `json:"all_passed"`
}

// CheckAllGates implements spec.md section 4.4's check_all_gates: five
// gate results, each individually togglable via project-config.json's
// settings.qualityGates, a disabled gate always passing with "Skipped
// (disabled)".
func (s *Service) CheckAllGates(ctx context.Context, language string) AllGatesResult {
	gates := s.cfg.Settings.QualityGates

	build := s.gateOr(gates.Build, "build", func() CheckResult { return s.runBuild(ctx, language) })
	lint := s.gateOr(gates.Lint, "lint", func() CheckResult { return s.RunLint(ctx, language) })
	tests := s.gateOr(gates.Tests, "tests", func() CheckResult { return s.RunTests(ctx, language) })
	coverage := s.gateOr(gates.Coverage, "coverage", func() CheckResult { return s.CheckCoverage(ctx, language) })
	findings := s.gateOr(gates.Findings, "findings", func() CheckResult { return s.findingsGate() })

	all := build.Passed && lint.Passed && tests.Passed && coverage.Passed && findings.Passed
	return AllGatesResult{Build: build, Lint: lint, Tests: tests, Coverage: coverage, Findings: findings, AllPassed: all}
}

func (s *Service) gateOr(enabled bool, name string, run func() CheckResult) CheckResult {
	if !enabled {
		return CheckResult{Name: name, Passed: true, Detail: "Skipped (disabled)"}
	}
	return run()
}

// findingsGate passes only when every open finding the Trust Engine
// tracks currently classifies as TRACK or is otherwise non-blocking;
// spec.md section 4.4 ties the findings gate to the ledger C3 keeps.
func (s *Service) findingsGate() CheckResult {
	if s.trust == nil {
		return CheckResult{Name: "findings", Passed: true, Detail: "Skipped (disabled)"}
	}
	open, err := s.trust.OpenFindingIDs()
	if err != nil {
		return CheckResult{Name: "findings", Passed: false, Detail: "tool_failed: " + err.Error()}
	}
	if len(open) == 0 {
		return CheckResult{Name: "findings", Passed: true, Detail: "no open findings"}
	}
	var blocking []string
	for _, id := range open {
		decision, err := s.trust.GetTrustDecision(id)
		if err != nil {
			return CheckResult{Name: "findings", Passed: false, Detail: "tool_failed: " + err.Error()}
		}
		if decision.Decision == trust.DecisionBlock {
			blocking = append(blocking, id)
		}
	}
	if len(blocking) > 0 {
		return CheckResult{Name: "findings", Passed: false, Detail: strings.Join(blocking, ", ") + " blocking open findings"}
	}
	return CheckResult{Name: "findings", Passed: true, Detail: "all open findings classify non-blocking"}
}

// Validate implements spec.md section 4.4's validate: runs lint+tests for
// the given language and reports a combined pass/fail, the lightweight
// counterpart to CheckAllGates used outside the five-gate ceremony.
func (s *Service) Validate(ctx context.Context, language string) CheckResult {
	lint := s.RunLint(ctx, language)
	if !lint.Passed {
		return CheckResult{Name: "validate", Passed: false, Detail: "lint: " + lint.Detail}
	}
	tests := s.RunTests(ctx, language)
	if !tests.Passed {
		return CheckResult{Name: "validate", Passed: false, Detail: "tests: " + tests.Detail}
	}
	return CheckResult{Name: "validate", Passed: true, Detail: "lint and tests passed"}
}

// GetTrustDecision and RecordDismissal delegate to the shared C3 Trust
// Engine (spec.md section 4.4 lists both as Quality Service operations
// that simply forward to C3).
func (s *Service) GetTrustDecision(findingID string) (trust.TrustDecision, error) {
	return s.trust.GetTrustDecision(findingID)
}

func (s *Service) RecordDismissal(findingID, justification, dismissedBy string) (trust.DismissalResult, error) {
	return s.trust.RecordDismissal(findingID, justification, dismissedBy)
}
