// Command task-intercept-hook is the C8 interception hook: a short-lived
// process the host coding-agent runtime invokes synchronously on a
// task-created event, pairing every newly created implementation task
// with a governance review blocker before any work on it can begin
// (spec.md section 4.8).
//
// Grounded on cmd/governanced/main.go's store-wiring shape, with the
// long-lived stdio JSON-RPC loop (internal/rpc) swapped for a single
// stdin-to-stdout round trip per spec.md section 6's hook CLI contract,
// and on internal/captain/supervisor.go's exec.Command(...).Start()
// (without Wait) fork-and-forget idiom for detaching the settle-check
// worker (C10) from this process's own lifetime (spec.md section 4.8
// step 5 / section 5's "decoupled... by an explicit detach").
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/agentgov/core/internal/config"
	"github.com/agentgov/core/internal/governance"
	"github.com/agentgov/core/internal/hookenv"
	"github.com/agentgov/core/internal/logging"
	"github.com/agentgov/core/internal/memory"
	"github.com/agentgov/core/internal/notify"
	"github.com/agentgov/core/internal/reviewer"
	"github.com/agentgov/core/internal/tasks"
)

func main() {
	taskDir := flag.String("tasks", "data/tasks", "Path to the task registry directory")
	govDBPath := flag.String("db", "data/governance.db", "Path to the governance relational store")
	graphPath := flag.String("graph", "data/memory.jsonl", "Path to the memory graph JSONL file")
	reviewerBinary := flag.String("reviewer-binary", "claude", "Path to the external reviewer binary")
	reviewerConfigPath := flag.String("reviewer-config", "configs/reviewer.yaml", "Optional YAML override of the reviewer binary and model")
	flagDir := flag.String("flag-dir", ".", "Directory holding holistic-review-pending flag files")
	settleWorkerBinary := flag.String("settle-worker-binary", "", "Path to the settle-worker binary (default: sibling of this binary)")
	flag.Parse()

	log := logging.New("task-intercept-hook")

	env, err := hookenv.ReadInterceptEnvelope(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "task-intercept-hook: %v\n", err)
		os.Exit(1)
	}

	subject, err := env.Subject()
	if err != nil {
		fmt.Fprintf(os.Stderr, "task-intercept-hook: %v\n", err)
		os.Exit(1)
	}

	// Step 2: short-circuit on a reserved prefix to prevent the hook from
	// pairing a review task it creates with another review (spec.md
	// section 4.8 step 2).
	if subject == "" || hookenv.HasReservedPrefix(subject) {
		hookenv.WriteResponse(hookenv.InterceptResponse{})
		os.Exit(0)
	}

	reg, err := tasks.Open(*taskDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "task-intercept-hook: opening task registry: %v\n", err)
		os.Exit(1)
	}

	mem, err := memory.Open(*graphPath, 500)
	if err != nil {
		fmt.Fprintf(os.Stderr, "task-intercept-hook: opening memory graph: %v\n", err)
		os.Exit(1)
	}
	defer mem.Close()

	reviewerCfg, err := config.LoadReviewerConfig(*reviewerConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "task-intercept-hook: loading reviewer config: %v\n", err)
		os.Exit(1)
	}
	if reviewerCfg.Binary != "" {
		*reviewerBinary = reviewerCfg.Binary
	}

	rev := reviewer.New(*reviewerBinary, config.LoadEnv().MockReview).WithModel(reviewerCfg.Model)

	gov, err := governance.Open(*govDBPath, reg, rev, mem, *graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "task-intercept-hook: opening governance store: %v\n", err)
		os.Exit(1)
	}
	defer gov.Close()
	gov.SetNotifier(notify.New(""))

	// Steps 3-4: discover the new task, pair it with a governance review
	// blocker. Invariant (spec.md section 4.8): any failure here must
	// never silently leave the task unblocked; InterceptNewTask's own
	// error paths tombstone the orphaned review task and, if the blocker
	// never got stacked, stack a sentinel blocker in its place so the impl
	// task stays blocked-from-birth either way. A total failure to even
	// find the task is logged for an operator to resolve rather than
	// retried inside the hook's tight time budget.
	implTaskID, reviewTaskID, err := gov.InterceptNewTask(subject, env.SessionID, "intercepted by task-intercept-hook")
	if err != nil {
		log.Warnf("pairing failed for subject %q: %v", subject, err)
		fmt.Fprintf(os.Stderr, "task-intercept-hook: orphan_pair: %v\n", err)
		// Non-zero exit tells the host runtime this is an operator
		// situation; the work-gating hook (C9) has nothing to key off of
		// here (no flag was written), so the operator must act on this
		// diagnostic directly.
		os.Exit(1)
	}

	// Step 5: touch the session's holistic-review flag and fork the
	// settle-check worker, detached from this process's own lifetime.
	flagPath := hookenv.FlagFilePath(*flagDir, env.SessionID)
	if err := hookenv.WriteFlagFile(flagPath, hookenv.FlagPending, ""); err != nil {
		log.Warnf("writing holistic-review flag: %v", err)
	}

	if err := spawnSettleWorker(*settleWorkerBinary, *taskDir, *govDBPath, *graphPath, *reviewerBinary, *flagDir, env.SessionID); err != nil {
		log.Warnf("forking settle-check worker: %v", err)
	}

	// Step 6: emit a non-blocking context addendum.
	hookenv.WriteResponse(hookenv.InterceptResponse{
		Context: fmt.Sprintf("Governance review %s created; task %s is blocked pending review.", reviewTaskID, implTaskID),
	})
	os.Exit(0)
}

// spawnSettleWorker launches the C10 settle-check worker as a detached
// background process and returns immediately without waiting for it
// (spec.md section 4.8 step 5 / section 5's detach requirement).
func spawnSettleWorker(binary, taskDir, govDBPath, graphPath, reviewerBinary, flagDir, sessionID string) error {
	if sessionID == "" {
		return nil // nothing to debounce without a session to scope it to
	}
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving sibling settle-worker path: %w", err)
		}
		binary = filepath.Join(filepath.Dir(self), "settle-worker")
	}

	cmd := exec.Command(binary,
		"-tasks", taskDir,
		"-db", govDBPath,
		"-graph", graphPath,
		"-reviewer-binary", reviewerBinary,
		"-flag-dir", flagDir,
		"-session", sessionID,
		"-anchor", time.Now().Format(time.RFC3339Nano),
	)
	detach(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting settle-worker: %w", err)
	}
	// Deliberately not Wait()-ed: the worker outlives this hook process
	// (spec.md section 5's "decoupled... by an explicit detach").
	return nil
}
