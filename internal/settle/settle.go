// Package settle implements the C10 settle-check worker: a debounced,
// collective plan review that runs once a burst of task creations within
// one session quiets down.
//
// Grounded on internal/captain/supervisor.go's spawn-then-monitor
// process lifecycle (a background goroutine/process that sleeps, checks
// a condition, and either proceeds or defers to a newer instance) and on
// internal/tasks' own per-session task query surface.
package settle

import (
	"context"
	"fmt"
	"time"

	"github.com/agentgov/core/internal/governance"
	"github.com/agentgov/core/internal/hookenv"
	"github.com/agentgov/core/internal/logging"
	"github.com/agentgov/core/internal/reviewer"
	"github.com/agentgov/core/internal/tasks"
)

// Config bundles the settle worker's tunables (spec.md section 6's
// recognized environment variables).
type Config struct {
	SessionID         string
	FlagDir           string
	SettleInterval    time.Duration
	MinTasksForReview int
	WakeupAnchor      time.Time
}

// Worker runs one settle-check pass (spec.md section 4.10).
type Worker struct {
	cfg   Config
	tasks *tasks.Registry
	gov   *governance.Service
	log   *logging.Logger
}

// New returns a settle-check Worker.
func New(cfg Config, reg *tasks.Registry, gov *governance.Service) *Worker {
	return &Worker{cfg: cfg, tasks: reg, gov: gov, log: logging.New("settle")}
}

// Run executes the full settle-check sequence: sleep, debounce-check,
// threshold-check, collective plan review, flag-file resolution. It
// blocks for the settle interval, so callers run it detached from any
// caller that must return promptly (spec.md section 4.8 step 5 / 4.10).
func (w *Worker) Run(ctx context.Context) error {
	time.Sleep(w.cfg.SettleInterval)

	flagPath := hookenv.FlagFilePath(w.cfg.FlagDir, w.cfg.SessionID)

	superseded, err := w.supersededByNewerSibling()
	if err != nil {
		return fmt.Errorf("checking for a superseding worker: %w", err)
	}
	if superseded {
		w.log.Infof("session %s: a newer settle worker exists, deferring", w.cfg.SessionID)
		return nil
	}

	sessionTasks, err := w.tasks.TasksForSession(w.cfg.SessionID)
	if err != nil {
		return fmt.Errorf("loading session tasks: %w", err)
	}
	if len(sessionTasks) < w.cfg.MinTasksForReview {
		w.log.Infof("session %s: %d task(s) below threshold %d, clearing flag", w.cfg.SessionID, len(sessionTasks), w.cfg.MinTasksForReview)
		return hookenv.ClearFlagFile(flagPath)
	}

	prompt := buildCollectivePrompt(sessionTasks)
	verdict, err := w.gov.ReviewCollectivePlan(ctx, w.cfg.SessionID, prompt)
	if err != nil {
		return fmt.Errorf("invoking plan review: %w", err)
	}

	switch verdict.Verdict {
	case reviewer.VerdictApproved:
		w.log.Infof("session %s: collective plan approved, clearing flag", w.cfg.SessionID)
		return hookenv.ClearFlagFile(flagPath)
	case reviewer.VerdictBlocked:
		w.log.Infof("session %s: collective plan blocked, marking revise", w.cfg.SessionID)
		return hookenv.WriteFlagFile(flagPath, hookenv.FlagRevise, verdict.Guidance)
	default:
		w.log.Infof("session %s: collective plan needs human review", w.cfg.SessionID)
		return hookenv.WriteFlagFile(flagPath, hookenv.FlagError, verdict.Guidance)
	}
}

// supersededByNewerSibling reports whether a task in this session was
// created after our wake-up anchor. This is the debounce mechanism: only
// the last checker in a burst proceeds (spec.md section 4.10 step 2).
func (w *Worker) supersededByNewerSibling() (bool, error) {
	sessionTasks, err := w.tasks.TasksForSession(w.cfg.SessionID)
	if err != nil {
		return false, err
	}
	for _, t := range sessionTasks {
		if t.CreatedAt.After(w.cfg.WakeupAnchor) {
			return true, nil
		}
	}
	return false, nil
}

// buildCollectivePrompt renders every session task's subject and
// description for the collective plan review (spec.md section 4.10 step 4).
func buildCollectivePrompt(sessionTasks []tasks.Task) string {
	prompt := "Collective plan review for a burst of related tasks:\n\n"
	for _, t := range sessionTasks {
		prompt += fmt.Sprintf("- %s: %s\n", t.Subject, t.Description)
	}
	return prompt
}
