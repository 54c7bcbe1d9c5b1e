// Command settle-worker is the C10 settle-check worker: forked by the
// interception hook (cmd/task-intercept-hook) as a detached background
// process per session burst, sleeping out the settle interval before
// deciding whether it is the last of its siblings and, if so, running
// the collective plan review (spec.md section 4.10).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agentgov/core/internal/config"
	"github.com/agentgov/core/internal/governance"
	"github.com/agentgov/core/internal/memory"
	"github.com/agentgov/core/internal/notify"
	"github.com/agentgov/core/internal/reviewer"
	"github.com/agentgov/core/internal/settle"
	"github.com/agentgov/core/internal/tasks"
)

func main() {
	taskDir := flag.String("tasks", "data/tasks", "Path to the task registry directory")
	govDBPath := flag.String("db", "data/governance.db", "Path to the governance relational store")
	graphPath := flag.String("graph", "data/memory.jsonl", "Path to the memory graph JSONL file")
	reviewerBinary := flag.String("reviewer-binary", "claude", "Path to the external reviewer binary")
	reviewerConfigPath := flag.String("reviewer-config", "configs/reviewer.yaml", "Optional YAML override of the reviewer binary and model")
	flagDir := flag.String("flag-dir", ".", "Directory holding holistic-review-pending flag files")
	sessionID := flag.String("session", "", "Session id this worker debounces for")
	anchorStr := flag.String("anchor", "", "RFC3339Nano wake-up anchor timestamp (defaults to now)")
	settleIntervalMS := flag.Int("settle-interval-ms", 0, "Override SETTLE_INTERVAL_MS for this invocation")
	minTasks := flag.Int("min-tasks", 0, "Override MIN_TASKS_FOR_REVIEW for this invocation")
	flag.Parse()

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "settle-worker: -session is required")
		os.Exit(1)
	}

	anchor := time.Now()
	if *anchorStr != "" {
		parsed, err := time.Parse(time.RFC3339Nano, *anchorStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "settle-worker: parsing -anchor: %v\n", err)
			os.Exit(1)
		}
		anchor = parsed
	}

	env := config.LoadEnv()
	interval := time.Duration(env.SettleIntervalMS) * time.Millisecond
	if *settleIntervalMS > 0 {
		interval = time.Duration(*settleIntervalMS) * time.Millisecond
	}
	min := env.MinTasksForReview
	if *minTasks > 0 {
		min = *minTasks
	}

	reg, err := tasks.Open(*taskDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settle-worker: opening task registry: %v\n", err)
		os.Exit(1)
	}

	mem, err := memory.Open(*graphPath, 500)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settle-worker: opening memory graph: %v\n", err)
		os.Exit(1)
	}
	defer mem.Close()

	reviewerCfg, err := config.LoadReviewerConfig(*reviewerConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settle-worker: loading reviewer config: %v\n", err)
		os.Exit(1)
	}
	if reviewerCfg.Binary != "" {
		*reviewerBinary = reviewerCfg.Binary
	}

	rev := reviewer.New(*reviewerBinary, env.MockReview).WithModel(reviewerCfg.Model)

	gov, err := governance.Open(*govDBPath, reg, rev, mem, *graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settle-worker: opening governance store: %v\n", err)
		os.Exit(1)
	}
	defer gov.Close()
	gov.SetNotifier(notify.New(""))

	worker := settle.New(settle.Config{
		SessionID:         *sessionID,
		FlagDir:           *flagDir,
		SettleInterval:    interval,
		MinTasksForReview: min,
		WakeupAnchor:      anchor,
	}, reg, gov)

	if err := worker.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "settle-worker: %v\n", err)
		os.Exit(1)
	}
}
