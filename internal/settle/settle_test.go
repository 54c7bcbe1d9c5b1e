package settle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentgov/core/internal/governance"
	"github.com/agentgov/core/internal/hookenv"
	"github.com/agentgov/core/internal/memory"
	"github.com/agentgov/core/internal/reviewer"
	"github.com/agentgov/core/internal/tasks"
)

func newTestWorker(t *testing.T, minTasks int) (*Worker, *tasks.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := tasks.Open(filepath.Join(dir, "tasks"))
	if err != nil {
		t.Fatal(err)
	}
	mem, err := memory.Open(filepath.Join(dir, "graph.jsonl"), 1000)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mem.Close() })
	rev := reviewer.New("", true) // mock mode: always approved
	gov, err := governance.Open(filepath.Join(dir, "gov.db"), reg, rev, mem, filepath.Join(dir, "graph.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { gov.Close() })

	cfg := Config{
		SessionID:         "session-1",
		FlagDir:           dir,
		SettleInterval:    10 * time.Millisecond,
		MinTasksForReview: minTasks,
		WakeupAnchor:      time.Now(),
	}
	return New(cfg, reg, gov), reg, dir
}

func TestBelowThresholdClearsFlag(t *testing.T) {
	w, reg, dir := newTestWorker(t, 2)
	flagPath := hookenv.FlagFilePath(dir, "session-1")
	if err := hookenv.WriteFlagFile(flagPath, hookenv.FlagPending, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.CreateTask(tasks.Task{ID: "t1", Subject: "only task", SessionID: "session-1"}); err != nil {
		t.Fatal(err)
	}
	w.cfg.WakeupAnchor = time.Now() // the worker wakes after the task that spawned it

	if err := w.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(flagPath); !os.IsNotExist(err) {
		t.Fatal("expected flag cleared when below MIN_TASKS_FOR_REVIEW")
	}
}

func TestApprovedCollectivePlanClearsFlag(t *testing.T) {
	w, reg, dir := newTestWorker(t, 2)
	flagPath := hookenv.FlagFilePath(dir, "session-1")
	if err := hookenv.WriteFlagFile(flagPath, hookenv.FlagPending, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.CreateTask(tasks.Task{ID: "t1", Subject: "task one", SessionID: "session-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.CreateTask(tasks.Task{ID: "t2", Subject: "task two", SessionID: "session-1"}); err != nil {
		t.Fatal(err)
	}
	w.cfg.WakeupAnchor = time.Now() // the worker wakes after the last task of the burst

	if err := w.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(flagPath); !os.IsNotExist(err) {
		t.Fatal("expected flag cleared after mock-mode approved collective review")
	}
}

func TestSupersededByNewerSiblingDefers(t *testing.T) {
	w, reg, dir := newTestWorker(t, 1)
	w.cfg.WakeupAnchor = time.Now().Add(-time.Hour)
	flagPath := hookenv.FlagFilePath(dir, "session-1")
	if err := hookenv.WriteFlagFile(flagPath, hookenv.FlagPending, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.CreateTask(tasks.Task{ID: "t1", Subject: "newer task", SessionID: "session-1"}); err != nil {
		t.Fatal(err)
	}

	if err := w.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(flagPath); err != nil {
		t.Fatal("expected superseded worker to leave the flag untouched")
	}
}
