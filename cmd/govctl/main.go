// Command govctl is a read-only inspection CLI over the governance
// relational store, letting an operator list decisions, reviews, governed
// tasks, and the agent leaderboard without writing SQL by hand.
//
// Grounded on cmd/dbctl/main.go's action-flag dispatch (-action selects
// the query, -json switches between a human-readable and a
// json.NewEncoder(os.Stdout).Encode machine-readable form).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/agentgov/core/internal/governance"
	"github.com/agentgov/core/internal/memory"
	"github.com/agentgov/core/internal/reviewer"
	"github.com/agentgov/core/internal/tasks"
)

func main() {
	govDBPath := flag.String("db", "data/governance.db", "Path to the governance relational store")
	taskDir := flag.String("tasks", "data/tasks", "Path to the task registry directory")
	graphPath := flag.String("graph", "data/memory.jsonl", "Path to the memory graph JSONL file")
	action := flag.String("action", "", "Action: status, pending, leaderboard, history, task-status")
	taskID := flag.String("task", "", "Task id, required by -action history and -action task-status")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *action == "" {
		fmt.Fprintln(os.Stderr, "Usage: govctl -db <path> -action <status|pending|leaderboard|history|task-status> [-task <id>] [-json]")
		os.Exit(1)
	}

	reg, err := tasks.Open(*taskDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "govctl: opening task registry: %v\n", err)
		os.Exit(1)
	}

	mem, err := memory.Open(*graphPath, 500)
	if err != nil {
		fmt.Fprintf(os.Stderr, "govctl: opening memory graph: %v\n", err)
		os.Exit(1)
	}
	defer mem.Close()

	// govctl never submits reviews, so the reviewer driver is always mocked:
	// nothing here ever spawns the external reviewer binary.
	rev := reviewer.New("", true)

	svc, err := governance.Open(*govDBPath, reg, rev, mem, *graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "govctl: opening governance store: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	var result interface{}
	switch *action {
	case "status":
		result, err = svc.GetGovernanceStatus()
	case "pending":
		result, err = svc.GetPendingReviews()
	case "leaderboard":
		result, err = svc.AgentLeaderboard()
	case "history":
		if *taskID == "" {
			fmt.Fprintln(os.Stderr, "govctl: -action history requires -task")
			os.Exit(1)
		}
		result, err = svc.GetDecisionHistory(*taskID)
	case "task-status":
		if *taskID == "" {
			fmt.Fprintln(os.Stderr, "govctl: -action task-status requires -task")
			os.Exit(1)
		}
		result, err = svc.GetTaskReviewStatus(*taskID)
	default:
		fmt.Fprintf(os.Stderr, "govctl: unknown action %q\n", *action)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "govctl: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "govctl: encoding result: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("%+v\n", result)
}
