// Command governanced runs the C7 Governance Service (wrapping the C6 AI
// Reviewer driver) as a long-lived stdio JSON-RPC process, following
// cmd/memoryd/main.go's shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/agentgov/core/internal/config"
	"github.com/agentgov/core/internal/git"
	"github.com/agentgov/core/internal/governance"
	"github.com/agentgov/core/internal/memory"
	"github.com/agentgov/core/internal/notify"
	"github.com/agentgov/core/internal/reviewer"
	"github.com/agentgov/core/internal/rpc"
	"github.com/agentgov/core/internal/tasks"
)

func main() {
	govDBPath := flag.String("db", "data/governance.db", "Path to the governance relational store")
	taskDir := flag.String("tasks", "data/tasks", "Path to the task registry directory")
	graphPath := flag.String("graph", "data/memory.jsonl", "Path to the memory graph JSONL file")
	reviewerBinary := flag.String("reviewer-binary", "claude", "Path to the external reviewer binary")
	reviewerConfigPath := flag.String("reviewer-config", "configs/reviewer.yaml", "Optional YAML override of the reviewer binary and model")
	notifyAppID := flag.String("notify-app-id", "agentgov", "AppID used for desktop toast notifications")
	repoPath := flag.String("repo", ".", "Path to the supervised git working tree")
	flag.Parse()

	env := config.LoadEnv()

	reviewerCfg, err := config.LoadReviewerConfig(*reviewerConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "governanced: failed to load reviewer config: %v\n", err)
		os.Exit(1)
	}
	if reviewerCfg.Binary != "" {
		*reviewerBinary = reviewerCfg.Binary
	}

	reg, err := tasks.Open(*taskDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "governanced: failed to open task registry: %v\n", err)
		os.Exit(1)
	}

	mem, err := memory.Open(*graphPath, 500)
	if err != nil {
		fmt.Fprintf(os.Stderr, "governanced: failed to open memory graph: %v\n", err)
		os.Exit(1)
	}
	defer mem.Close()

	rev := reviewer.New(*reviewerBinary, env.MockReview).WithModel(reviewerCfg.Model)

	svc, err := governance.Open(*govDBPath, reg, rev, mem, *graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "governanced: failed to open governance store: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()
	svc.SetNotifier(notify.New(*notifyAppID))
	svc.SetRepo(git.New(*repoPath))

	methods := map[string]rpc.Handler{
		"submit_decision":           handleSubmitDecision(svc),
		"submit_plan_for_review":    handleSubmitPlanForReview(svc),
		"submit_completion_review":  handleSubmitCompletionReview(svc),
		"create_governed_task":      handleCreateGovernedTask(svc),
		"add_review_blocker":        handleAddReviewBlocker(svc),
		"complete_task_review":      handleCompleteTaskReview(svc),
		"get_task_review_status":    handleGetTaskReviewStatus(svc),
		"get_pending_reviews":       handleGetPendingReviews(svc),
		"get_decision_history":      handleGetDecisionHistory(svc),
		"get_governance_status":     handleGetGovernanceStatus(svc),
		"get_agent_leaderboard":     handleGetAgentLeaderboard(svc),
	}

	if err := rpc.Serve(os.Stdin, os.Stdout, methods); err != nil {
		fmt.Fprintf(os.Stderr, "governanced: stdio transport terminated: %v\n", err)
		os.Exit(2)
	}
}

func handleSubmitDecision(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in governance.SubmitDecisionInput
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.SubmitDecision(context.Background(), in)
	}
}

func handleSubmitPlanForReview(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			TaskID      string `json:"task_id"`
			Subject     string `json:"subject"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.SubmitPlanForReview(context.Background(), in.TaskID, in.Subject, in.Description)
	}
}

func handleSubmitCompletionReview(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			TaskID       string   `json:"task_id"`
			WorkSummary  string   `json:"work_summary"`
			FilesChanged []string `json:"files_changed"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.SubmitCompletionReview(context.Background(), in.TaskID, in.WorkSummary, in.FilesChanged)
	}
}

func handleCreateGovernedTask(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Subject     string `json:"subject"`
			Description string `json:"description"`
			Context     string `json:"context"`
			ReviewType  string `json:"review_type"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.CreateGovernedTask(in.Subject, in.Description, in.Context, in.ReviewType)
	}
}

func handleAddReviewBlocker(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			ImplTaskID string `json:"impl_task_id"`
			ReviewType string `json:"review_type"`
			Context    string `json:"context"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		reviewTaskID, err := svc.AddReviewBlocker(in.ImplTaskID, in.ReviewType, in.Context)
		if err != nil {
			return nil, err
		}
		return map[string]string{"review_task_id": reviewTaskID}, nil
	}
}

func handleCompleteTaskReview(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			ReviewTaskID      string   `json:"review_task_id"`
			Verdict           string   `json:"verdict"`
			Guidance          string   `json:"guidance"`
			Findings          []string `json:"findings"`
			StandardsVerified []string `json:"standards_verified"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		if err := svc.CompleteTaskReview(in.ReviewTaskID, in.Verdict, in.Guidance, in.Findings, in.StandardsVerified); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}

func handleGetTaskReviewStatus(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			ImplTaskID string `json:"impl_task_id"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.GetTaskReviewStatus(in.ImplTaskID)
	}
}

func handleGetPendingReviews(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		return svc.GetPendingReviews()
	}
}

func handleGetDecisionHistory(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.GetDecisionHistory(in.TaskID)
	}
}

func handleGetGovernanceStatus(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		return svc.GetGovernanceStatus()
	}
}

func handleGetAgentLeaderboard(svc *governance.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		return svc.AgentLeaderboard()
	}
}
