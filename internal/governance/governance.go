package governance

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentgov/core/internal/git"
	"github.com/agentgov/core/internal/logging"
	"github.com/agentgov/core/internal/memory"
	"github.com/agentgov/core/internal/notify"
	"github.com/agentgov/core/internal/relstore"
	"github.com/agentgov/core/internal/reviewer"
	"github.com/agentgov/core/internal/tasks"
)

//go:embed schema.sql
var schemaSQL string

// Service is the C7 Governance Service.
type Service struct {
	db       *relstore.DB
	tasks    *tasks.Registry
	reviewer *reviewer.Driver
	mem      *memory.Service
	graphPath string
	log      *logging.Logger
	notifier *notify.Notifier
	repo     *git.Repo
}

// SetRepo attaches a git working tree used to auto-detect filesChanged
// for submit_completion_review when the calling agent doesn't supply its
// own list (SPEC_FULL.md section 3's supplemented completion-review
// convenience).
func (s *Service) SetRepo(r *git.Repo) { s.repo = r }

// SetNotifier attaches a desktop-toast notifier (SPEC_FULL.md section 3's
// supplemented operator-visibility UX) that fires on orphan pairs and
// needs_human_review verdicts. Best-effort: notification failures (e.g.
// off-Windows, where toasts are unsupported) are logged, never returned
// to the caller, since they must never affect the governance outcome
// itself.
func (s *Service) SetNotifier(n *notify.Notifier) { s.notifier = n }

func (s *Service) notifyOrphanPair(implTaskID, reviewTaskID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOrphanPair(implTaskID, reviewTaskID); err != nil {
		s.log.Infof("orphan-pair notification not delivered: %v", err)
	}
}

func (s *Service) notifyNeedsHumanReview(taskID, guidance string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyNeedsHumanReview(taskID, guidance); err != nil {
		s.log.Infof("needs-human-review notification not delivered: %v", err)
	}
}

// New wires a Governance Service over its relational store, the shared
// Task Registry, the AI Reviewer driver, and the Memory Service (for
// decision-mirroring, spec.md section 4.7's submit_decision).
func New(db *relstore.DB, reg *tasks.Registry, rev *reviewer.Driver, mem *memory.Service, graphPath string) *Service {
	return &Service{db: db, tasks: reg, reviewer: rev, mem: mem, graphPath: graphPath, log: logging.New("governance")}
}

// Open opens the governance relational store at path and wires a Service.
func Open(path string, reg *tasks.Registry, rev *reviewer.Driver, mem *memory.Service, graphPath string) (*Service, error) {
	db, err := relstore.Open(path, schemaSQL)
	if err != nil {
		return nil, err
	}
	return New(db, reg, rev, mem, graphPath), nil
}

// Close releases the underlying store.
func (s *Service) Close() error { return s.db.Close() }

func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func unmarshalList(raw string) []string {
	var out []string
	json.Unmarshal([]byte(raw), &out)
	return out
}

// nextSequence returns the next per-task decision sequence, assigned
// under the store's own serialization (spec.md section 3's Decision
// invariant: sequence strictly increases per task).
func (s *Service) nextSequence(tx *sql.Tx, taskID string) (int, error) {
	var max sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(sequence) FROM decisions WHERE task_id = ?`, taskID).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// SubmitDecisionInput bundles spec.md section 4.7's submit_decision params.
type SubmitDecisionInput struct {
	TaskID       string
	Agent        string
	Category     string
	Summary      string
	Detail       string
	Components   []string
	Alternatives []string
	Confidence   float64
}

// SubmitDecision implements spec.md section 4.7's submit_decision.
func (s *Service) SubmitDecision(ctx context.Context, in SubmitDecisionInput) (reviewer.Verdict, error) {
	decisionID := uuid.NewString()
	now := time.Now()

	var seq int
	err := s.db.WithTx(func(tx *sql.Tx) error {
		var err error
		seq, err = s.nextSequence(tx, in.TaskID)
		if err != nil {
			return fmt.Errorf("computing decision sequence: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO decisions (id, task_id, sequence, agent, category, summary, detail, components_affected, alternatives, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, decisionID, in.TaskID, seq, in.Agent, in.Category, in.Summary, in.Detail,
			marshalList(in.Components), marshalList(in.Alternatives), in.Confidence, now)
		if err != nil {
			return fmt.Errorf("inserting decision: %w", err)
		}
		return nil
	})
	if err != nil {
		return reviewer.Verdict{}, err
	}

	if bypassesReview(in.Category) {
		v := reviewer.Verdict{
			ID:       uuid.NewString(),
			Verdict:  reviewer.VerdictNeedsHumanReview,
			Guidance: fmt.Sprintf("category %q bypasses automated review", in.Category),
		}
		if err := s.persistReview(v, decisionID, "", "governance:bypass"); err != nil {
			return reviewer.Verdict{}, err
		}
		return v, nil
	}

	standards, err := reviewer.LoadStandards(s.graphPath)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	prompt := reviewer.BuildDecisionPrompt(reviewer.DecisionInput{
		TaskID: in.TaskID, Agent: in.Agent, Category: in.Category, Summary: in.Summary,
		Detail: in.Detail, Components: in.Components, Alternatives: in.Alternatives, Confidence: in.Confidence,
	}, standards)

	v, err := s.reviewer.ReviewDecision(ctx, prompt)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	if err := s.persistReview(v, decisionID, "", "reviewer"); err != nil {
		return reviewer.Verdict{}, err
	}
	if err := s.mirrorDecisionToMemory(in, v); err != nil {
		s.log.Warnf("mirroring decision %s to memory failed: %v", decisionID, err)
	}
	return v, nil
}

func (s *Service) persistReview(v reviewer.Verdict, decisionID, planID, reviewerName string) error {
	_, err := s.db.Exec(`
		INSERT INTO reviews (id, decision_id, plan_id, verdict, findings, guidance, standards_verified, reviewer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, relstore.NullString(decisionID), relstore.NullString(planID), v.Verdict,
		marshalList(v.Findings), v.Guidance, marshalList(v.StandardsVerified), reviewerName, time.Now())
	if err != nil {
		return fmt.Errorf("persisting review: %w", err)
	}
	return nil
}

// mirrorDecisionToMemory persists the decision as a solution_pattern
// entity with the verdict as an observation (spec.md section 4.7's
// submit_decision: "mirror the decision as a solution_pattern entity
// into C2 with the verdict as an observation").
func (s *Service) mirrorDecisionToMemory(in SubmitDecisionInput, v reviewer.Verdict) error {
	if s.mem == nil {
		return nil
	}
	name := fmt.Sprintf("decision_%s_%s", in.TaskID, in.Agent)
	_, err := s.mem.CreateEntities([]memory.Entity{{
		Name:       name,
		EntityType: memory.EntitySolutionPattern,
		Observations: []string{
			"protection_tier: quality",
			"summary: " + in.Summary,
			"verdict: " + v.Verdict,
		},
	}}, false)
	return err
}

// SubmitPlanForReview implements spec.md section 4.7's
// submit_plan_for_review: analogous to SubmitDecision but always invokes
// the reviewer in plan mode with every prior decision/verdict for the task.
func (s *Service) SubmitPlanForReview(ctx context.Context, taskID, subject, description string) (reviewer.Verdict, error) {
	decisions, err := s.GetDecisionHistory(taskID)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	verdicts, err := s.verdictsForTask(decisions)
	if err != nil {
		return reviewer.Verdict{}, err
	}

	standards, err := reviewer.LoadStandards(s.graphPath)
	if err != nil {
		return reviewer.Verdict{}, err
	}

	var priorDecisions []reviewer.DecisionInput
	for _, d := range decisions {
		priorDecisions = append(priorDecisions, reviewer.DecisionInput{
			TaskID: d.TaskID, Agent: d.Agent, Category: d.Category, Summary: d.Summary, Detail: d.Detail,
		})
	}
	prompt := reviewer.BuildPlanPrompt(reviewer.PlanInput{
		TaskID: taskID, Subject: subject, Description: description,
		PriorDecisions: priorDecisions, PriorVerdicts: verdicts,
	}, standards)

	planID := uuid.NewString()
	v, err := s.reviewer.ReviewPlan(ctx, prompt)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	if err := s.persistReview(v, "", planID, "reviewer"); err != nil {
		return reviewer.Verdict{}, err
	}
	return v, nil
}

// ReviewCollectivePlan invokes C6 in plan mode directly against a
// pre-built prompt (spec.md section 4.10 step 4's settle-worker
// collective review), persisting the verdict under a synthetic
// "<session>:collective" plan id rather than any single task's decision
// history.
func (s *Service) ReviewCollectivePlan(ctx context.Context, sessionID, prompt string) (reviewer.Verdict, error) {
	v, err := s.reviewer.ReviewPlan(ctx, prompt)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	if err := s.persistReview(v, "", sessionID+":collective", "reviewer"); err != nil {
		return reviewer.Verdict{}, err
	}
	return v, nil
}

// verdictsForTask loads every review row linked to any of the given
// decisions.
func (s *Service) verdictsForTask(decisions []Decision) ([]reviewer.Verdict, error) {
	var out []reviewer.Verdict
	for _, d := range decisions {
		rows, err := s.db.Query(`SELECT id, verdict, guidance FROM reviews WHERE decision_id = ? ORDER BY created_at ASC`, d.ID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var v reviewer.Verdict
			if err := rows.Scan(&v.ID, &v.Verdict, &v.Guidance); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, v)
		}
		rows.Close()
	}
	return out, nil
}

// SubmitCompletionReview implements spec.md section 4.7's
// submit_completion_review, including the automatic-block completion
// guard (P11): blocks if any decision has no verdict, or any verdict is
// blocked with no superseding approved verdict.
func (s *Service) SubmitCompletionReview(ctx context.Context, taskID, workSummary string, filesChanged []string) (reviewer.Verdict, error) {
	if len(filesChanged) == 0 && s.repo != nil {
		if detected, err := s.repo.ChangedFiles(); err != nil {
			s.log.Warnf("auto-detecting changed files: %v", err)
		} else {
			filesChanged = detected
		}
	}

	decisions, err := s.GetDecisionHistory(taskID)
	if err != nil {
		return reviewer.Verdict{}, err
	}

	for _, d := range decisions {
		verdicts, err := s.verdictsForDecision(d.ID)
		if err != nil {
			return reviewer.Verdict{}, err
		}
		if len(verdicts) == 0 {
			return reviewer.Verdict{
				ID: uuid.NewString(), Verdict: reviewer.VerdictBlocked,
				Guidance: fmt.Sprintf("decision %s has no verdict yet", d.ID),
			}, nil
		}
		if hasUnresolvedBlock(verdicts) {
			return reviewer.Verdict{
				ID: uuid.NewString(), Verdict: reviewer.VerdictBlocked,
				Guidance: fmt.Sprintf("decision %s has an unresolved blocked verdict", d.ID),
			}, nil
		}
	}

	standards, err := reviewer.LoadStandards(s.graphPath)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	allVerdicts, err := s.verdictsForTask(decisions)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	var decisionInputs []reviewer.DecisionInput
	for _, d := range decisions {
		decisionInputs = append(decisionInputs, reviewer.DecisionInput{
			TaskID: d.TaskID, Agent: d.Agent, Category: d.Category, Summary: d.Summary,
		})
	}
	prompt := reviewer.BuildCompletionPrompt(reviewer.CompletionInput{
		TaskID: taskID, WorkSummary: workSummary, FilesChanged: filesChanged,
		AllDecisions: decisionInputs, AllVerdicts: allVerdicts,
	}, standards)

	v, err := s.reviewer.ReviewCompletion(ctx, prompt)
	if err != nil {
		return reviewer.Verdict{}, err
	}
	if err := s.persistReview(v, "", taskID+":completion", "reviewer"); err != nil {
		return reviewer.Verdict{}, err
	}
	return v, nil
}

func (s *Service) verdictsForDecision(decisionID string) ([]reviewer.Verdict, error) {
	rows, err := s.db.Query(`SELECT id, verdict, guidance FROM reviews WHERE decision_id = ? ORDER BY created_at ASC`, decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reviewer.Verdict
	for rows.Next() {
		var v reviewer.Verdict
		if err := rows.Scan(&v.ID, &v.Verdict, &v.Guidance); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// hasUnresolvedBlock reports whether a decision has a "blocked" verdict
// with no later "approved" verdict superseding it (needs_human_review
// verdicts neither block nor supersede).
func hasUnresolvedBlock(verdicts []reviewer.Verdict) bool {
	for i := len(verdicts) - 1; i >= 0; i-- {
		switch verdicts[i].Verdict {
		case reviewer.VerdictApproved:
			return false
		case reviewer.VerdictBlocked:
			return true
		}
	}
	return false
}

// GetDecisionHistory implements spec.md section 4.7's get_decision_history.
func (s *Service) GetDecisionHistory(taskID string) ([]Decision, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, sequence, agent, category, summary, detail, components_affected, alternatives, confidence, created_at
		FROM decisions WHERE task_id = ? ORDER BY sequence ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying decision history: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var components, alternatives string
		var createdAt time.Time
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Sequence, &d.Agent, &d.Category, &d.Summary, &d.Detail,
			&components, &alternatives, &d.Confidence, &createdAt); err != nil {
			return nil, err
		}
		d.Components = unmarshalList(components)
		d.Alternatives = unmarshalList(alternatives)
		d.CreatedAt = createdAt.Format(time.RFC3339)
		out = append(out, d)
	}
	return out, rows.Err()
}
