// Package governance implements the C7 Governance Service: decision,
// plan, and completion review intake; governed-task pair creation;
// blocker stacking and release (spec.md section 4.7).
//
// Grounded on internal/memory/review_board.go's ReviewBoard /
// ReviewDefect / ReviewerVote / ConsensusResult /
// UpdateQualityScoresAfterReview (wrapped in withTx), generalized from a
// multi-reviewer voting board down to spec's single-verdict-per-review
// model, keeping the teacher's transaction-wrapped read-modify-write
// idiom and nullString/nullTime helpers (here: internal/relstore).
package governance

// Decision categories (spec.md section 3).
const (
	CategoryPatternChoice   = "pattern_choice"
	CategoryComponentDesign = "component_design"
	CategoryAPIDesign       = "api_design"
	CategoryDeviation       = "deviation"
	CategoryScopeChange     = "scope_change"
)

// bypassesReview reports whether category skips the AI reviewer
// entirely (spec.md section 4.7's submit_decision, section 3's Decision
// invariant).
func bypassesReview(category string) bool {
	return category == CategoryDeviation || category == CategoryScopeChange
}

// Review types (spec.md section 3's Task review record).
const (
	ReviewTypeGovernance  = "governance"
	ReviewTypeSecurity    = "security"
	ReviewTypeArchitecture = "architecture"
	ReviewTypeMemory      = "memory"
	ReviewTypeVision      = "vision"
	ReviewTypeCustom      = "custom"
)

// ReservedPrefixes is the canonical set of subject prefixes that mark a
// task as itself a governance review task, preventing the interception
// hook from pairing a review with another review (spec.md section 4.8
// step 2; Open Question 3 codifies this set in one place).
var ReservedPrefixes = []string{"[GOVERNANCE]", "[REVIEW]", "[SECURITY]", "[ARCHITECTURE]"}

func reviewTypePrefix(reviewType string) string {
	switch reviewType {
	case ReviewTypeSecurity:
		return "[SECURITY]"
	case ReviewTypeArchitecture:
		return "[ARCHITECTURE]"
	case ReviewTypeGovernance:
		return "[GOVERNANCE]"
	default:
		return "[REVIEW]"
	}
}

// Governed task / task review statuses (spec.md section 3).
const (
	StatusPendingReview    = "pending_review"
	StatusApproved         = "approved"
	StatusBlocked          = "blocked"
	StatusNeedsHumanReview = "needs_human_review"
	StatusPending          = "pending"
	StatusInProgress       = "in_progress"
)

// Decision is one agent submission (spec.md section 3).
type Decision struct {
	ID           string   `json:"id"`
	TaskID       string   `json:"task_id"`
	Sequence     int      `json:"sequence"`
	Agent        string   `json:"agent"`
	Category     string   `json:"category"`
	Summary      string   `json:"summary"`
	Detail       string   `json:"detail"`
	Components   []string `json:"components_affected"`
	Alternatives []string `json:"alternatives_considered"`
	Confidence   float64  `json:"confidence"`
	CreatedAt    string   `json:"created_at"`
}

// ReviewRow is a persisted verdict row (spec.md section 6's reviews table).
type ReviewRow struct {
	ID                string   `json:"id"`
	DecisionID        string   `json:"decision_id,omitempty"`
	PlanID            string   `json:"plan_id,omitempty"`
	Verdict           string   `json:"verdict"`
	Findings          []string `json:"findings"`
	Guidance          string   `json:"guidance"`
	StandardsVerified []string `json:"standards_verified"`
	Reviewer          string   `json:"reviewer"`
	CreatedAt         string   `json:"created_at"`
}

// GovernedTask is spec.md section 3's Governed task.
type GovernedTask struct {
	ID                     string  `json:"id"`
	ImplementationTaskID   string  `json:"implementation_task_id"`
	Subject                string  `json:"subject"`
	Description            string  `json:"description"`
	Context                string  `json:"context"`
	CurrentStatus          string  `json:"current_status"`
	CreatedAt              string  `json:"created_at"`
	ReleasedAt             *string `json:"released_at,omitempty"`
}

// TaskReview is spec.md section 3's Task review record.
type TaskReview struct {
	ID                   string   `json:"id"`
	ReviewTaskID         string   `json:"review_task_id"`
	ImplementationTaskID string   `json:"implementation_task_id"`
	ReviewType           string   `json:"review_type"`
	Status               string   `json:"status"`
	Context              string   `json:"context"`
	Verdict              string   `json:"verdict,omitempty"`
	Guidance             string   `json:"guidance"`
	Findings             []string `json:"findings"`
	StandardsVerified    []string `json:"standards_verified"`
	Reviewer             string   `json:"reviewer"`
	SessionID            string   `json:"session_id,omitempty"`
	CreatedAt            string   `json:"created_at"`
	CompletedAt          *string  `json:"completed_at,omitempty"`
}

// TaskReviewStatus is the return shape of GetTaskReviewStatus (spec.md
// section 4.7).
type TaskReviewStatus struct {
	Status            string       `json:"status"`
	IsBlocked         bool         `json:"is_blocked"`
	CanExecute        bool         `json:"can_execute"`
	Reviews           []TaskReview `json:"reviews"`
	BlockersFromFiles []string     `json:"blockers_from_files"`
}

// GovernedPairResult is the return shape of CreateGovernedTask.
type GovernedPairResult struct {
	ImplementationTaskID string `json:"implementation_task_id"`
	ReviewTaskID         string `json:"review_task_id"`
	Status               string `json:"status"`
}

// AgentLeaderboardRow is the supplemented per-agent quality tally
// (SPEC_FULL.md section 3), grounded on the teacher's AgentQualityScore /
// GetAgentLeaderboard.
type AgentLeaderboardRow struct {
	Agent    string `json:"agent"`
	Approved int    `json:"approved"`
	Blocked  int    `json:"blocked"`
	NeedsHuman int  `json:"needs_human_review"`
	Total    int    `json:"total"`
}
