package governance

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agentgov/core/internal/relstore"
	"github.com/agentgov/core/internal/tasks"
)

// CreateGovernedTask implements spec.md section 4.7's create_governed_task:
// atomically create the task pair (spec.md section 4.5) plus the
// governance rows. Review task is blocks=[impl]; impl task is
// blockedBy=[review]. If the implementation write fails, the orphan
// review is tombstoned, never deleted (spec.md section 4.5 / 7's
// orphan_pair error kind).
func (s *Service) CreateGovernedTask(subject, description, context, reviewType string) (GovernedPairResult, error) {
	reviewTaskID := uuid.NewString()
	implTaskID := uuid.NewString()
	reviewSubject := reviewTypePrefix(reviewType) + " Review: " + subject

	if _, err := s.tasks.CreateTask(tasks.Task{
		ID:      reviewTaskID,
		Subject: reviewSubject,
		Blocks:  []string{implTaskID},
	}); err != nil {
		return GovernedPairResult{}, fmt.Errorf("creating review task: %w", err)
	}

	if _, err := s.tasks.CreateTask(tasks.Task{
		ID:          implTaskID,
		Subject:     subject,
		Description: description,
		BlockedBy:   []string{reviewTaskID},
	}); err != nil {
		s.tasks.Tombstone(reviewTaskID)
		s.notifyOrphanPair(implTaskID, reviewTaskID)
		return GovernedPairResult{}, fmt.Errorf("orphan_pair: implementation task creation failed, review %s tombstoned: %w", reviewTaskID, err)
	}

	now := time.Now()
	govID := uuid.NewString()
	err := s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO governed_tasks (id, implementation_task_id, subject, description, context, current_status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, govID, implTaskID, subject, description, relstore.NullString(context), StatusPendingReview, now); err != nil {
			return fmt.Errorf("inserting governed_tasks row: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO task_reviews (id, review_task_id, implementation_task_id, review_type, status, context, findings, standards_verified, created_at)
			VALUES (?, ?, ?, ?, ?, ?, '[]', '[]', ?)
		`, uuid.NewString(), reviewTaskID, implTaskID, reviewType, StatusPending, relstore.NullString(context), now); err != nil {
			return fmt.Errorf("inserting task_reviews row: %w", err)
		}
		return nil
	})
	if err != nil {
		return GovernedPairResult{}, err
	}

	return GovernedPairResult{ImplementationTaskID: implTaskID, ReviewTaskID: reviewTaskID, Status: StatusPendingReview}, nil
}

// AddReviewBlocker implements spec.md section 4.7's add_review_blocker:
// append a new review task, stack it onto the impl task's blockedBy.
func (s *Service) AddReviewBlocker(implTaskID, reviewType, ctx string) (string, error) {
	reviewTaskID := uuid.NewString()
	impl, err := s.tasks.ReadTask(implTaskID)
	if err != nil {
		return "", fmt.Errorf("not_found: %w", err)
	}

	if _, err := s.tasks.CreateTask(tasks.Task{
		ID:      reviewTaskID,
		Subject: reviewTypePrefix(reviewType) + " Review: " + impl.Subject,
		Blocks:  []string{implTaskID},
	}); err != nil {
		return "", fmt.Errorf("creating blocker review task: %w", err)
	}
	if _, err := s.tasks.AddBlocker(implTaskID, reviewTaskID); err != nil {
		s.tasks.Tombstone(reviewTaskID)
		s.notifyOrphanPair(implTaskID, reviewTaskID)
		return "", fmt.Errorf("orphan_pair: stacking blocker failed, review %s tombstoned: %w", reviewTaskID, err)
	}

	now := time.Now()
	_, err = s.db.Exec(`
		INSERT INTO task_reviews (id, review_task_id, implementation_task_id, review_type, status, context, findings, standards_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, '[]', '[]', ?)
	`, uuid.NewString(), reviewTaskID, implTaskID, reviewType, StatusPending, relstore.NullString(ctx), now)
	if err != nil {
		return "", fmt.Errorf("inserting task_reviews row: %w", err)
	}
	return reviewTaskID, nil
}

// InterceptNewTask implements the interception hook's (C8) pairing step
// (spec.md section 4.8 steps 3-4): it discovers the task the host
// runtime just created by subject (spec.md section 4.8 step 3 / Open
// Question 2: newest-by-creation-time match among still-unblocked
// tasks), stamps it with the originating session, then stacks a
// governance review blocker onto it exactly as AddReviewBlocker does,
// additionally recording the session id on both the task_reviews row and
// the implementation task file so the settle worker (C10) can later
// query "this session's tasks".
//
// A failure after the impl task is found but before the blocker is
// durably stacked must never leave the impl task exactly as the host
// runtime left it (no blocker): spec.md section 4.8's invariant demands
// the impl task end up blocked regardless. So the AddBlocker-failure
// branch below stacks a sentinel blocker of its own on the impl task
// before returning, satisfying "never remove the blocker on failure"
// without relying on the caller (the hook's main) to do it.
func (s *Service) InterceptNewTask(subject, sessionID, ctx string) (implTaskID, reviewTaskID string, err error) {
	impl, err := s.tasks.FindBySubjectUnblocked(subject)
	if err != nil {
		return "", "", fmt.Errorf("discovering newly created task: %w", err)
	}
	implTaskID = impl.ID

	if sessionID != "" && impl.SessionID != sessionID {
		if _, err := s.tasks.UpdateTask(implTaskID, func(t *tasks.Task) error {
			t.SessionID = sessionID
			return nil
		}); err != nil {
			return implTaskID, "", fmt.Errorf("stamping session id: %w", err)
		}
	}

	reviewTaskID = uuid.NewString()
	if _, err := s.tasks.CreateTask(tasks.Task{
		ID:        reviewTaskID,
		Subject:   reviewTypePrefix(ReviewTypeGovernance) + " Review: " + impl.Subject,
		Blocks:    []string{implTaskID},
		SessionID: sessionID,
	}); err != nil {
		return implTaskID, "", fmt.Errorf("creating review task: %w", err)
	}
	if _, err := s.tasks.AddBlocker(implTaskID, reviewTaskID); err != nil {
		s.tasks.Tombstone(reviewTaskID)
		// Never leave the impl task unblocked: stack a sentinel blocker of
		// our own so it stays blocked-from-birth (spec.md section 4.8's
		// "never remove the blocker on failure") even though the review
		// task meant to occupy that slot was just tombstoned. An operator
		// resolving the tombstone is the only way to clear this.
		sentinelDetail := "sentinel blocker applied"
		if _, sentinelErr := s.tasks.AddBlocker(implTaskID, "sentinel:"+reviewTaskID); sentinelErr != nil {
			s.log.Warnf("failed to stack sentinel blocker on %s after orphan pair: %v", implTaskID, sentinelErr)
			sentinelDetail = fmt.Sprintf("sentinel blocker also failed: %v", sentinelErr)
		}
		s.notifyOrphanPair(implTaskID, reviewTaskID)
		return implTaskID, reviewTaskID, fmt.Errorf("orphan_pair: stacking blocker failed, review %s tombstoned, %s: %w", reviewTaskID, sentinelDetail, err)
	}

	now := time.Now()
	if _, err := s.db.Exec(`
		INSERT INTO task_reviews (id, review_task_id, implementation_task_id, review_type, status, context, session_id, findings, standards_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '[]', '[]', ?)
	`, uuid.NewString(), reviewTaskID, implTaskID, ReviewTypeGovernance, StatusPending, relstore.NullString(ctx), relstore.NullString(sessionID), now); err != nil {
		return implTaskID, reviewTaskID, fmt.Errorf("inserting task_reviews row: %w", err)
	}
	return implTaskID, reviewTaskID, nil
}

// CompleteTaskReview implements spec.md section 4.7's
// complete_task_review: mark the review complete; release the blocker on
// approval; keep it on blocked (appending any guidance to the impl task's
// description) and on needs_human_review.
func (s *Service) CompleteTaskReview(reviewTaskID, verdict, guidance string, findings, standardsVerified []string) error {
	var implTaskID string
	if err := s.db.QueryRow(`SELECT implementation_task_id FROM task_reviews WHERE review_task_id = ?`, reviewTaskID).Scan(&implTaskID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("not_found: task review %s", reviewTaskID)
		}
		return fmt.Errorf("loading task review: %w", err)
	}

	now := time.Now()
	_, err := s.db.Exec(`
		UPDATE task_reviews SET status = ?, verdict = ?, guidance = ?, findings = ?, standards_verified = ?, completed_at = ?
		WHERE review_task_id = ?
	`, verdict, verdict, guidance, marshalList(findings), marshalList(standardsVerified), now, reviewTaskID)
	if err != nil {
		return fmt.Errorf("updating task review: %w", err)
	}

	switch verdict {
	case StatusApproved:
		updated, err := s.tasks.RemoveBlocker(implTaskID, reviewTaskID)
		if err != nil {
			return fmt.Errorf("releasing blocker: %w", err)
		}
		if len(updated.BlockedBy) == 0 {
			if _, err := s.db.Exec(`
				UPDATE governed_tasks SET current_status = ?, released_at = ?
				WHERE implementation_task_id = ?
			`, StatusApproved, now, implTaskID); err != nil {
				return fmt.Errorf("releasing governed task: %w", err)
			}
		}
	case StatusBlocked:
		if guidance != "" {
			if _, err := s.tasks.UpdateTask(implTaskID, func(t *tasks.Task) error {
				t.Description = t.Description + "\n\n[review guidance] " + guidance
				return nil
			}); err != nil {
				return fmt.Errorf("appending guidance: %w", err)
			}
		}
		s.db.Exec(`UPDATE governed_tasks SET current_status = ? WHERE implementation_task_id = ?`, StatusBlocked, implTaskID)
	case StatusNeedsHumanReview:
		s.db.Exec(`UPDATE governed_tasks SET current_status = ? WHERE implementation_task_id = ?`, StatusNeedsHumanReview, implTaskID)
		s.notifyNeedsHumanReview(implTaskID, guidance)
	}
	return nil
}

// GetTaskReviewStatus implements spec.md section 4.7's
// get_task_review_status: merges DAG state from the Task Registry with
// review records from this service's store.
func (s *Service) GetTaskReviewStatus(implTaskID string) (TaskReviewStatus, error) {
	t, err := s.tasks.ReadTask(implTaskID)
	if err != nil {
		return TaskReviewStatus{}, fmt.Errorf("not_found: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, review_task_id, implementation_task_id, review_type, status, context, verdict, guidance, findings, standards_verified, reviewer, created_at, completed_at
		FROM task_reviews WHERE implementation_task_id = ? ORDER BY created_at ASC
	`, implTaskID)
	if err != nil {
		return TaskReviewStatus{}, fmt.Errorf("querying task reviews: %w", err)
	}
	defer rows.Close()

	var reviews []TaskReview
	for rows.Next() {
		var tr TaskReview
		var ctxVal, verdict, guidance, reviewerName sql.NullString
		var findings, standards string
		var createdAt time.Time
		var completedAt sql.NullTime
		if err := rows.Scan(&tr.ID, &tr.ReviewTaskID, &tr.ImplementationTaskID, &tr.ReviewType, &tr.Status,
			&ctxVal, &verdict, &guidance, &findings, &standards, &reviewerName, &createdAt, &completedAt); err != nil {
			return TaskReviewStatus{}, err
		}
		tr.Context = ctxVal.String
		tr.Verdict = verdict.String
		tr.Guidance = guidance.String
		tr.Findings = unmarshalList(findings)
		tr.StandardsVerified = unmarshalList(standards)
		tr.Reviewer = reviewerName.String
		tr.CreatedAt = createdAt.Format(time.RFC3339)
		if completedAt.Valid {
			s := completedAt.Time.Format(time.RFC3339)
			tr.CompletedAt = &s
		}
		reviews = append(reviews, tr)
	}

	isBlocked := len(t.BlockedBy) != 0
	status := string(t.Status)
	if isBlocked {
		status = "pending_review"
	}
	return TaskReviewStatus{
		Status:            status,
		IsBlocked:         isBlocked,
		CanExecute:        !isBlocked,
		Reviews:           reviews,
		BlockersFromFiles: t.BlockedBy,
	}, nil
}

// GetPendingReviews implements spec.md section 4.7's get_pending_reviews
// (query-only).
func (s *Service) GetPendingReviews() ([]TaskReview, error) {
	rows, err := s.db.Query(`
		SELECT id, review_task_id, implementation_task_id, review_type, status, context, created_at
		FROM task_reviews WHERE status IN (?, ?) ORDER BY created_at ASC
	`, StatusPending, StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("querying pending reviews: %w", err)
	}
	defer rows.Close()

	var out []TaskReview
	for rows.Next() {
		var tr TaskReview
		var ctxVal sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&tr.ID, &tr.ReviewTaskID, &tr.ImplementationTaskID, &tr.ReviewType, &tr.Status, &ctxVal, &createdAt); err != nil {
			return nil, err
		}
		tr.Context = ctxVal.String
		tr.CreatedAt = createdAt.Format(time.RFC3339)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// GovernanceStatus is the return shape of GetGovernanceStatus.
type GovernanceStatus struct {
	PendingReviews int                   `json:"pending_reviews"`
	GovernedTasks  int                   `json:"governed_tasks"`
	Leaderboard    []AgentLeaderboardRow `json:"leaderboard"`
}

// GetGovernanceStatus implements spec.md section 4.7's
// get_governance_status (query-only), plus the supplemented agent
// leaderboard (SPEC_FULL.md section 3).
func (s *Service) GetGovernanceStatus() (GovernanceStatus, error) {
	var pending, total int
	s.db.QueryRow(`SELECT COUNT(*) FROM task_reviews WHERE status IN (?, ?)`, StatusPending, StatusInProgress).Scan(&pending)
	s.db.QueryRow(`SELECT COUNT(*) FROM governed_tasks`).Scan(&total)

	board, err := s.AgentLeaderboard()
	if err != nil {
		return GovernanceStatus{}, err
	}
	return GovernanceStatus{PendingReviews: pending, GovernedTasks: total, Leaderboard: board}, nil
}

// AgentLeaderboard tallies approved/blocked/needs_human_review verdicts
// per agent across every decision reviewed so far (SPEC_FULL.md section
// 3, grounded on the teacher's AgentQualityScore/GetAgentLeaderboard).
func (s *Service) AgentLeaderboard() ([]AgentLeaderboardRow, error) {
	rows, err := s.db.Query(`
		SELECT d.agent, r.verdict, COUNT(*)
		FROM reviews r
		JOIN decisions d ON d.id = r.decision_id
		GROUP BY d.agent, r.verdict
	`)
	if err != nil {
		return nil, fmt.Errorf("querying agent leaderboard: %w", err)
	}
	defer rows.Close()

	byAgent := map[string]*AgentLeaderboardRow{}
	for rows.Next() {
		var agent, verdict string
		var count int
		if err := rows.Scan(&agent, &verdict, &count); err != nil {
			return nil, err
		}
		row, ok := byAgent[agent]
		if !ok {
			row = &AgentLeaderboardRow{Agent: agent}
			byAgent[agent] = row
		}
		switch verdict {
		case StatusApproved:
			row.Approved += count
		case StatusBlocked:
			row.Blocked += count
		case StatusNeedsHumanReview:
			row.NeedsHuman += count
		}
		row.Total += count
	}
	var out []AgentLeaderboardRow
	for _, row := range byAgent {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out, rows.Err()
}
