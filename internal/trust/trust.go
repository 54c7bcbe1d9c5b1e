// Package trust implements the C3 Trust Engine: a ledger of quality
// findings with an append-only dismissal audit trail and deterministic
// trust classification.
//
// Grounded on internal/memory/review_board.go's ReviewDefect bookkeeping
// (Status/ResolutionNotes/ResolvedBy/ResolvedAt) generalized into the
// spec's findings + dismissal_history two-table shape (spec.md section
// 6), keeping the teacher's "terminal status once resolved, always append
// an audit row" invariant. Uses internal/relstore (modernc.org/sqlite),
// the teacher's own database/sql substrate.
package trust

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/agentgov/core/internal/logging"
	"github.com/agentgov/core/internal/relstore"
)

//go:embed schema.sql
var schemaSQL string

// Trust classes (spec.md section 4.3).
const (
	DecisionBlock       = "BLOCK"
	DecisionInvestigate = "INVESTIGATE" // reserved, never returned today
	DecisionTrack       = "TRACK"
)

// Finding statuses (spec.md section 3).
const (
	StatusOpen      = "open"
	StatusDismissed = "dismissed"
)

// Finding is one quality issue tracked by the engine.
type Finding struct {
	ID                     string     `json:"id"`
	Tool                   string     `json:"tool"`
	Severity               string     `json:"severity"`
	Component              string     `json:"component,omitempty"`
	Description            string     `json:"description"`
	CreatedAt              time.Time  `json:"created_at"`
	Status                 string     `json:"status"`
	DismissedBy            string     `json:"dismissed_by,omitempty"`
	DismissalJustification string     `json:"dismissal_justification,omitempty"`
	DismissedAt            *time.Time `json:"dismissed_at,omitempty"`
}

// Engine is the C3 Trust Engine, backed by a relstore.DB.
type Engine struct {
	db  *relstore.DB
	log *logging.Logger
}

// Open opens (creating if absent) the trust store at path.
func Open(path string) (*Engine, error) {
	db, err := relstore.Open(path, schemaSQL)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db, log: logging.New("trust")}, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error { return e.db.Close() }

// RecordFinding inserts an open finding. On an existing id it overwrites
// tool, severity, component and description and keeps the stored status,
// created_at and dismissal fields, so a dismissed finding stays
// dismissed. Quality Service callers use this to populate the ledger from
// tool output; id is caller-assigned so a tool's own finding identity is
// preserved across runs.
func (e *Engine) RecordFinding(f Finding) error {
	if f.Status == "" {
		f.Status = StatusOpen
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	_, err := e.db.Exec(`
		INSERT INTO findings (id, tool, severity, component, description, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tool=excluded.tool, severity=excluded.severity, component=excluded.component,
			description=excluded.description
	`, f.ID, f.Tool, f.Severity, relstore.NullString(f.Component), f.Description, f.CreatedAt, f.Status)
	if err != nil {
		return fmt.Errorf("recording finding %s: %w", f.ID, err)
	}
	return nil
}

func (e *Engine) getFinding(id string) (*Finding, error) {
	var f Finding
	var component, dismissedBy, justification sql.NullString
	var dismissedAt sql.NullTime
	err := e.db.QueryRow(`
		SELECT id, tool, severity, component, description, created_at, status,
		       dismissed_by, dismissal_justification, dismissed_at
		FROM findings WHERE id = ?
	`, id).Scan(&f.ID, &f.Tool, &f.Severity, &component, &f.Description, &f.CreatedAt, &f.Status,
		&dismissedBy, &justification, &dismissedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading finding %s: %w", id, err)
	}
	f.Component = component.String
	f.DismissedBy = dismissedBy.String
	f.DismissalJustification = justification.String
	f.DismissedAt = relstore.TimeOrNil(dismissedAt)
	return &f, nil
}

// DismissalResult is the return shape of RecordDismissal.
type DismissalResult struct {
	Recorded bool   `json:"recorded"`
	Error    string `json:"error,omitempty"`
}

// RecordDismissal implements spec.md section 4.3's record_dismissal:
// rejects an empty justification, otherwise marks the finding dismissed
// (terminal) and appends exactly one dismissal_history row (spec.md
// section 3's "no silent dismissals" invariant / P8).
func (e *Engine) RecordDismissal(findingID, justification, dismissedBy string) (DismissalResult, error) {
	if justification == "" {
		return DismissalResult{Recorded: false, Error: "dismissal requires a non-empty justification"}, nil
	}

	now := time.Now()
	unknown := false
	err := e.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE findings SET status = ?, dismissed_by = ?, dismissal_justification = ?, dismissed_at = ?
			WHERE id = ?
		`, StatusDismissed, dismissedBy, justification, now, findingID)
		if err != nil {
			return fmt.Errorf("updating finding: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Unknown finding id: still record the dismissal intent so the
			// audit trail is never silently dropped, but surface not_found.
			unknown = true
			if _, err := tx.Exec(`
				INSERT INTO findings (id, tool, severity, description, created_at, status, dismissed_by, dismissal_justification, dismissed_at)
				VALUES (?, '', '', '(unknown finding)', ?, ?, ?, ?, ?)
			`, findingID, now, StatusDismissed, dismissedBy, justification, now); err != nil {
				return fmt.Errorf("recording dismissal of unknown finding: %w", err)
			}
		}
		_, err = tx.Exec(`
			INSERT INTO dismissal_history (finding_id, dismissed_by, justification, dismissed_at)
			VALUES (?, ?, ?, ?)
		`, findingID, dismissedBy, justification, now)
		if err != nil {
			return fmt.Errorf("appending dismissal audit row: %w", err)
		}
		return nil
	})
	if err != nil {
		return DismissalResult{}, err
	}
	e.log.Infof("finding %s dismissed by %s", findingID, dismissedBy)
	if unknown {
		return DismissalResult{Recorded: true, Error: "not_found: " + findingID}, nil
	}
	return DismissalResult{Recorded: true}, nil
}

// TrustDecision is the classification returned by GetTrustDecision.
type TrustDecision struct {
	Decision      string `json:"decision"`
	Rationale     string `json:"rationale"`
	Justification string `json:"justification,omitempty"`
}

// GetTrustDecision implements spec.md section 4.3's get_trust_decision: a
// deterministic, side-effect-free lookup. An unknown id is BLOCK with
// rationale "presumed legitimate" (spec.md section 4.3).
func (e *Engine) GetTrustDecision(findingID string) (TrustDecision, error) {
	f, err := e.getFinding(findingID)
	if err != nil {
		return TrustDecision{}, err
	}
	if f == nil {
		return TrustDecision{Decision: DecisionBlock, Rationale: "presumed legitimate"}, nil
	}
	if f.Status == StatusDismissed {
		return TrustDecision{
			Decision:      DecisionTrack,
			Rationale:     "previously dismissed",
			Justification: f.DismissalJustification,
		}, nil
	}
	return TrustDecision{Decision: DecisionBlock, Rationale: "open finding"}, nil
}

// OpenFindingIDs returns the ids of every finding still in status=open,
// used by the Quality Service's findings gate (spec.md section 4.4).
func (e *Engine) OpenFindingIDs() ([]string, error) {
	rows, err := e.db.Query(`SELECT id FROM findings WHERE status = ?`, StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("querying open findings: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DismissalHistory returns every audit row for a finding, oldest first.
func (e *Engine) DismissalHistory(findingID string) ([]DismissalRow, error) {
	rows, err := e.db.Query(`
		SELECT id, finding_id, dismissed_by, justification, dismissed_at
		FROM dismissal_history WHERE finding_id = ? ORDER BY id ASC
	`, findingID)
	if err != nil {
		return nil, fmt.Errorf("loading dismissal history: %w", err)
	}
	defer rows.Close()

	var out []DismissalRow
	for rows.Next() {
		var r DismissalRow
		if err := rows.Scan(&r.ID, &r.FindingID, &r.DismissedBy, &r.Justification, &r.DismissedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DismissalRow is one append-only audit entry.
type DismissalRow struct {
	ID            int64     `json:"id"`
	FindingID     string    `json:"finding_id"`
	DismissedBy   string    `json:"dismissed_by"`
	Justification string    `json:"justification"`
	DismissedAt   time.Time `json:"dismissed_at"`
}
