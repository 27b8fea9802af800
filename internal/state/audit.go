package state

import (
	"fmt"
	"time"
)

// Outcome is the terminal result of one release within one run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeSkipped   Outcome = "SKIPPED_ALREADY_DONE"
	OutcomeDryRun    Outcome = "DRY_RUN"
)

// AuditEntry is one append-only record of a processing outcome.
type AuditEntry struct {
	ID         int64
	ReleaseKey string
	Outcome    Outcome
	Reason     string
	RunID      string
	CreatedAt  time.Time
}

// AppendAudit appends an outcome to the audit log. Entries are never
// mutated after write.
func (s *Store) AppendAudit(releaseKey string, outcome Outcome, reason, runID string) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_log (release_key, outcome, reason, run_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		releaseKey, outcome, reason, runID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append audit %s: %w", releaseKey, err)
	}
	return nil
}

// ListAudit returns the newest limit entries, newest first. limit <= 0
// returns everything.
func (s *Store) ListAudit(limit int) ([]AuditEntry, error) {
	q := `SELECT id, release_key, outcome, reason, run_id, created_at
	      FROM audit_log ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ReleaseKey, &e.Outcome, &e.Reason, &e.RunID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
