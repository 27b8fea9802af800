package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the durable processing status of a release key.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusDryRun    Status = "DRY_RUN"
)

// ManifestEntry is the idempotency record for one release key.
type ManifestEntry struct {
	Key         string
	Community   string
	Homesite    string
	Floorplan   string
	Status      Status
	Checksum    string
	DocOutput   string
	FixedOutput string
	Detail      string
	Attempts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LookupManifest returns the entry for key, or nil when none exists.
func (s *Store) LookupManifest(key string) (*ManifestEntry, error) {
	var e ManifestEntry
	err := s.db.QueryRow(`
		SELECT release_key, community, homesite, floorplan, status, checksum,
		       doc_output, fixed_output, detail, attempts, created_at, updated_at
		FROM manifest WHERE release_key = ?`, key).
		Scan(&e.Key, &e.Community, &e.Homesite, &e.Floorplan, &e.Status, &e.Checksum,
			&e.DocOutput, &e.FixedOutput, &e.Detail, &e.Attempts, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup manifest %s: %w", key, err)
	}
	return &e, nil
}

// RecordManifest upserts the entry for e.Key in place. The attempt counter
// increments on every record; created_at is preserved across updates so one
// key always has exactly one entry.
func (s *Store) RecordManifest(e ManifestEntry) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO manifest (release_key, community, homesite, floorplan, status,
		                      checksum, doc_output, fixed_output, detail, attempts,
		                      created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(release_key) DO UPDATE SET
			status = excluded.status,
			checksum = excluded.checksum,
			doc_output = excluded.doc_output,
			fixed_output = excluded.fixed_output,
			detail = excluded.detail,
			attempts = manifest.attempts + 1,
			updated_at = excluded.updated_at`,
		e.Key, e.Community, e.Homesite, e.Floorplan, e.Status,
		e.Checksum, e.DocOutput, e.FixedOutput, e.Detail, now, now)
	if err != nil {
		return fmt.Errorf("record manifest %s: %w", e.Key, err)
	}
	return nil
}

// ListManifest returns all entries ordered by key.
func (s *Store) ListManifest() ([]ManifestEntry, error) {
	rows, err := s.db.Query(`
		SELECT release_key, community, homesite, floorplan, status, checksum,
		       doc_output, fixed_output, detail, attempts, created_at, updated_at
		FROM manifest ORDER BY release_key`)
	if err != nil {
		return nil, fmt.Errorf("list manifest: %w", err)
	}
	defer rows.Close()

	var entries []ManifestEntry
	for rows.Next() {
		var e ManifestEntry
		if err := rows.Scan(&e.Key, &e.Community, &e.Homesite, &e.Floorplan, &e.Status,
			&e.Checksum, &e.DocOutput, &e.FixedOutput, &e.Detail, &e.Attempts,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
