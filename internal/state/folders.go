package state

import (
	"fmt"
	"time"
)

// Folder records a verified folder binding from sync-folders.
type Folder struct {
	Label    string
	Path     string
	Verified bool
	SyncedAt time.Time
}

// SaveFolder upserts the binding for one folder label.
func (s *Store) SaveFolder(label, path string, verified bool) error {
	_, err := s.db.Exec(`
		INSERT INTO folders (label, path, verified, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			path = excluded.path,
			verified = excluded.verified,
			synced_at = excluded.synced_at`,
		label, path, verified, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save folder %s: %w", label, err)
	}
	return nil
}

// ListFolders returns every saved folder binding, ordered by label.
func (s *Store) ListFolders() ([]Folder, error) {
	rows, err := s.db.Query(`SELECT label, path, verified, synced_at FROM folders ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.Label, &f.Path, &f.Verified, &f.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}
