package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Certification is the cached result of certifying one template for
// one mapping. Checksum invalidates the cache when the template file
// changes underneath us.
type Certification struct {
	MappingKey  string
	Template    string
	Marker      string
	Checksum    string
	Passed      bool
	ReportJSON  string
	CertifiedAt time.Time
}

// PutCertification records or replaces the cached certification for a
// mapping key.
func (s *Store) PutCertification(c Certification) error {
	_, err := s.db.Exec(`
		INSERT INTO certifications (mapping_key, template, marker, checksum, passed, report_json, certified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mapping_key) DO UPDATE SET
			template = excluded.template,
			marker = excluded.marker,
			checksum = excluded.checksum,
			passed = excluded.passed,
			report_json = excluded.report_json,
			certified_at = excluded.certified_at`,
		c.MappingKey, c.Template, c.Marker, c.Checksum, c.Passed, c.ReportJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put certification %s: %w", c.MappingKey, err)
	}
	return nil
}

// GetCertification returns the cached certification for mappingKey
// when it matches checksum, or nil when absent or invalidated.
func (s *Store) GetCertification(mappingKey, checksum string) (*Certification, error) {
	var c Certification
	err := s.db.QueryRow(`
		SELECT mapping_key, template, marker, checksum, passed, report_json, certified_at
		FROM certifications WHERE mapping_key = ?`, mappingKey).
		Scan(&c.MappingKey, &c.Template, &c.Marker, &c.Checksum, &c.Passed, &c.ReportJSON, &c.CertifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get certification %s: %w", mappingKey, err)
	}
	if c.Checksum != checksum {
		return nil, nil
	}
	return &c, nil
}

// ListCertifications returns every cached certification, ordered by
// mapping key.
func (s *Store) ListCertifications() ([]Certification, error) {
	rows, err := s.db.Query(`
		SELECT mapping_key, template, marker, checksum, passed, report_json, certified_at
		FROM certifications ORDER BY mapping_key`)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	defer rows.Close()

	var certs []Certification
	for rows.Next() {
		var c Certification
		if err := rows.Scan(&c.MappingKey, &c.Template, &c.Marker, &c.Checksum, &c.Passed, &c.ReportJSON, &c.CertifiedAt); err != nil {
			return nil, fmt.Errorf("scan certification: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// MarkerConflicts returns mapping keys of passed certifications whose
// marker equals marker, excluding mappingKey itself. Used to enforce
// marker uniqueness across the certified template set.
func (s *Store) MarkerConflicts(marker, mappingKey string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT mapping_key FROM certifications
		WHERE marker = ? AND mapping_key != ? AND passed = 1
		ORDER BY mapping_key`, marker, mappingKey)
	if err != nil {
		return nil, fmt.Errorf("marker conflicts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan marker conflict: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
