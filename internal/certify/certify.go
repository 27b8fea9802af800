// Package certify validates a template's structural contract before the
// engine is allowed to write into it. Every check runs independently so
// one pass surfaces every defect, and passing reports are cached against
// the template's content checksum.
package certify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brickline-labs/pricesheet/internal/doc"
	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/faults"
	"github.com/brickline-labs/pricesheet/internal/sheet"
	"github.com/brickline-labs/pricesheet/internal/state"
)

// Check is one structural check result.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Report is the full certification outcome for one mapping.
type Report struct {
	MappingKey  string    `json:"mapping_key"`
	Template    string    `json:"template"`
	Marker      string    `json:"marker"`
	Checksum    string    `json:"checksum"`
	Checks      []Check   `json:"checks"`
	Cached      bool      `json:"-"`
	CertifiedAt time.Time `json:"certified_at"`
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return len(r.Checks) > 0
}

// Failures returns the failing checks.
func (r *Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Err converts a failing report into a classified error, or nil when the
// report passed.
func (r *Report) Err() error {
	fails := r.Failures()
	if len(fails) == 0 {
		return nil
	}
	names := make([]string, len(fails))
	for i, c := range fails {
		names[i] = fmt.Sprintf("%s (%s)", c.Name, c.Reason)
	}
	return faults.New(faults.ClassCertification, "template %q failed certification: %s",
		r.Template, strings.Join(names, "; "))
}

// MappingKey is the cache key for a mapping's certification.
func MappingKey(m sheet.MappingRow) string {
	return sheet.Norm(m.Community) + "|" + sheet.Norm(m.Floorplan)
}

// Engine runs the structural checks for one template binding.
type Engine struct {
	store  drive.Store
	states *state.Store
	logger *slog.Logger
}

// New builds an engine over the document store and the state store.
func New(store drive.Store, states *state.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{store: store, states: states, logger: logger}
}

// Certify returns the certification report for the mapping, serving a
// cached report when the template content is unchanged. The report itself
// carries failures; the returned error covers only infrastructure
// problems reading or persisting state.
func (e *Engine) Certify(ctx context.Context, m sheet.MappingRow) (*Report, error) {
	key := MappingKey(m)

	data, readErr := e.store.Read(ctx, drive.FolderTemplates, m.FileName)
	checksum := ""
	if readErr == nil {
		sum := sha256.Sum256(data)
		checksum = hex.EncodeToString(sum[:])

		cached, err := e.states.GetCertification(key, checksum)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			var r Report
			if err := json.Unmarshal([]byte(cached.ReportJSON), &r); err == nil {
				r.Cached = true
				e.logger.Debug("certification cache hit", "mapping", key, "template", m.FileName)
				return &r, nil
			}
			// Unreadable cached report: fall through and recertify.
		}
	}

	r := &Report{
		MappingKey:  key,
		Template:    m.FileName,
		Marker:      m.InvisibleCode,
		Checksum:    checksum,
		CertifiedAt: time.Now().UTC(),
	}
	if err := e.run(ctx, m, data, readErr, r); err != nil {
		return nil, err
	}

	reportJSON, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode certification report: %w", err)
	}
	if err := e.states.PutCertification(state.Certification{
		MappingKey: key,
		Template:   m.FileName,
		Marker:     m.InvisibleCode,
		Checksum:   checksum,
		Passed:     r.Passed(),
		ReportJSON: string(reportJSON),
	}); err != nil {
		return nil, err
	}
	e.logger.Info("template certified", "mapping", key, "template", m.FileName, "passed", r.Passed())
	return r, nil
}

// run executes all checks. No check short-circuits another: a template
// that fails to open still reports every document-level check, each with
// its own reason.
func (e *Engine) run(ctx context.Context, m sheet.MappingRow, data []byte, readErr error, r *Report) error {
	var d *doc.Document
	var openErr error
	if readErr == nil {
		d, openErr = doc.Open(data)
	}

	r.add("template opens", readErr == nil && openErr == nil, func() string {
		if readErr != nil {
			return fmt.Sprintf("template %q not retrievable: %v", m.FileName, readErr)
		}
		if openErr != nil {
			return fmt.Sprintf("template %q is not a valid document: %v", m.FileName, openErr)
		}
		return ""
	})

	refs := []doc.CellRef{}
	if d != nil {
		refs = d.FindMarker(m.InvisibleCode)
	}
	r.add("marker occurs exactly once", d != nil && len(refs) == 1, func() string {
		switch {
		case d == nil:
			return "document unreadable"
		case len(refs) == 0:
			return fmt.Sprintf("marker %q not found in any cell", m.InvisibleCode)
		default:
			return fmt.Sprintf("marker %q found %d times", m.InvisibleCode, len(refs))
		}
	})

	var table *doc.Table
	var headers map[string]int
	if d != nil && len(refs) > 0 {
		table = d.Tables[refs[0].TableIndex]
		headers = doc.HeaderMap(table)
	}

	r.add("header labels present", table != nil && len(doc.MissingHeaders(headers)) == 0, func() string {
		if table == nil {
			return "no marker table to inspect"
		}
		return fmt.Sprintf("header row missing columns: %s", strings.Join(doc.MissingHeaders(headers), ", "))
	})

	r.add("header column order", table != nil && headersInOrder(headers), func() string {
		if table == nil {
			return "no marker table to inspect"
		}
		return fmt.Sprintf("header columns must appear in order %s", strings.Join(doc.ExpectedHeaders, ", "))
	})

	r.add("blank data row available", table != nil && doc.NextBlankRow(table, headers, doc.HeaderRow+1) >= 0, func() string {
		if table == nil {
			return "no marker table to inspect"
		}
		return "no empty row below the header to receive data"
	})

	r.add("marker unique within document", d != nil && markerInOneTable(refs), func() string {
		if d == nil {
			return "document unreadable"
		}
		return fmt.Sprintf("marker %q appears in more than one table", m.InvisibleCode)
	})

	conflicts, err := e.states.MarkerConflicts(m.InvisibleCode, r.MappingKey)
	if err != nil {
		return err
	}
	r.add("marker unique across certified templates", len(conflicts) == 0, func() string {
		return fmt.Sprintf("marker %q already certified for mapping(s) %s",
			m.InvisibleCode, strings.Join(conflicts, ", "))
	})

	count, listErr := e.templateCount(ctx, m.FileName)
	r.add("template filename resolves uniquely", listErr == nil && count == 1, func() string {
		if listErr != nil {
			return fmt.Sprintf("template folder unreadable: %v", listErr)
		}
		if count == 0 {
			return fmt.Sprintf("no file named %q in the template folder", m.FileName)
		}
		return fmt.Sprintf("%d files named %q in the template folder", count, m.FileName)
	})

	return nil
}

func (r *Report) add(name string, passed bool, reason func() string) {
	c := Check{Name: name, Passed: passed}
	if !passed {
		c.Reason = reason()
	}
	r.Checks = append(r.Checks, c)
}

// headersInOrder verifies the canonical columns appear left to right in
// the expected order.
func headersInOrder(headers map[string]int) bool {
	last := -1
	for _, h := range doc.ExpectedHeaders {
		col, ok := headers[h]
		if !ok || col <= last {
			return false
		}
		last = col
	}
	return true
}

// markerInOneTable reports whether every marker occurrence sits in the
// same table.
func markerInOneTable(refs []doc.CellRef) bool {
	if len(refs) == 0 {
		return false
	}
	for _, ref := range refs[1:] {
		if ref.TableIndex != refs[0].TableIndex {
			return false
		}
	}
	return true
}

// templateCount counts files in the template folder whose name equals
// name under case-insensitive comparison. Stores that allow duplicate
// names make this ambiguous, which blocks certification.
func (e *Engine) templateCount(ctx context.Context, name string) (int, error) {
	files, err := e.store.List(ctx, drive.FolderTemplates)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if strings.EqualFold(f.Name, name) {
			n++
		}
	}
	return n, nil
}
