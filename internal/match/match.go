// Package match resolves a discovered release file to its CONTROL row and
// MAPPING row. All failures are classified so the operator sees exactly
// which data needs correcting.
package match

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/brickline-labs/pricesheet/internal/faults"
	"github.com/brickline-labs/pricesheet/internal/sheet"
)

// Release is one discovered input file, decomposed from its filename.
type Release struct {
	Community string
	Homesite  string
	Floorplan string
	SourceID  string // document-store identifier of the input file
	FileName  string
}

// Key returns the normalized release identity used for manifest lookups.
func (r Release) Key() string {
	return sheet.Norm(r.Community) + "|" + sheet.Norm(r.Homesite) + "|" + sheet.Norm(r.Floorplan)
}

// Filters shrink the candidate set before matching. Empty fields match
// everything; filters never change matching semantics.
type Filters struct {
	Community string
	Homesite  string
	Floorplan string
}

// Allows reports whether a release passes the filters.
func (f Filters) Allows(r Release) bool {
	if f.Community != "" && sheet.Norm(f.Community) != sheet.Norm(r.Community) {
		return false
	}
	if f.Homesite != "" && sheet.Norm(f.Homesite) != sheet.Norm(r.Homesite) {
		return false
	}
	if f.Floorplan != "" && sheet.Norm(f.Floorplan) != sheet.Norm(r.Floorplan) {
		return false
	}
	return true
}

// ParseFilename decomposes Community_Homesite_Floorplan.<ext> into a
// Release. The name must split into exactly three non-empty
// underscore-delimited tokens.
func ParseFilename(name, sourceID string) (Release, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	tokens := strings.Split(base, "_")
	if len(tokens) != 3 {
		return Release{}, faults.New(faults.ClassInvalidFilename,
			"filename %q does not split into exactly three underscore-delimited tokens", name)
	}
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			return Release{}, faults.New(faults.ClassInvalidFilename,
				"filename %q has an empty token", name)
		}
	}
	return Release{
		Community: strings.TrimSpace(tokens[0]),
		Homesite:  strings.TrimSpace(tokens[1]),
		Floorplan: strings.TrimSpace(tokens[2]),
		SourceID:  sourceID,
		FileName:  name,
	}, nil
}

// Result pairs the resolved rows for a release.
type Result struct {
	Control sheet.ControlRow
	Mapping sheet.MappingRow
}

// Resolve matches a release against the control and mapping rows. It fails
// with ControlRowMissing when no enabled CONTROL row matches the release
// identity, NoMappingFound when the control row's (community, floorplan) has
// no MAPPING row, and AmbiguousMapping when more than one MAPPING row
// matches. Ambiguity is a hard error, never a silent first match.
func Resolve(r Release, controls []sheet.ControlRow, mappings []sheet.MappingRow) (*Result, error) {
	ctrl := sheet.FindControl(controls, r.Community, r.Homesite, r.Floorplan)
	if ctrl == nil {
		return nil, faults.New(faults.ClassControlRowMissing,
			"no enabled CONTROL row for (%s, %s, %s)", r.Community, r.Homesite, r.Floorplan)
	}

	matches := sheet.FindMappings(mappings, ctrl.Community, ctrl.Floorplan)
	switch len(matches) {
	case 0:
		return nil, faults.New(faults.ClassNoMappingFound,
			"no MAPPING row for (%s, %s)", ctrl.Community, ctrl.Floorplan)
	case 1:
		return &Result{Control: *ctrl, Mapping: matches[0]}, nil
	default:
		var conflicts []string
		for _, m := range matches {
			conflicts = append(conflicts, fmt.Sprintf("%s (row %d)", m.FileName, m.RowIndex))
		}
		return nil, faults.New(faults.ClassAmbiguousMapping,
			"%d MAPPING rows match (%s, %s): %s", len(matches), ctrl.Community, ctrl.Floorplan,
			strings.Join(conflicts, ", "))
	}
}
