// Package doc implements the table-document model the engine renders price
// rows into. A document is an ordered list of tables of string cells,
// serialized as JSON. One cell in the target table carries an invisible
// marker code binding the table to a MAPPING row.
package doc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is an opened template or rendered price sheet.
type Document struct {
	Name   string   `json:"name"`
	Tables []*Table `json:"tables"`
}

// Table is an ordered grid of string cells. Row 0 is typically a title row,
// row 1 the header row, and the remaining rows data.
type Table struct {
	Rows [][]string `json:"rows"`
}

// CellRef locates a single cell inside a document.
type CellRef struct {
	TableIndex int
	Row        int
	Col        int
	Text       string
}

// Open parses raw document bytes.
func Open(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return &d, nil
}

// Save serializes the document back to bytes.
func (d *Document) Save() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return out, nil
}

// Cell returns the text of a cell, or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// SetCell writes a cell, ignoring out-of-range coordinates.
func (t *Table) SetCell(row, col int, value string) {
	if row < 0 || row >= len(t.Rows) {
		return
	}
	if col < 0 || col >= len(t.Rows[row]) {
		return
	}
	t.Rows[row][col] = value
}

// FindMarker scans every cell of every table for the marker string and
// returns all cells containing it, in document order.
func (d *Document) FindMarker(marker string) []CellRef {
	if marker == "" {
		return nil
	}
	var refs []CellRef
	for ti, table := range d.Tables {
		for ri, row := range table.Rows {
			for ci, cell := range row {
				if strings.Contains(cell, marker) {
					refs = append(refs, CellRef{TableIndex: ti, Row: ri, Col: ci, Text: cell})
				}
			}
		}
	}
	return refs
}

// LocateTable resolves the marker to its unique owning table index.
// It fails when the marker is absent or appears in more than one table.
func (d *Document) LocateTable(marker string) (int, error) {
	refs := d.FindMarker(marker)
	if len(refs) == 0 {
		return 0, fmt.Errorf("marker %q not found in any table cell (%d tables scanned)", marker, len(d.Tables))
	}
	tables := map[int]bool{}
	for _, r := range refs {
		tables[r.TableIndex] = true
	}
	if len(tables) > 1 {
		var where []string
		for _, r := range refs {
			where = append(where, fmt.Sprintf("table[%d] cell(%d,%d)", r.TableIndex, r.Row, r.Col))
		}
		return 0, fmt.Errorf("marker %q found in multiple tables: %s", marker, strings.Join(where, "; "))
	}
	return refs[0].TableIndex, nil
}

// RemoveMarker strips the marker string from every cell containing it.
// Rendered output never ships with the invisible code.
func (d *Document) RemoveMarker(marker string) {
	for _, ref := range d.FindMarker(marker) {
		t := d.Tables[ref.TableIndex]
		t.SetCell(ref.Row, ref.Col, strings.TrimSpace(strings.ReplaceAll(t.Cell(ref.Row, ref.Col), marker, "")))
	}
}

// ScanMarkers returns every cell whose text contains the given prefix.
// Used by the scan diagnostic command.
func (d *Document) ScanMarkers(prefix string) []CellRef {
	var refs []CellRef
	for ti, table := range d.Tables {
		for ri, row := range table.Rows {
			for ci, cell := range row {
				if strings.Contains(cell, prefix) {
					snippet := cell
					if len(snippet) > 100 {
						snippet = snippet[:100]
					}
					refs = append(refs, CellRef{TableIndex: ti, Row: ri, Col: ci, Text: snippet})
				}
			}
		}
	}
	return refs
}
