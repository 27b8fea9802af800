package doc

import (
	"fmt"
)

// RowValues is one price-sheet data row ready for insertion.
type RowValues struct {
	Site    string
	Price   string
	Address string
	ReadyBy string
	Notes   string
}

// WriteAction describes what a write did to the target table.
type WriteAction string

const (
	ActionAppended WriteAction = "appended"
	ActionReplaced WriteAction = "replaced"
)

// WriteResult reports the outcome of a row write.
type WriteResult struct {
	Action WriteAction
	Row    int // 0-based row index written
}

// IsRowBlank reports whether every mapped column of a row is empty.
func IsRowBlank(t *Table, row int, headers map[string]int) bool {
	for _, col := range headers {
		if NormalizeCompare(t.Cell(row, col)) != "" {
			return false
		}
	}
	return true
}

// NextBlankRow finds the first blank row at or below start, or -1.
func NextBlankRow(t *Table, headers map[string]int, start int) int {
	for r := start; r < len(t.Rows); r++ {
		if IsRowBlank(t, r, headers) {
			return r
		}
	}
	return -1
}

// FindSiteRows returns data rows whose SITE column matches site,
// case-insensitive and trimmed.
func FindSiteRows(t *Table, headers map[string]int, site string, start int) []int {
	col, ok := headers[HeaderSite]
	if !ok {
		return nil
	}
	want := NormalizeCompare(site)
	var rows []int
	for r := start; r < len(t.Rows); r++ {
		if NormalizeCompare(t.Cell(r, col)) == want {
			rows = append(rows, r)
		}
	}
	return rows
}

// WriteRow inserts values into the table identified by marker. Price and
// ready-by values are formatted on the way in. If a row for the same site is
// already present it is replaced when overwrite is set, and rejected
// otherwise. New rows land in the first blank row below the header, growing
// the table when no blank row remains.
func (d *Document) WriteRow(marker string, values RowValues, overwrite bool) (*WriteResult, error) {
	ti, err := d.LocateTable(marker)
	if err != nil {
		return nil, err
	}
	t := d.Tables[ti]

	headers := HeaderMap(t)
	if missing := MissingHeaders(headers); len(missing) > 0 {
		return nil, fmt.Errorf("table[%d] missing headers %v", ti, missing)
	}

	dataStart := HeaderRow + 1
	existing := FindSiteRows(t, headers, values.Site, dataStart)
	if len(existing) > 0 {
		if !overwrite {
			return nil, fmt.Errorf("site %q already present at row %d (overwrite not requested)", values.Site, existing[0]+1)
		}
		row := existing[0]
		setRow(t, row, headers, values)
		return &WriteResult{Action: ActionReplaced, Row: row}, nil
	}

	row := NextBlankRow(t, headers, dataStart)
	if row < 0 {
		row = appendRow(t)
	}
	setRow(t, row, headers, values)
	return &WriteResult{Action: ActionAppended, Row: row}, nil
}

func setRow(t *Table, row int, headers map[string]int, values RowValues) {
	t.SetCell(row, headers[HeaderSite], values.Site)
	t.SetCell(row, headers[HeaderPrice], FormatPrice(values.Price))
	t.SetCell(row, headers[HeaderAddress], values.Address)
	t.SetCell(row, headers[HeaderReadyBy], FormatReadyBy(values.ReadyBy))
	t.SetCell(row, headers[HeaderNotes], values.Notes)
}

// appendRow adds a blank row matching the width of the last row and returns
// its index.
func appendRow(t *Table) int {
	width := 0
	if len(t.Rows) > 0 {
		width = len(t.Rows[len(t.Rows)-1])
	}
	t.Rows = append(t.Rows, make([]string, width))
	return len(t.Rows) - 1
}
