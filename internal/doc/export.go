package doc

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ExportFixed renders the fixed-layout form of a document: each table drawn
// as a bordered text grid. The editable form is the saved JSON document; this
// is the companion artifact uploaded alongside it.
func ExportFixed(d *Document) []byte {
	var b strings.Builder
	for i, t := range d.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		w := table.NewWriter()
		w.SetStyle(table.StyleLight)
		for _, row := range t.Rows {
			cells := make(table.Row, len(row))
			for c, v := range row {
				cells[c] = v
			}
			w.AppendRow(cells)
		}
		b.WriteString(w.Render())
		b.WriteString("\n")
	}
	return []byte(b.String())
}
