package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/doc"
	"github.com/brickline-labs/pricesheet/internal/drive"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect the template bound to a mapping",
		Long: `Show the template's tables, header map, marker location, and a data
preview for the template bound to a (community, floorplan) mapping.
Useful when certification fails and the reason is not obvious.`,
		Example: `  pricesheet inspect --community Isla --floorplan 2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd)
		},
	}
	cmd.Flags().String("community", "", "Community of the mapping to inspect")
	cmd.Flags().String("floorplan", "", "Floorplan of the mapping to inspect")
	_ = cmd.MarkFlagRequired("community")
	_ = cmd.MarkFlagRequired("floorplan")
	return cmd
}

func runInspect(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	community, _ := cmd.Flags().GetString("community")
	floorplan, _ := cmd.Flags().GetString("floorplan")

	mapping, err := findMapping(cmd, cmdCtx, community, floorplan)
	if err != nil {
		return err
	}

	data, err := cmdCtx.Store.Read(cmd.Context(), drive.FolderTemplates, mapping.FileName)
	if err != nil {
		return err
	}
	d, err := doc.Open(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Template: %s (%q, %d tables)\n", mapping.FileName, d.Name, len(d.Tables))
	fmt.Fprintf(out, "Marker:   %s\n", mapping.InvisibleCode)

	refs := d.FindMarker(mapping.InvisibleCode)
	if len(refs) == 0 {
		fmt.Fprintln(out, "Marker not found in any cell")
	}
	for _, ref := range refs {
		fmt.Fprintf(out, "Marker at table %d, row %d, col %d\n", ref.TableIndex, ref.Row, ref.Col)
	}

	for i, tbl := range d.Tables {
		headers := doc.HeaderMap(tbl)
		fmt.Fprintf(out, "\nTable %d: %d rows\n", i, len(tbl.Rows))
		if missing := doc.MissingHeaders(headers); len(missing) > 0 {
			fmt.Fprintf(out, "Missing headers: %v\n", missing)
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		// Preview the first rows only; big tables are noise here.
		preview := len(tbl.Rows)
		if preview > 8 {
			preview = 8
		}
		for r := 0; r < preview; r++ {
			row := make(table.Row, len(tbl.Rows[r]))
			for c, cell := range tbl.Rows[r] {
				row[c] = cell
			}
			t.AppendRow(row)
		}
		t.Render()
		if preview < len(tbl.Rows) {
			fmt.Fprintf(out, "(%d more rows)\n", len(tbl.Rows)-preview)
		}
	}
	return nil
}
