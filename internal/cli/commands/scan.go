package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/doc"
	"github.com/brickline-labs/pricesheet/internal/drive"
)

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a template for marker-like cells",
		Long: `List every cell in a template file whose text contains the marker
prefix. Helps track down duplicated or misplaced invisible codes.`,
		Example: `  pricesheet scan --file-name isla_plan2.json
  pricesheet scan --file-name isla_plan2.json --prefix "[["`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd)
		},
	}
	cmd.Flags().String("file-name", "", "Template file to scan")
	cmd.Flags().String("prefix", "[[", "Marker prefix to look for")
	_ = cmd.MarkFlagRequired("file-name")
	return cmd
}

func runScan(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	fileName, _ := cmd.Flags().GetString("file-name")
	prefix, _ := cmd.Flags().GetString("prefix")

	data, err := cmdCtx.Store.Read(cmd.Context(), drive.FolderTemplates, fileName)
	if err != nil {
		return err
	}
	d, err := doc.Open(data)
	if err != nil {
		return err
	}

	refs := d.ScanMarkers(prefix)
	if len(refs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No cells containing %q in %s\n", prefix, fileName)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Row", "Col", "Text"})
	for _, ref := range refs {
		t.AppendRow(table.Row{ref.TableIndex, ref.Row, ref.Col, ref.Text})
	}
	t.Render()
	return nil
}
