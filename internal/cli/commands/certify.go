package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/engine"
	"github.com/brickline-labs/pricesheet/internal/faults"
	"github.com/brickline-labs/pricesheet/internal/sheet"
)

// NewCertifyCommand creates the certify command.
func NewCertifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certify",
		Short: "Certify a template's structural contract",
		Long: `Run the full check sequence against the template bound to a
(community, floorplan) mapping: marker presence and uniqueness, header
labels and order, row capacity, and filename resolution. All checks run
even when an early one fails, so one pass surfaces every defect.`,
		Example: `  pricesheet certify --community Isla --floorplan 2
  pricesheet certify --all`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCertify(cmd)
		},
	}
	cmd.Flags().String("community", "", "Community of the mapping to certify")
	cmd.Flags().String("floorplan", "", "Floorplan of the mapping to certify")
	cmd.Flags().Bool("all", false, "Certify every MAPPING row")
	return cmd
}

func runCertify(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	community, _ := cmd.Flags().GetString("community")
	floorplan, _ := cmd.Flags().GetString("floorplan")
	all, _ := cmd.Flags().GetBool("all")

	if all {
		return certifyAll(cmd, cmdCtx)
	}
	if community == "" || floorplan == "" {
		return fmt.Errorf("either --all or both --community and --floorplan are required")
	}

	mapping, err := findMapping(cmd, cmdCtx, community, floorplan)
	if err != nil {
		return err
	}

	eng := cmdCtx.Engine(engine.Options{})
	report, err := eng.Certifier().Certify(cmd.Context(), *mapping)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Check", "Result", "Reason"})
	for i, c := range report.Checks {
		result := "PASS"
		if !c.Passed {
			result = "FAIL"
		}
		t.AppendRow(table.Row{i + 1, c.Name, result, c.Reason})
	}
	t.Render()

	if report.Cached {
		fmt.Fprintln(cmd.OutOrStdout(), "(served from certification cache)")
	}
	return report.Err()
}

// certifyAll runs the check sequence against every MAPPING row and prints
// one summary line per template.
func certifyAll(cmd *cobra.Command, cmdCtx *CommandContext) error {
	records, err := cmdCtx.Tabs.Records(cmd.Context(), sheet.MappingTab)
	if err != nil {
		return err
	}
	mappings := sheet.ParseMapping(records, cmdCtx.Logger)
	if len(mappings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No MAPPING rows to certify")
		return nil
	}

	certifier := cmdCtx.Engine(engine.Options{}).Certifier()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Community", "Floorplan", "Template", "Result", "Detail"})

	var failed int
	for _, m := range mappings {
		report, err := certifier.Certify(cmd.Context(), m)
		if err != nil {
			failed++
			t.AppendRow(table.Row{m.Community, m.Floorplan, m.FileName, "ERROR", err.Error()})
			continue
		}
		if rerr := report.Err(); rerr != nil {
			failed++
			var names []string
			for _, c := range report.Failures() {
				names = append(names, c.Name)
			}
			t.AppendRow(table.Row{m.Community, m.Floorplan, m.FileName, "FAIL", strings.Join(names, "; ")})
			continue
		}
		detail := ""
		if report.Cached {
			detail = "cached"
		}
		t.AppendRow(table.Row{m.Community, m.Floorplan, m.FileName, "PASS", detail})
	}
	t.Render()

	if failed > 0 {
		return faults.New(faults.ClassCertification, "%d of %d template(s) failed certification", failed, len(mappings))
	}
	return nil
}

// findMapping resolves a (community, floorplan) pair to its single
// MAPPING row.
func findMapping(cmd *cobra.Command, cmdCtx *CommandContext, community, floorplan string) (*sheet.MappingRow, error) {
	records, err := cmdCtx.Tabs.Records(cmd.Context(), sheet.MappingTab)
	if err != nil {
		return nil, err
	}
	mappings := sheet.FindMappings(sheet.ParseMapping(records, cmdCtx.Logger), community, floorplan)
	switch len(mappings) {
	case 0:
		return nil, faults.New(faults.ClassNoMappingFound,
			"no MAPPING row for (%s, %s)", community, floorplan)
	case 1:
		return &mappings[0], nil
	default:
		return nil, faults.New(faults.ClassAmbiguousMapping,
			"%d MAPPING rows match (%s, %s)", len(mappings), community, floorplan)
	}
}
