package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/engine"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered release files and their manifest status",
		Example: `  # Show everything waiting in the inbox
  pricesheet list

  # Restrict to one community
  pricesheet list --community Isla`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}
	filterFlags(cmd)
	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine(engine.Options{Filters: filtersFromFlags(cmd)})
	releases, invalid, err := eng.Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Community", "Homesite", "Floorplan", "Status", "Attempts"})

	for _, r := range releases {
		status, attempts := "NEW", 0
		if entry, err := cmdCtx.States.LookupManifest(r.Key()); err == nil && entry != nil {
			status = string(entry.Status)
			attempts = entry.Attempts
		}
		t.AppendRow(table.Row{r.FileName, r.Community, r.Homesite, r.Floorplan, status, attempts})
	}
	for _, inv := range invalid {
		t.AppendRow(table.Row{inv.FileName, "-", "-", "-", "INVALID NAME", 0})
	}
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "%d release(s), %d with invalid names\n", len(releases), len(invalid))
	return nil
}
