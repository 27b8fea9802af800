package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the processing history",
		Long:  `Print the append-only audit log of release outcomes, newest first.`,
		Example: `  # Last 50 outcomes
  pricesheet audit

  # Everything
  pricesheet audit --limit 0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd)
		},
	}
	cmd.Flags().Int("limit", 50, "Number of entries to show (0 for all)")
	return cmd
}

func runAudit(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := cmdCtx.States.ListAudit(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit entries")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"When", "Release", "Outcome", "Reason", "Run"})
	for _, e := range entries {
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		t.AppendRow(table.Row{
			e.CreatedAt.Local().Format(time.DateTime),
			e.ReleaseKey, e.Outcome, e.Reason, run,
		})
	}
	t.Render()
	return nil
}
