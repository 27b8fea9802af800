package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/engine"
	"github.com/brickline-labs/pricesheet/internal/state"
)

// NewProcessCommand creates the process command.
func NewProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process new release files",
		Long: `Discover release files in the new_releases folder, match them against
the CONTROL and MAPPING tabs, certify the target templates, and upload
the rendered price-sheet pair.

By default the command polls on an interval until interrupted. Use
--once for a single pass.`,
		Example: `  # Poll for releases until interrupted
  pricesheet process

  # One pass, then exit
  pricesheet process --once

  # Preview without uploading
  pricesheet process --once --dry-run

  # Reprocess a release the manifest already marks done
  pricesheet process --once --overwrite-existing --community Isla --homesite 101`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(cmd)
		},
	}

	filterFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "Simulate processing without uploading")
	cmd.Flags().Bool("once", false, "Run a single cycle instead of polling")
	cmd.Flags().Bool("overwrite-existing", false, "Reprocess releases already marked SUCCEEDED")
	return cmd
}

func runProcess(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	once, _ := cmd.Flags().GetBool("once")
	overwrite, _ := cmd.Flags().GetBool("overwrite-existing")

	eng := cmdCtx.Engine(engine.Options{
		Filters:   filtersFromFlags(cmd),
		DryRun:    dryRun,
		Overwrite: overwrite,
	})

	report, err := eng.Poll(cmd.Context(), once)
	if report != nil {
		printReport(cmd, report)
	}
	// An interrupt while polling is a clean shutdown, not a failure.
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if report != nil && report.HadFailures() {
		return fmt.Errorf("%d release(s) failed", report.Failed+len(report.Invalid))
	}
	return nil
}

func printReport(cmd *cobra.Command, report *engine.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d succeeded, %d failed, %d skipped, %d dry-run, %d invalid (%s)\n",
		report.RunID, report.Succeeded, report.Failed, report.Skipped, report.DryRun,
		len(report.Invalid), report.Duration.Round(time.Millisecond))
	for _, res := range report.Results {
		switch res.Outcome {
		case state.OutcomeFailed:
			fmt.Fprintf(out, "  FAIL %s: %v\n", res.Release.FileName, res.Err)
		case state.OutcomeSkipped:
			fmt.Fprintf(out, "  SKIP %s (already processed)\n", res.Release.FileName)
		default:
			fmt.Fprintf(out, "  OK   %s -> %s\n", res.Release.FileName, res.DocOutput)
		}
	}
	for _, inv := range report.Invalid {
		fmt.Fprintf(out, "  FAIL %s: %v\n", inv.FileName, inv.Err)
	}
}
