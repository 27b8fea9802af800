package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/sheet"
)

// NewHealthCommand creates the health command.
func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check every dependency the engine needs",
		Long: `Walk the full dependency chain: configuration, state database, both
tabular tabs, every document-store folder, and every template a
MAPPING row points at. Exit code is non-zero if anything is unreachable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd)
		},
	}
}

func runHealth(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	cfg := GetConfig(cmd.Context())
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "FAIL configuration: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "OK   configuration")

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		fmt.Fprintf(out, "FAIL state database: %v\n", err)
		return err
	}
	defer cleanup()
	fmt.Fprintf(out, "OK   state database (%s)\n", cfg.StatePath)

	failures := 0
	var mappingRecords []map[string]string
	for _, tab := range []string{sheet.ControlTab, sheet.MappingTab} {
		records, err := cmdCtx.Tabs.Records(cmd.Context(), tab)
		if err != nil {
			failures++
			fmt.Fprintf(out, "FAIL tab %s: %v\n", tab, err)
			continue
		}
		if tab == sheet.MappingTab {
			mappingRecords = records
		}
		fmt.Fprintf(out, "OK   tab %s\n", tab)
	}

	for _, label := range drive.Labels {
		if err := cmdCtx.Store.Verify(cmd.Context(), label); err != nil {
			failures++
			fmt.Fprintf(out, "FAIL folder %s: %v\n", label, err)
			continue
		}
		fmt.Fprintf(out, "OK   folder %s (%s)\n", label, cmdCtx.Store.Path(label))
	}

	for _, m := range sheet.ParseMapping(mappingRecords, cmdCtx.Logger) {
		_, ok, err := cmdCtx.Store.Stat(cmd.Context(), drive.FolderTemplates, m.FileName)
		switch {
		case err != nil:
			failures++
			fmt.Fprintf(out, "FAIL template %s: %v\n", m.FileName, err)
		case !ok:
			failures++
			fmt.Fprintf(out, "FAIL template %s: not found\n", m.FileName)
		default:
			fmt.Fprintf(out, "OK   template %s\n", m.FileName)
		}
	}

	if lock, err := cmdCtx.States.CurrentLock(); err == nil && lock != nil {
		fmt.Fprintf(out, "NOTE run lock held by %s since %s\n", lock.Holder, lock.AcquiredAt)
	}

	if failures > 0 {
		return fmt.Errorf("%d dependency check(s) failed", failures)
	}
	fmt.Fprintln(out, "All checks passed")
	return nil
}
