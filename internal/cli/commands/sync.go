package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/drive"
)

// NewSyncFoldersCommand creates the sync-folders command.
func NewSyncFoldersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-folders",
		Short: "Verify and cache the configured folder bindings",
		Long: `Check that every configured folder is reachable and record the
verified bindings in the local state so later diagnostics can report
what the engine was pointed at.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSyncFolders(cmd)
		},
	}
}

func runSyncFolders(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	failures := 0
	for _, label := range drive.Labels {
		verifyErr := cmdCtx.Store.Verify(cmd.Context(), label)
		path := cmdCtx.Store.Path(label)
		if err := cmdCtx.States.SaveFolder(label, path, verifyErr == nil); err != nil {
			return err
		}
		if verifyErr != nil {
			failures++
			fmt.Fprintf(out, "FAIL %-20s %s (%v)\n", label, path, verifyErr)
			continue
		}
		fmt.Fprintf(out, "OK   %-20s %s\n", label, path)
	}
	if failures > 0 {
		return fmt.Errorf("%d folder(s) failed verification", failures)
	}
	return nil
}
