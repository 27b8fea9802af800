package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewLockCommand creates the lock command group.
func NewLockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or reset the run lock",
	}
	cmd.AddCommand(newLockStatusCommand())
	cmd.AddCommand(newLockResetCommand())
	return cmd
}

func newLockStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current run lock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			lock, err := cmdCtx.States.CurrentLock()
			if err != nil {
				return err
			}
			if lock == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Lock not held")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Held by %s\nAcquired  %s\nHeartbeat %s (%s ago)\n",
				lock.Holder,
				lock.AcquiredAt.Local().Format(time.DateTime),
				lock.HeartbeatAt.Local().Format(time.DateTime),
				time.Since(lock.HeartbeatAt).Round(time.Second))
			return nil
		},
	}
}

func newLockResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Force-clear the run lock",
		Long: `Remove the run lock regardless of holder. Only do this after
confirming the previous run is dead: resetting under a live run allows
double-processing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			lock, err := cmdCtx.States.CurrentLock()
			if err != nil {
				return err
			}
			if lock == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Lock not held, nothing to reset")
				return nil
			}
			if err := cmdCtx.States.ResetLock(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared lock held by %s (last heartbeat %s ago)\n",
				lock.Holder, time.Since(lock.HeartbeatAt).Round(time.Second))
			return nil
		},
	}
}
