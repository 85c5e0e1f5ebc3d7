package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/database"
)

// ErrNotConfirmed is returned by destructive commands run without --yes.
var ErrNotConfirmed = zerr.New("refusing to continue without --yes")

func (c *CLI) newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <path>",
		Short: "Write a consistent copy of the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Maintenance.Backup(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", args[0])
			return nil
		},
	}
}

func (c *CLI) newRestoreCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <path>",
		Short: "Replace all data with the contents of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return ErrNotConfirmed
			}
			if err := c.app.Maintenance.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restored from %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm replacing existing data")
	return cmd
}

func (c *CLI) newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all accounts, categories and transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return ErrNotConfirmed
			}
			ctx := cmd.Context()
			if err := c.app.Maintenance.Reset(ctx); err != nil {
				return err
			}
			if err := database.SeedDefaults(ctx, c.app.DB); err != nil {
				return zerr.Wrap(err, "restore default categories")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "all data deleted; default categories restored")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deleting everything")
	return cmd
}
