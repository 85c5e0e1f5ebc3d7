package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jask/pocketbook/internal/ledger"
	"github.com/jask/pocketbook/internal/testdata"
)

func (c *CLI) newSeedCmd() *cobra.Command {
	var (
		days int
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample accounts and transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := testdata.Seed(cmd.Context(), c.app.Repos, time.Now().UTC(), days, seed)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts and %d transactions\n", res.Accounts, res.Transactions)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 10, "Number of days of history to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	return cmd
}

func (c *CLI) newAdjustCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "adjust <account> <balance>",
		Short: "Set an account balance, recording the difference as an adjustment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			acct, err := c.app.Ledger.FindAccount(ctx, args[0])
			if err != nil {
				return err
			}
			target, err := ledger.ParseAmount(args[1])
			if err != nil {
				return err
			}
			txn, err := c.app.Ledger.AdjustBalance(ctx, acct.ID, target, note)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (adjustment %s)\n",
				acct.Name, ledger.FormatCents(acct.BalanceCents), ledger.FormatCents(target), ledger.FormatCents(txn.AmountCents))
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Note stored (encrypted) on the adjustment")
	return cmd
}

func (c *CLI) newTransferCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "Move money between two accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			from, err := c.app.Ledger.FindAccount(ctx, args[0])
			if err != nil {
				return err
			}
			to, err := c.app.Ledger.FindAccount(ctx, args[1])
			if err != nil {
				return err
			}
			amount, err := ledger.ParseAmount(args[2])
			if err != nil {
				return err
			}
			id, err := c.app.Ledger.Transfer(ctx, from.ID, to.ID, amount, note)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "transferred %s from %s to %s (%s)\n",
				ledger.FormatCents(amount), from.Name, to.Name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Note stored (encrypted) on both legs")
	return cmd
}

func (c *CLI) newCategorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <transaction-id> <category>",
		Short: "Assign a category to a transaction, tolerating small typos",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.app.Ledger.Categorize(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], cat.Name)
			return nil
		},
	}
}
