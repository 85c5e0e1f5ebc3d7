package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jask/pocketbook/internal/ledger"
)

func (c *CLI) newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage monthly category budgets",
	}
	cmd.AddCommand(c.newBudgetSetCmd(), c.newBudgetShowCmd())
	return cmd
}

func (c *CLI) newBudgetSetCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "set <category> <limit>",
		Short: "Set a category's monthly limit, or override it for one month with --month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := ledger.ParseAmount(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if month != "" {
				if err := c.app.Ledger.SetBudgetOverride(ctx, args[0], month, limit); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s limit for %s set to %s\n", args[0], month, ledger.FormatCents(limit))
				return nil
			}
			if _, err := c.app.Ledger.SetBudget(ctx, args[0], limit); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s limit set to %s\n", args[0], ledger.FormatCents(limit))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month to override (YYYY-MM)")
	return cmd
}

func (c *CLI) newBudgetShowCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show spend against limit per budgeted category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month == "" {
				month = c.app.Ledger.CurrentMonth()
			}
			lines, err := c.app.Ledger.BudgetLines(cmd.Context(), month)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), budgetTable(lines).Render())
			return err
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month to report (YYYY-MM), defaults to the current month")
	return cmd
}

var (
	budgetCellStyle = lipgloss.NewStyle().Padding(0, 1)
	budgetOverStyle = budgetCellStyle.Foreground(lipgloss.Color("#f38ba8"))
)

func budgetTable(lines []ledger.BudgetLine) *table.Table {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{
			l.CategoryName,
			ledger.FormatCents(l.Budgeted),
			ledger.FormatCents(l.Spent),
			ledger.FormatCents(l.Remaining),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CATEGORY", "BUDGETED", "SPENT", "REMAINING").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row >= 0 && row < len(lines) && lines[row].OverBudget {
				return budgetOverStyle
			}
			return budgetCellStyle
		})
}
