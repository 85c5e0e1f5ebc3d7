package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/cache"
)

// ErrPreloadFailed is returned by preload when the cycle ends in Error.
var ErrPreloadFailed = zerr.New("preload failed")

type preloadReport struct {
	State        string                   `json:"state"`
	Categories   int                      `json:"categories"`
	Accounts     int                      `json:"accounts"`
	Transactions int                      `json:"transactions"`
	Metrics      cache.PerformanceMetrics `json:"metrics"`
}

func (c *CLI) newPreloadCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Run one preload cycle and report what was cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := c.app.Cache
			out := cmd.OutOrStdout()

			updates, cancel := mgr.State().Subscribe()
			defer cancel()
			mgr.StartPreloading()

			var progress io.Writer = out
			if asJSON {
				progress = io.Discard
			}
			state, err := untilSettled(cmd.Context(), progress, updates)
			if err != nil {
				return err
			}

			report := preloadReport{
				State:        state.String(),
				Categories:   mgr.CategoryStream().Value().Len(),
				Accounts:     mgr.AccountStream().Value().Len(),
				Transactions: mgr.TransactionStream().Value().Len(),
				Metrics:      mgr.PerformanceMetrics(),
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintf(out, "categories=%d accounts=%d transactions=%d\n",
					report.Categories, report.Accounts, report.Transactions)
				for _, op := range []string{cache.OpCategories, cache.OpAccounts, cache.OpTransactions, cache.OpWarmUp} {
					if d, ok := report.Metrics.Durations[op]; ok {
						_, _ = fmt.Fprintf(out, "%-12s %s\n", op, d)
					}
				}
			}

			if state.Phase == cache.PhaseError {
				return zerr.With(zerr.Wrap(ErrPreloadFailed, state.Message), "state", state.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func (c *CLI) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the cache warm and print lifecycle changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := c.app.Cache
			out := cmd.OutOrStdout()

			updates, cancel := mgr.State().Subscribe()
			defer cancel()
			mgr.Start()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case s, ok := <-updates:
					if !ok {
						return nil
					}
					_, _ = fmt.Fprintf(out, "state: %s\n", s)
					if s.Phase == cache.PhaseCompleted {
						_, _ = fmt.Fprintf(out, "categories=%d accounts=%d transactions=%d\n",
							mgr.CategoryStream().Value().Len(),
							mgr.AccountStream().Value().Len(),
							mgr.TransactionStream().Value().Len())
					}
				}
			}
		},
	}
}

// untilSettled prints each lifecycle update to w and returns the first settled state.
func untilSettled(ctx context.Context, w io.Writer, updates <-chan cache.State) (cache.State, error) {
	for {
		select {
		case <-ctx.Done():
			return cache.State{}, ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return cache.State{}, context.Canceled
			}
			_, _ = fmt.Fprintf(w, "state: %s\n", s)
			if s.Settled() {
				return s, nil
			}
		}
	}
}
