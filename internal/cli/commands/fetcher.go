package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/vesseleye/internal/api/client"
	"github.com/vesseleye/internal/monitor"
)

func NewFetcherCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fetcher",
		Short:   "Control the telemetry fetcher",
		Aliases: []string{"f"},
	}

	cmd.AddCommand(newFetcherStatusCommand())
	cmd.AddCommand(newFetcherTriggerCommand())
	cmd.AddCommand(newFetcherStartCommand())
	cmd.AddCommand(newFetcherStopCommand())
	cmd.AddCommand(newFetcherClearCacheCommand())

	return cmd
}

func newFetcherStatusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show fetcher status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}

			if watch {
				ticker := time.NewTicker(5 * time.Second)
				defer ticker.Stop()

				for {
					if err := displayStatus(cmd.Context(), cmd.OutOrStdout(), c); err != nil {
						return err
					}
					select {
					case <-ticker.C:
					case <-cmd.Context().Done():
						return nil
					}
					fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")
				}
			}

			return displayStatus(cmd.Context(), cmd.OutOrStdout(), c)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh the status every 5 seconds")
	return cmd
}

func displayStatus(ctx context.Context, out io.Writer, c *client.Client) error {
	st, err := c.FetcherStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get fetcher status: %w", err)
	}

	w := table(out)
	fmt.Fprintf(w, "Running:\t%t\n", st.Running)
	fmt.Fprintf(w, "Polling interval:\t%.0f min\n", st.PollingIntervalMinutes)
	fmt.Fprintf(w, "Last fetch:\t%s\n", formatTime(st.LastFetchTime))
	fmt.Fprintf(w, "Total cycles:\t%d\n", st.TotalFetchCycles)
	fmt.Fprintf(w, "Identity cache:\t%d valid / %d expired (hit ratio %.2f)\n",
		st.CacheStats.Valid, st.CacheStats.Expired, st.CacheStats.HitRatio)
	return w.Flush()
}

func newFetcherTriggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Run one fetch cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			res, err := c.TriggerFetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to trigger fetch: %w", err)
			}
			return printCycle(cmd.OutOrStdout(), res)
		},
	}
}

func printCycle(out io.Writer, res *monitor.CycleResult) error {
	fmt.Fprintf(out, "Cycle %s: %d vessels, %d fetched, %d stored in %s\n",
		res.ID, res.VesselsProcessed, res.SuccessfulFetches, res.EntriesStored, res.Duration)

	w := table(out)
	fmt.Fprintln(w, "VESSEL\tOK\tSTORED\tALERTS\tREASON")
	for _, r := range res.Results {
		reason := r.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%s\n", r.Vessel, r.Success, r.Stored, r.AlertsTriggered, reason)
	}
	return w.Flush()
}

func newFetcherStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start scheduled fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			res, err := c.StartFetcher(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to start fetcher: %w", err)
			}
			if res.Changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Fetcher started")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Fetcher is already running")
			}
			return nil
		},
	}
}

func newFetcherStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop scheduled fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			res, err := c.StopFetcher(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to stop fetcher: %w", err)
			}
			if res.Changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Fetcher stopped")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Fetcher is not running")
			}
			return nil
		},
	}
}

func newFetcherClearCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop cached vessel identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			if err := c.ClearCache(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Identity cache cleared")
			return nil
		},
	}
}
