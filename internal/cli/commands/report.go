package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func NewReportCommand() *cobra.Command {
	var (
		period time.Duration
		output string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize alerts over a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			end := time.Now().UTC()
			start := end.Add(-period)

			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				if err := c.ExportAlertReport(cmd.Context(), &start, &end, f); err != nil {
					return fmt.Errorf("failed to export report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
				return nil
			}

			data, err := c.AlertReport(cmd.Context(), &start, &end)
			if err != nil {
				return fmt.Errorf("failed to get report: %w", err)
			}

			out := cmd.OutOrStdout()
			s := data.AlertSummary
			fmt.Fprintf(out, "Alerts %s to %s: %d total, %d active, %d acknowledged, %d resolved\n",
				formatTime(&data.StartTime), formatTime(&data.EndTime),
				s.TotalAlerts, s.ActiveAlerts, s.AcknowledgedAlerts, s.ResolvedAlerts)

			w := table(out)
			fmt.Fprintln(w, "RULE\tALERTS\tVESSELS")
			for _, r := range s.TopRules {
				fmt.Fprintf(w, "%s\t%d\t%v\n", r.RuleName, r.AlertCount, r.TopVessels)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&period, "period", 24*time.Hour, "Report period ending now")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the HTML report to this file")
	return cmd
}
