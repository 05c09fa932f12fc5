package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/vesseleye/internal/alert"
	"github.com/vesseleye/internal/models"
)

func NewAlertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alert",
		Short:   "Alert management commands",
		Aliases: []string{"alerts", "a"},
	}

	cmd.AddCommand(newAlertListCommand())
	cmd.AddCommand(newAlertStatsCommand())
	cmd.AddCommand(newAlertAcknowledgeCommand())
	cmd.AddCommand(newAlertResolveCommand())

	return cmd
}

func newAlertListCommand() *cobra.Command {
	var (
		status   string
		vesselID uint
		since    time.Duration
		limit    int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alert history",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}

			filter := alert.AlertFilter{VesselID: vesselID, Status: models.AlertStatus(status), Limit: limit}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			alerts, err := c.ListAlerts(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tVESSEL\tRULE\tSTATUS\tREPEATS\tFIRST\tLAST\tTEXT")
			for _, a := range alerts {
				fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\t%s\t%s\t%s\n",
					a.ID,
					a.VesselID,
					a.RuleID,
					a.Status,
					a.RepeatCount,
					formatTime(&a.FirstTriggeredAt),
					formatTime(&a.LastTriggeredAt),
					a.AlertText,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active/acknowledged/resolved)")
	cmd.Flags().UintVar(&vesselID, "vessel", 0, "Filter by vessel ID")
	cmd.Flags().DurationVar(&since, "since", 0, "Only alerts first triggered within this duration")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of alerts")
	return cmd
}

func newAlertStatsCommand() *cobra.Command {
	var vesselID uint

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show alert counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			stats, err := c.AlertStats(cmd.Context(), vesselID)
			if err != nil {
				return fmt.Errorf("failed to get alert stats: %w", err)
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "TOTAL\tACTIVE\tACKNOWLEDGED\tRESOLVED")
			fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", stats.Total, stats.Active, stats.Acknowledged, stats.Resolved)
			return w.Flush()
		},
	}

	cmd.Flags().UintVar(&vesselID, "vessel", 0, "Restrict to one vessel")
	return cmd
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func newAlertAcknowledgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "acknowledge [alert_id]",
		Short:   "Acknowledge an alert",
		Aliases: []string{"ack"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiClient()
			if err != nil {
				return err
			}
			if _, err := c.AcknowledgeAlert(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to acknowledge alert: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Alert %d acknowledged\n", id)
			return nil
		},
	}
}

func newAlertResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [alert_id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiClient()
			if err != nil {
				return err
			}
			if _, err := c.ResolveAlert(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to resolve alert: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Alert %d resolved\n", id)
			return nil
		},
	}
}
