package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vesseleye/internal/models"
)

func NewVesselCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vessel",
		Short:   "Vessel commands",
		Aliases: []string{"vessels", "v"},
	}

	cmd.AddCommand(newVesselListCommand())
	cmd.AddCommand(newVesselLatestCommand())

	return cmd
}

func newVesselListCommand() *cobra.Command {
	var (
		search string
		atSea  bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List vessels",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}

			var filter *bool
			if cmd.Flags().Changed("at-sea") {
				filter = &atSea
			}
			vessels, err := c.ListVessels(cmd.Context(), search, filter)
			if err != nil {
				return fmt.Errorf("failed to list vessels: %w", err)
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tIMEI\tAT SEA\tPOSITION\tLAST CHECK-IN\tEMERGENCY")
			for _, v := range vessels {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\t%t\n",
					v.ID,
					v.Name,
					v.IMEI,
					v.AtSea,
					formatPosition(&v),
					formatTime(v.LastCheckInAt),
					v.EmergencyAlertActive,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Match name or IMEI")
	cmd.Flags().BoolVar(&atSea, "at-sea", false, "Filter by at-sea flag")
	return cmd
}

func formatPosition(v *models.Vessel) string {
	pos, ok := v.LatestPosition()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.5f,%.5f", pos.Latitude, pos.Longitude)
}

func newVesselLatestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "latest [vessel_id]",
		Short: "Show the latest telemetry report of a vessel",
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
			r, err := c.LatestTelemetry(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get telemetry: %w", err)
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "Report:\t%d\n", r.ID)
			fmt.Fprintf(w, "Timestamp:\t%s\n", formatTime(&r.Timestamp))
			fmt.Fprintf(w, "Received:\t%s\n", formatTime(&r.ReceivedAt))
			if pos, ok := r.Position(); ok {
				fmt.Fprintf(w, "Position:\t%.5f,%.5f\n", pos.Latitude, pos.Longitude)
			}
			for k, v := range r.Fields {
				fmt.Fprintf(w, "%s:\t%v\n", k, v)
			}
			return w.Flush()
		},
	}
}
