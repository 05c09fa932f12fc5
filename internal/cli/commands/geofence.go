package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vesseleye/internal/models"
)

func NewGeofenceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "geofence",
		Short:   "Geofence commands",
		Aliases: []string{"gf"},
	}
	cmd.AddCommand(newGeofenceCheckCommand())
	return cmd
}

func newGeofenceCheckCommand() *cobra.Command {
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "check [vessel_id]",
		Short: "Check a position against a vessel's geofences",
		Long: `Check a position against a vessel's geofences. Without --lat and --lon
the vessel's last known position is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var pos *models.Position
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
					return fmt.Errorf("--lat and --lon must be given together")
				}
				pos = &models.Position{Latitude: lat, Longitude: lon}
			}

			c, err := apiClient()
			if err != nil {
				return err
			}
			res, err := c.EvaluateGeofences(cmd.Context(), id, pos)
			if err != nil {
				return fmt.Errorf("failed to evaluate geofences: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(res.Violations) == 0 {
				fmt.Fprintf(out, "No violations at %.5f,%.5f\n", res.Position.Latitude, res.Position.Longitude)
				return nil
			}
			w := table(out)
			fmt.Fprintln(w, "GEOFENCE\tTYPE\tMESSAGE")
			for _, v := range res.Violations {
				fmt.Fprintf(w, "%d\t%s\t%s\n", v.GeofenceID, v.Type, v.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in degrees")
	return cmd
}
