package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vesseleye/internal/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "vesseleye-cli",
	Short: "VesselEye CLI - operate the fleet monitoring service",
	Long: `VesselEye CLI talks to a running VesselEye server.
Set VESSELEYE_API_URL and VESSELEYE_API_KEY to point it at the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(commands.NewFetcherCommand())
	rootCmd.AddCommand(commands.NewAlertCommand())
	rootCmd.AddCommand(commands.NewRuleCommand())
	rootCmd.AddCommand(commands.NewVesselCommand())
	rootCmd.AddCommand(commands.NewGeofenceCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewAPIKeyCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
