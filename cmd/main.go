package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/housou/internal/config"
)

var version = "v0.1.0"

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "housou",
		Short: "Housou shows the weekly anime broadcast schedule",
		Long: `Housou reads the season's broadcasts from the schedule API and lays them out
by weekday, either as a web page (serve) or straight in the terminal (schedule).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for version command
			if cmd.Name() == "version" {
				return nil
			}
			config.SetConfigFile(configFile)
			if err := config.Load(); err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newScheduleCmd(),
		newDetailsCmd(),
		newSelectionsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Housou",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Housou %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
