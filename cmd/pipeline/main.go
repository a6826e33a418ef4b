package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title ETL Scheduler API
// @version 1.0
// @description Control API for the scheduled sales ETL job.
// @BasePath /
func main() {
	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Scheduled extract, transform and load job",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewRunCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
