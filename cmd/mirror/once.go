package main

import (
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single mirroring pass and exit",
	Long: `Run exactly one pass: bring the destination in line with the source,
then exit. Uses the same settings, lock and log as a continuous run.`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

// runOnce runs one pass.
func runOnce(cmd *cobra.Command, _ []string) error {
	return runSessionCommand(cmd.Context(), true)
}
