package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/mirror/pkg/mirror/config"
	"github.com/jamesainslie/mirror/pkg/mirror/manifest"
	"github.com/jamesainslie/mirror/pkg/mirror/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View pass history",
	Long: `View the record of mirroring passes, newest first.

Each pass writes one entry with its counts, duration and any error.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific pass",
	Long:  `Display a single pass by its ID. A unique ID prefix is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit  int
	historyFormat string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of entries to show")
	historyCmd.PersistentFlags().StringVarP(&historyFormat, "output", "o", "pretty",
		"output format: "+strings.Join(output.Available(), ", "))

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getManifest returns the manifest in the configured history directory.
func getManifest() (*manifest.Manifest, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	dir := cfg.History.Path
	if dir == "" {
		dir = config.DefaultHistoryDir()
	}
	m, err := manifest.New(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	return m, cfg, nil
}

// runHistory lists recent passes.
func runHistory(cmd *cobra.Command, _ []string) error {
	formatter, err := output.Get(historyFormat)
	if err != nil {
		return err
	}

	m, _, err := getManifest()
	if err != nil {
		return err
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 && historyFormat == "pretty" {
		printInfo("No history entries found.")
		printInfo("Run 'mirror once -s <source> -d <destination>' to record a pass.")
		return nil
	}

	return printResult(cmd, formatter, &output.Result{History: entries})
}

// runHistoryShow displays a single pass.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	formatter, err := output.Get(historyFormat)
	if err != nil {
		return err
	}

	m, _, err := getManifest()
	if err != nil {
		return err
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	return printResult(cmd, formatter, &output.Result{History: []manifest.Entry{*entry}, Detail: true})
}

// runHistoryClean removes entries past the retention period.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	m, cfg, err := getManifest()
	if err != nil {
		return err
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

func printResult(cmd *cobra.Command, formatter output.Formatter, result *output.Result) error {
	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return nil
}
