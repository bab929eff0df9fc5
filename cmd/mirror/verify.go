package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/mirror/pkg/mirror/output"
	"github.com/jamesainslie/mirror/pkg/mirror/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check whether the destination matches the source",
	Long: `Walk both trees and report folders and files that are missing, extra,
or different in the destination. Nothing is changed.

Exits with status 1 when the trees differ.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var (
	verifyFormat  string
	verifyWorkers int
)

func init() {
	verifyCmd.Flags().StringVarP(&verifyFormat, "output", "o", "pretty",
		"output format: "+strings.Join(output.Available(), ", "))
	verifyCmd.Flags().IntVar(&verifyWorkers, "workers", 0, "walk workers per tree (0 = automatic)")
	rootCmd.AddCommand(verifyCmd)
}

// runVerify compares the configured trees and prints the report.
func runVerify(cmd *cobra.Command, _ []string) error {
	formatter, err := output.Get(verifyFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	engCfg, err := buildEngineConfig(cfg)
	if err != nil {
		return err
	}

	report, err := verify.Compare(cmd.Context(), verify.Options{
		Source:      cfg.Source,
		Destination: cfg.Destination,
		Filter:      engCfg.Filter,
		Comparator:  engCfg.Comparator,
		Workers:     verifyWorkers,
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, &output.Result{Verify: report}); err != nil {
		return fmt.Errorf("formatting report: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), buf.String())

	if !report.Converged() {
		return &reportedError{err: fmt.Errorf("destination differs from source: %d differences", report.Differences())}
	}
	return nil
}
