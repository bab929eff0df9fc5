package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mirror/pkg/mirror/config"
)

var (
	cfgFile   string
	configErr error
	rootCmd   = &cobra.Command{
		Use:   "mirror",
		Short: "Continuously mirror one folder onto another",
		Long: `Mirror keeps a destination folder an exact copy of a source folder.

Every interval it walks the source tree, removes what the destination has
that the source does not, creates missing folders, and copies files that are
missing or differ. Each run writes its own log file and echoes events to the
console.

Examples:
  mirror -s ~/work -d /backup/work          # Mirror every 30 seconds
  mirror -s ~/work -d /backup/work -i 300   # Mirror every 5 minutes
  mirror once -s ~/work -d /backup/work     # A single pass, then exit
  mirror verify -s ~/work -d /backup/work   # Check the copy without changing it
  mirror history                            # Recent passes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMirror,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/mirror/config.yaml)")
	flags.StringP("source", "s", "", "folder to mirror from")
	flags.StringP("destination", "d", "", "folder to mirror onto")
	flags.StringP("log-dir", "l", "", "folder for log files (default: $XDG_STATE_HOME/mirror/logs)")
	flags.IntP("interval", "i", config.DefaultInterval, "seconds between pass starts")
	flags.String("compare", config.DefaultCompare, "how existing files are checked: content or mtime")
	flags.String("on-error", config.DefaultOnError, "failed operation policy: fail or continue")
	flags.StringSliceP("exclude", "e", nil, "glob patterns to leave alone on both sides (repeatable)")
	flags.Bool("watch", false, "start the next pass early when the source changes")
	flags.Int("max-depth", config.DefaultMaxDepth, "deepest folder level to descend into")
	flags.BoolP("verbose", "v", false, "debug output")
	flags.BoolP("quiet", "q", false, "only errors on the console")

	_ = viper.BindPFlag("source", flags.Lookup("source"))
	_ = viper.BindPFlag("destination", flags.Lookup("destination"))
	_ = viper.BindPFlag("log_dir", flags.Lookup("log-dir"))
	_ = viper.BindPFlag("interval", flags.Lookup("interval"))
	_ = viper.BindPFlag("compare", flags.Lookup("compare"))
	_ = viper.BindPFlag("on_error", flags.Lookup("on-error"))
	_ = viper.BindPFlag("exclude", flags.Lookup("exclude"))
	_ = viper.BindPFlag("watch", flags.Lookup("watch"))
	_ = viper.BindPFlag("max_depth", flags.Lookup("max-depth"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	configErr = config.Configure(viper.GetViper(), cfgFile)
}

// Execute runs the root command until it returns or the process is asked
// to stop.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig returns the effective configuration.
func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	return config.Unmarshal(viper.GetViper())
}

// runMirror runs passes until interrupted.
func runMirror(cmd *cobra.Command, _ []string) error {
	return runSessionCommand(cmd.Context(), false)
}

// runSessionCommand loads and validates the configuration, opens the log,
// and runs the session. It is the single place fatal errors are reported.
func runSessionCommand(ctx context.Context, once bool) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := buildLogger(cfg, start, getVerbose(), getQuiet())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	return runSession(ctx, cfg, logger, once)
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}
