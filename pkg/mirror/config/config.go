package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures the two log sinks.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// HistoryConfig configures the pass history manifest.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LockConfig configures the per-destination lock.
type LockConfig struct {
	Dir string `mapstructure:"dir"`
}

// Config represents the mirror configuration.
type Config struct {
	Source      string `mapstructure:"source"`
	Destination string `mapstructure:"destination"`
	LogDir      string `mapstructure:"log_dir"`

	// Interval is the pass interval in whole seconds.
	Interval int `mapstructure:"interval"`

	Compare  string   `mapstructure:"compare"`
	OnError  string   `mapstructure:"on_error"`
	Exclude  []string `mapstructure:"exclude"`
	Watch    bool     `mapstructure:"watch"`
	MaxDepth int      `mapstructure:"max_depth"`

	Logging LoggingConfig `mapstructure:"logging"`
	History HistoryConfig `mapstructure:"history"`
	Lock    LockConfig    `mapstructure:"lock"`
}

// Validation errors.
var (
	ErrMissingSource      = errors.New("source directory is required")
	ErrMissingDestination = errors.New("destination directory is required")
	ErrInvalidInterval    = errors.New("interval must be a positive number of seconds")
	ErrInvalidCompare     = errors.New("unknown compare mode")
	ErrInvalidOnError     = errors.New("unknown error policy")
	ErrInvalidMaxDepth    = errors.New("max depth must be positive")
	ErrOverlappingRoots   = errors.New("source and destination must not overlap")
)

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source", "")
	v.SetDefault("destination", "")
	v.SetDefault("log_dir", DefaultLogDir())
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("compare", DefaultCompare)
	v.SetDefault("on_error", DefaultOnError)
	v.SetDefault("exclude", []string{})
	v.SetDefault("watch", false)
	v.SetDefault("max_depth", DefaultMaxDepth)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.console_level", DefaultLogLevel)
	v.SetDefault("logging.rotation.max_size", "10MiB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 20)
	v.SetDefault("logging.components", map[string]string{})

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryDir())
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("lock.dir", DefaultLockDir())
}

// Configure prepares v: config file search paths (or cfgFile when set),
// MIRROR_ environment overrides and defaults, then reads the config file.
// A missing config file is not an error.
func Configure(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "mirror"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "mirror"))
		}
	}

	v.SetEnvPrefix("MIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Unmarshal decodes v into a Config and normalizes its paths.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Source, &cfg.Destination, &cfg.LogDir, &cfg.History.Path, &cfg.Lock.Dir} {
		if *p == "" {
			continue
		}
		normalized, err := NormalizePath(*p)
		if err != nil {
			return nil, err
		}
		*p = normalized
	}

	cfg.Compare = strings.ToLower(strings.TrimSpace(cfg.Compare))
	cfg.OnError = strings.ToLower(strings.TrimSpace(cfg.OnError))

	return &cfg, nil
}

// Load loads configuration from the default config file locations and
// MIRROR_ environment variables.
func Load() (*Config, error) {
	v := viper.New()
	if err := Configure(v, ""); err != nil {
		return nil, err
	}
	return Unmarshal(v)
}

// Validate checks the settings a mirroring session depends on.
// Zero and negative intervals are rejected here, before any session starts.
func (c *Config) Validate() error {
	if c.Source == "" {
		return ErrMissingSource
	}
	if c.Destination == "" {
		return ErrMissingDestination
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, c.Interval)
	}
	if !slices.Contains(Comparators, c.Compare) {
		return fmt.Errorf("%w %q (want one of %s)", ErrInvalidCompare, c.Compare, strings.Join(Comparators, ", "))
	}
	if !slices.Contains(ErrorPolicies, c.OnError) {
		return fmt.Errorf("%w %q (want one of %s)", ErrInvalidOnError, c.OnError, strings.Join(ErrorPolicies, ", "))
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDepth, c.MaxDepth)
	}
	if Overlaps(c.Source, c.Destination) {
		return fmt.Errorf("%w: %s and %s", ErrOverlappingRoots, c.Source, c.Destination)
	}
	return nil
}

// Overlaps reports whether a and b are the same directory or one contains the other.
func Overlaps(a, b string) bool {
	return a == b || isSubPath(a, b) || isSubPath(b, a)
}

func isSubPath(path, parent string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// NormalizePath expands a leading ~, makes p absolute and cleans it.
// A trailing separator is removed only when present; the filesystem root
// stays as it is.
func NormalizePath(p string) (string, error) {
	expanded, err := ExpandPath(strings.TrimSpace(p))
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", p, err)
	}
	return abs, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "mirror"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "mirror"), nil
}

// StateDir returns $XDG_STATE_HOME/mirror/ for logs and locks.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "mirror")
}

// DataDir returns $XDG_DATA_HOME/mirror/ for pass history.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "mirror")
}

// DefaultLogDir returns the default log directory.
func DefaultLogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// DefaultLockDir returns the default lock directory.
func DefaultLockDir() string {
	return filepath.Join(StateDir(), "locks")
}

// DefaultHistoryDir returns the default pass history directory.
func DefaultHistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// WriteDefault writes a default config file into ConfigDir unless one exists,
// and returns its path.
func WriteDefault() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# mirror configuration

# Directory to mirror from, and directory to mirror onto.
source: ""
destination: ""

# Directory that receives one log file per run.
log_dir: %s

# Seconds between the starts of consecutive passes.
interval: %d

# How an existing destination file is checked: content (byte compare) or mtime.
compare: %s

# What a failed create/remove/copy does: fail (stop) or continue (log and go on).
on_error: %s

# Glob patterns hidden from both trees (matched against relative paths and names).
exclude: []

# Start the next pass early when the source changes.
watch: false

# Deepest source directory level a pass will descend into.
max_depth: %d

logging:
  level: %s
  console_level: %s
  rotation:
    max_size: 10MiB
    max_age: 30       # days
    max_backups: 20
  components: {}

history:
  enabled: true
  path: %s
  retention_days: %d

lock:
  dir: %s
`, DefaultLogDir(), DefaultInterval, DefaultCompare, DefaultOnError, DefaultMaxDepth,
		DefaultLogLevel, DefaultLogLevel, DefaultHistoryDir(), DefaultRetentionDays, DefaultLockDir())

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}
