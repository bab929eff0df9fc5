package logging_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/mirror/pkg/mirror/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{"warn", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := logging.ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, logging.ErrInvalidLevel) {
				t.Errorf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 7, 9, 5, 2, 123456000, time.UTC)
	if got, want := logging.FileName(start), "2024_03_07-09_05_02_123456.log"; got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}

func TestNewWritesBothSinks(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	logger, err := logging.New(logging.Config{
		Dir:          dir,
		Level:        "info",
		ConsoleLevel: "info",
		Console:      &console,
		StartTime:    start,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	wantPath := filepath.Join(dir, logging.FileName(start))
	if logger.Path() != wantPath {
		t.Errorf("Path() = %q, want %q", logger.Path(), wantPath)
	}

	logger.Component("differ").Info("copying file", "path", "/src/a.txt")
	logger.Debug("hidden at info level")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	for name, out := range map[string]string{"file": string(data), "console": console.String()} {
		if !strings.Contains(out, "copying file") || !strings.Contains(out, "/src/a.txt") {
			t.Errorf("%s sink missing event, got:\n%s", name, out)
		}
		if !strings.Contains(out, "differ") {
			t.Errorf("%s sink missing component prefix, got:\n%s", name, out)
		}
		if strings.Contains(out, "hidden at info level") {
			t.Errorf("%s sink contains debug event at info level", name)
		}
	}
}

func TestNewConsoleDisabled(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	logger, err := logging.New(logging.Config{
		Dir:     t.TempDir(),
		Level:   "debug",
		Console: &console,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Close()

	logger.Error("something failed")

	if console.Len() != 0 {
		t.Errorf("console sink should be disabled, got %q", console.String())
	}
}

func TestNewInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  logging.Config
	}{
		{"invalid level", logging.Config{Dir: t.TempDir(), Level: "verbose"}},
		{"invalid console level", logging.Config{Dir: t.TempDir(), ConsoleLevel: "chatty"}},
		{"invalid component level", logging.Config{Dir: t.TempDir(), Components: map[string]string{"engine": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := logging.New(tt.cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestComponentLevelOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := logging.New(logging.Config{
		Dir:        dir,
		Level:      "info",
		Components: map[string]string{"differ": "debug"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Component("differ").Debug("file unchanged, skipping")
	logger.Component("engine").Debug("engine debug")
	path := logger.Path()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, "file unchanged, skipping") {
		t.Error("differ debug event should be written with debug override")
	}
	if strings.Contains(out, "engine debug") {
		t.Error("engine debug event should be filtered at info level")
	}
}

func TestWithAddsFields(t *testing.T) {
	t.Parallel()

	var file bytes.Buffer
	logger := logging.NewWithWriters(&file, nil, logging.LevelInfo)

	logger.With("pass", "p-1").Info("pass complete")

	if !strings.Contains(file.String(), "pass=p-1") {
		t.Errorf("expected field in output, got %q", file.String())
	}
}

func TestNop(t *testing.T) {
	t.Parallel()

	logger := logging.Nop()
	logger.Error("dropped")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("Path() = %q, want empty", logger.Path())
	}
}

func TestNewSeparateFilePerRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := time.Date(2024, 3, 7, 9, 5, 2, 100000, time.UTC)
	second := time.Date(2024, 3, 7, 9, 5, 2, 900000, time.UTC)

	a, err := logging.New(logging.Config{Dir: dir, StartTime: first})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()
	b, err := logging.New(logging.Config{Dir: dir, StartTime: second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer b.Close()

	if a.Path() == b.Path() {
		t.Fatalf("runs started in the same second share %s", a.Path())
	}
	if got, want := filepath.Base(b.Path()), "2024_03_07-09_05_02_000900.log"; got != want {
		t.Errorf("second log file = %q, want %q", got, want)
	}

	if _, err := logging.New(logging.Config{Dir: dir, StartTime: first}); err == nil {
		t.Error("New() with an existing log file name should fail")
	}
}

func TestComponentKeepsFields(t *testing.T) {
	t.Parallel()

	var file bytes.Buffer
	logger := logging.NewWithWriters(&file, nil, logging.LevelInfo)

	logger.With("session", "s-1").Component("differ").Info("copying file")

	out := file.String()
	if !strings.Contains(out, "session=s-1") {
		t.Errorf("component logger dropped parent fields: %q", out)
	}
	if !strings.Contains(out, "differ") {
		t.Errorf("component prefix missing: %q", out)
	}
}
