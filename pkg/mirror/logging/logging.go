// Package logging provides the mirror event log. A single Logger is built at
// startup and handed to every component; each event is written to a
// per-invocation log file and, at the same time, to the console.
//
// Basic usage:
//
//	logger, err := logging.New(logging.Config{
//	    Dir:          "/var/log/mirror",
//	    Level:        "info",
//	    ConsoleLevel: "info",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Component("differ").Info("copying file", "path", "/src/a.txt")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) toCharmLevel() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// FileTimeFormat names the per-invocation log file after the process start
// time, to the second. FileName appends the microseconds.
const FileTimeFormat = "2006_01_02-15_04_05"

// FileName returns the log file name for a run started at t, for example
// "2024_03_07-09_05_02_123456.log".
func FileName(t time.Time) string {
	return fmt.Sprintf("%s_%06d.log", t.Format(FileTimeFormat), t.Nanosecond()/1000)
}

// Config configures a Logger.
type Config struct {
	// Dir is the directory that receives the log file. It is created when
	// missing. Empty uses DefaultDir().
	Dir string

	// Level is the file sink level (debug, info, warn, error).
	Level string

	// ConsoleLevel is the console sink level. Empty disables the console sink.
	ConsoleLevel string

	// Console receives console output. Nil means os.Stderr.
	Console io.Writer

	// StartTime names the log file. Zero means time.Now().
	StartTime time.Time

	// Rotation configures size rotation and pruning of older log files.
	Rotation RotationConfig

	// Components maps component names to level overrides for the file sink.
	Components map[string]string
}

// Logger writes every event to the file sink and, when enabled, the console sink.
// Derived loggers (Component, With) share the sinks of their parent.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
	fields    []interface{}

	sinks *sinks
}

// sinks is the state shared by a root Logger and everything derived from it.
type sinks struct {
	writer       *RotatingWriter
	fileOut      io.Writer
	consoleOut   io.Writer
	level        Level
	consoleLevel Level
	console      bool
	components   map[string]Level
}

// New opens a fresh log file in cfg.Dir and returns the root Logger.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	s := &sinks{
		level:      level,
		components: components,
		consoleOut: cfg.Console,
	}
	if s.consoleOut == nil {
		s.consoleOut = os.Stderr
	}
	if cfg.ConsoleLevel != "" {
		consoleLevel, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return nil, fmt.Errorf("parsing console level: %w", err)
		}
		s.consoleLevel = consoleLevel
		s.console = true
	}

	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	start := cfg.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	writer, err := NewRotatingWriter(filepath.Join(dir, FileName(start)), cfg.Rotation)
	if err != nil {
		return nil, fmt.Errorf("creating log writer: %w", err)
	}
	s.writer = writer
	s.fileOut = writer

	return s.logger(""), nil
}

// NewWithWriters builds a Logger over arbitrary writers. Console may be nil.
// It is meant for tests and for callers that manage their own files.
func NewWithWriters(file, console io.Writer, level Level) *Logger {
	s := &sinks{
		fileOut:      file,
		consoleOut:   console,
		level:        level,
		consoleLevel: level,
		console:      console != nil,
		components:   map[string]Level{},
	}
	return s.logger("")
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return NewWithWriters(io.Discard, nil, LevelError)
}

func (s *sinks) logger(component string) *Logger {
	level := s.level
	if compLevel, ok := s.components[component]; ok {
		level = compLevel
	}

	l := &Logger{
		file: log.NewWithOptions(s.fileOut, log.Options{
			Level:           level.toCharmLevel(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
		sinks:     s,
	}

	if s.console {
		l.console = log.NewWithOptions(s.consoleOut, log.Options{
			Level:           s.consoleLevel.toCharmLevel(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}

	return l
}

// Component returns a logger tagged with the component name. Fields added
// with With are kept. Level overrides from Config.Components apply to its
// file sink.
func (l *Logger) Component(name string) *Logger {
	c := l.sinks.logger(name)
	if len(l.fields) == 0 {
		return c
	}
	return c.With(l.fields...)
}

// With returns a logger that adds the key/value pairs to every event.
func (l *Logger) With(args ...interface{}) *Logger {
	derived := &Logger{
		file:      l.file.With(args...),
		component: l.component,
		fields:    append(append([]interface{}{}, l.fields...), args...),
		sinks:     l.sinks,
	}
	if l.console != nil {
		derived.console = l.console.With(args...)
	}
	return derived
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	logTo(l.file, level, msg, args...)
	if l.console != nil {
		logTo(l.console, level, msg, args...)
	}
}

func logTo(logger *log.Logger, level Level, msg string, args ...interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

// Path returns the log file path, or "" when the logger has no file.
func (l *Logger) Path() string {
	if l.sinks.writer == nil {
		return ""
	}
	return l.sinks.writer.Path()
}

// Close flushes and closes the log file. Closing a derived logger closes the
// shared file as well; only the owner of the root logger should call it.
func (l *Logger) Close() error {
	if l.sinks.writer == nil {
		return nil
	}
	if err := l.sinks.writer.Close(); err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultDir returns $XDG_STATE_HOME/mirror/logs.
func DefaultDir() string {
	return filepath.Join(xdg.StateHome, "mirror", "logs")
}
