package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/mirror/pkg/mirror/config"
	"github.com/jamesainslie/mirror/pkg/mirror/differ"
	"github.com/jamesainslie/mirror/pkg/mirror/engine"
	"github.com/jamesainslie/mirror/pkg/mirror/filter"
	"github.com/jamesainslie/mirror/pkg/mirror/lock"
	"github.com/jamesainslie/mirror/pkg/mirror/logging"
	"github.com/jamesainslie/mirror/pkg/mirror/manifest"
	"github.com/jamesainslie/mirror/pkg/mirror/types"
	"github.com/jamesainslie/mirror/pkg/mirror/watcher"
)

// parseRotationConfig converts the config file's rotation settings.
// An empty or invalid max_size falls back to the default.
func parseRotationConfig(cfg config.RotationConfig) logging.RotationConfig {
	rotation := logging.RotationConfig{
		MaxSize:    logging.DefaultRotationConfig().MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
	}
	if cfg.MaxSize != "" {
		if size, err := types.ParseSize(cfg.MaxSize); err == nil && size > 0 {
			rotation.MaxSize = size
		}
	}
	return rotation
}

// buildLogger creates the run's logger. Verbose lowers both sinks to debug;
// quiet limits the console to errors.
func buildLogger(cfg *config.Config, start time.Time, verbose, quiet bool) (*logging.Logger, error) {
	level := cfg.Logging.Level
	consoleLevel := cfg.Logging.ConsoleLevel
	if consoleLevel == "" {
		consoleLevel = config.DefaultLogLevel
	}
	if verbose {
		level = "debug"
		consoleLevel = "debug"
	}
	if quiet {
		consoleLevel = "error"
	}

	logger, err := logging.New(logging.Config{
		Dir:          cfg.LogDir,
		Level:        level,
		ConsoleLevel: consoleLevel,
		StartTime:    start,
		Rotation:     parseRotationConfig(cfg.Logging.Rotation),
		Components:   cfg.Logging.Components,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}

// buildEngineConfig translates the validated configuration for the engine.
func buildEngineConfig(cfg *config.Config) (engine.Config, error) {
	comparator, err := differ.ComparatorByName(cfg.Compare)
	if err != nil {
		return engine.Config{}, err
	}
	matcher, err := filter.New(cfg.Exclude...)
	if err != nil {
		return engine.Config{}, err
	}

	return engine.Config{
		Source:          cfg.Source,
		Destination:     cfg.Destination,
		Interval:        time.Duration(cfg.Interval) * time.Second,
		MaxDepth:        cfg.MaxDepth,
		Comparator:      comparator,
		Filter:          matcher,
		ContinueOnError: cfg.OnError == "continue",
	}, nil
}

// openHistory returns the pass history recorder, or nil when history is
// disabled or unavailable. History problems never stop mirroring.
func openHistory(cfg *config.Config, logger *logging.Logger) engine.Recorder {
	if !cfg.History.Enabled {
		return nil
	}

	m, err := manifest.New(cfg.History.Path)
	if err == nil {
		err = m.EnsureDir()
	}
	if err != nil {
		logger.Warn("pass history disabled", "path", cfg.History.Path, "error", err)
		return nil
	}

	if removed, err := m.Cleanup(cfg.History.RetentionDays); err != nil {
		logger.Warn("failed to clean pass history", "error", err)
	} else if removed > 0 {
		logger.Debug("removed old pass history", "entries", removed)
	}
	return m
}

// runSession mirrors cfg.Source onto cfg.Destination, once or until ctx is
// cancelled. Fatal errors are logged to both sinks before being returned.
func runSession(ctx context.Context, cfg *config.Config, logger *logging.Logger, once bool) error {
	logger.Info("mirror starting",
		"version", version,
		"source", cfg.Source,
		"destination", cfg.Destination,
		"interval", time.Duration(cfg.Interval)*time.Second,
		"log_file", logger.Path(),
	)

	err := mirror(ctx, cfg, logger, once)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info("received stop signal, shutting down")
		return nil
	}

	var fatal *engine.FatalError
	if errors.As(err, &fatal) {
		logger.Error("fatal error", "kind", string(fatal.Kind), "error", err)
	} else {
		logger.Error("fatal error", "error", err)
	}
	return &reportedError{err: err}
}

func mirror(ctx context.Context, cfg *config.Config, logger *logging.Logger, once bool) error {
	held, err := lock.Acquire(cfg.Lock.Dir, cfg.Destination)
	if err != nil {
		return err
	}
	defer func() {
		if err := held.Release(); err != nil {
			logger.Warn("failed to release lock", "path", held.Path(), "error", err)
		}
	}()
	if held.StalePID != 0 {
		logger.Warn("replaced stale lock", "stale_pid", held.StalePID, "path", held.Path())
	}

	engCfg, err := buildEngineConfig(cfg)
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	if rec := openHistory(cfg, logger); rec != nil {
		opts = append(opts, engine.WithRecorder(rec))
	}

	if cfg.Watch && !once {
		w, err := startWatcher(ctx, cfg.Source, engCfg.Filter, logger)
		if err != nil {
			logger.Warn("watching disabled", "error", err)
		} else {
			defer func() { _ = w.Close() }()
			opts = append(opts, engine.WithTrigger(w.Trigger()))
		}
	}

	eng, err := engine.New(engCfg, opts...)
	if err != nil {
		return err
	}

	if once {
		_, err = eng.RunOnce(ctx)
		return err
	}
	return eng.Run(ctx)
}

func startWatcher(ctx context.Context, root string, m *filter.Matcher, logger *logging.Logger) (*watcher.Watcher, error) {
	w, err := watcher.New(logger, m)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	go w.Run(ctx)
	logger.Component("watcher").Info("watching source", "folders", w.Watching())
	return w, nil
}
