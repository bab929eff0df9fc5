// Package engine drives mirroring passes over a whole tree and paces them to
// a fixed interval.
//
// A pass visits every source folder depth first. Each folder's level is
// reconciled by the differ before its children are visited, so the
// destination folders a child level needs always exist. Passes repeat until
// the context is cancelled or a pass fails.
package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/jamesainslie/mirror/pkg/mirror/differ"
	"github.com/jamesainslie/mirror/pkg/mirror/filter"
	"github.com/jamesainslie/mirror/pkg/mirror/logging"
	"github.com/jamesainslie/mirror/pkg/mirror/types"
)

// DefaultMaxDepth bounds the folder nesting a pass will descend.
const DefaultMaxDepth = 1024

// Config is the fixed description of a mirroring session.
type Config struct {
	// Source and Destination are absolute, cleaned roots.
	Source      string
	Destination string

	// Interval is the target period between pass starts.
	Interval time.Duration

	// MaxDepth bounds descent below the source root. Zero uses DefaultMaxDepth.
	MaxDepth int

	// Comparator decides whether existing destination files are current.
	// Nil compares content.
	Comparator differ.Comparator

	// Filter hides entries on both sides.
	Filter *filter.Matcher

	// ContinueOnError keeps a pass going past failed entries.
	ContinueOnError bool
}

// Recorder receives the result of every pass.
type Recorder interface {
	Record(result types.PassResult) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem. The default is the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(e *Engine) { e.fs = fsys }
}

// WithClock sets the clock used for timing and sleeping.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets a recorder for pass results.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTrigger sets a channel that ends the current sleep early.
func WithTrigger(ch <-chan struct{}) Option {
	return func(e *Engine) { e.trigger = ch }
}

// Engine runs mirroring passes.
type Engine struct {
	cfg      Config
	fs       afero.Fs
	clock    clockwork.Clock
	logger   *logging.Logger
	recorder Recorder
	trigger  <-chan struct{}
	differ   *differ.Differ

	session string
	passes  atomic.Int64
	state   atomic.Int32
}

// New validates cfg and returns an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	cfg.Source = filepath.Clean(cfg.Source)
	cfg.Destination = filepath.Clean(cfg.Destination)

	e := &Engine{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		clock:   clockwork.NewRealClock(),
		logger:  logging.Nop(),
		session: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Component("engine").With("session", shortID(e.session))

	e.differ = differ.New(e.fs, differ.Options{
		Comparator:      cfg.Comparator,
		Filter:          cfg.Filter,
		SourceRoot:      cfg.Source,
		DestRoot:        cfg.Destination,
		ContinueOnError: cfg.ContinueOnError,
		Logger:          e.logger.Component("differ"),
	})
	return e, nil
}

func validate(cfg Config) error {
	if !filepath.IsAbs(cfg.Source) {
		return fmt.Errorf("source %q: %w", cfg.Source, ErrRelativeRoot)
	}
	if !filepath.IsAbs(cfg.Destination) {
		return fmt.Errorf("destination %q: %w", cfg.Destination, ErrRelativeRoot)
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, cfg.Interval)
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDepth, cfg.MaxDepth)
	}
	if within(cfg.Source, cfg.Destination) || within(cfg.Destination, cfg.Source) {
		return fmt.Errorf("%w: %s and %s", ErrOverlappingRoots, cfg.Source, cfg.Destination)
	}
	return nil
}

// within reports whether child is parent or lies beneath it.
func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Session returns the session ID.
func (e *Engine) Session() string {
	return e.session
}

// Passes returns the number of passes started.
func (e *Engine) Passes() int64 {
	return e.passes.Load()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// destPath maps a path under the source root to the matching destination path.
func (e *Engine) destPath(srcPath string) (string, error) {
	rel, err := filepath.Rel(e.cfg.Source, srcPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", srcPath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", srcPath, ErrOutsideRoot)
	}
	return filepath.Join(e.cfg.Destination, rel), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
