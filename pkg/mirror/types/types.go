// Package types holds the data shared by the mirroring engine, the history
// manifest and the report formatters: per-pass counters and pass results,
// plus byte size helpers.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats counts what a pass (or a single directory level) did to the destination.
type Stats struct {
	// LevelsVisited is the number of source directories reconciled.
	LevelsVisited int64 `json:"levels_visited" yaml:"levels_visited"`

	FoldersCreated int64 `json:"folders_created" yaml:"folders_created"`
	FoldersRemoved int64 `json:"folders_removed" yaml:"folders_removed"`
	FilesCopied    int64 `json:"files_copied" yaml:"files_copied"`
	FilesRemoved   int64 `json:"files_removed" yaml:"files_removed"`

	// FilesSkipped counts destination files found identical to their source.
	FilesSkipped int64 `json:"files_skipped" yaml:"files_skipped"`

	// BytesCopied is the total size of all copied files.
	BytesCopied int64 `json:"bytes_copied" yaml:"bytes_copied"`

	// Errors counts failed operations that were logged and passed over.
	// It stays zero unless the continue error policy is active.
	Errors int64 `json:"errors" yaml:"errors"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.LevelsVisited += other.LevelsVisited
	s.FoldersCreated += other.FoldersCreated
	s.FoldersRemoved += other.FoldersRemoved
	s.FilesCopied += other.FilesCopied
	s.FilesRemoved += other.FilesRemoved
	s.FilesSkipped += other.FilesSkipped
	s.BytesCopied += other.BytesCopied
	s.Errors += other.Errors
}

// Mutations returns the number of state-changing operations performed.
func (s Stats) Mutations() int64 {
	return s.FoldersCreated + s.FoldersRemoved + s.FilesCopied + s.FilesRemoved
}

// PassResult describes one completed (or failed) mirroring pass.
type PassResult struct {
	// ID uniquely identifies the pass.
	ID string `json:"id" yaml:"id"`

	// Session identifies the process run the pass belongs to.
	Session string `json:"session" yaml:"session"`

	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`

	// Started is the wall-clock time the pass began.
	Started time.Time `json:"started" yaml:"started"`

	// Elapsed is how long the pass ran.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`

	Stats Stats `json:"stats" yaml:"stats"`

	// Error is the fatal error text when the pass did not complete.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the pass ended with a fatal error.
func (r PassResult) Failed() bool {
	return r.Error != ""
}

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ParseSize parses a human-readable size such as "10MiB", "512K" or "1 GB".
// Units follow go-humanize: "MB" is 10^6 bytes and "MiB" is 2^20 bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative value %q", ErrInvalidSize, s)
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// FormatSize converts a size in bytes to a human-readable IEC string ("1.5 MiB").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
