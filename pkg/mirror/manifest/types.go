// Package manifest keeps a history of mirroring passes, one JSON file per pass.
package manifest

import (
	"time"

	"github.com/jamesainslie/mirror/pkg/mirror/types"
)

// Status values for an entry.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is the recorded outcome of one pass.
type Entry struct {
	ID          string        `json:"id" yaml:"id"`
	Session     string        `json:"session" yaml:"session"`
	Timestamp   time.Time     `json:"timestamp" yaml:"timestamp"`
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Elapsed     time.Duration `json:"elapsed_ns" yaml:"elapsed"`
	Stats       types.Stats   `json:"stats" yaml:"stats"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Status returns StatusFailed when the pass ended with an error.
func (e Entry) Status() string {
	if e.Error != "" {
		return StatusFailed
	}
	return StatusOK
}

// EntryFromResult converts a pass result into an entry.
func EntryFromResult(r types.PassResult) Entry {
	return Entry{
		ID:          r.ID,
		Session:     r.Session,
		Timestamp:   r.Started.UTC(),
		Source:      r.Source,
		Destination: r.Destination,
		Elapsed:     r.Elapsed,
		Stats:       r.Stats,
		Error:       r.Error,
	}
}
