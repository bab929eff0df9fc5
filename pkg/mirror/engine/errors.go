package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrRelativeRoot            = errors.New("root must be an absolute path")
	ErrInvalidInterval         = errors.New("interval must be a positive duration")
	ErrInvalidMaxDepth         = errors.New("max depth must be positive")
	ErrOverlappingRoots        = errors.New("source and destination must not contain each other")
	ErrSourceMissing           = errors.New("source folder does not exist")
	ErrSourceNotDirectory      = errors.New("source is not a folder")
	ErrDestinationNotDirectory = errors.New("destination exists and is not a folder")
	ErrMaxDepthExceeded        = errors.New("maximum folder depth exceeded")
	ErrOutsideRoot             = errors.New("path is outside the source root")
)

// Kind classifies a FatalError.
type Kind string

// Fatal error kinds.
const (
	// KindConfig means the session could not start. No pass ran.
	KindConfig Kind = "config"

	// KindOperational means a pass failed part way. The destination may be
	// partially updated.
	KindOperational Kind = "operational"
)

// FatalError ends the sync loop. It is returned to the top-level handler,
// which logs it and exits.
type FatalError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s error during %s of %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
