// Package lock keeps two mirror processes from writing the same destination.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when a live process holds the lock.
var ErrAlreadyRunning = errors.New("another mirror is already running for this destination")

// Lock is a held PID file.
type Lock struct {
	path string

	// StalePID is the PID found in a stale lock file that was replaced, or 0.
	StalePID int
}

// PIDPath returns the PID file path for destination inside dir.
func PIDPath(dir, destination string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(destination)))
	return filepath.Join(dir, "mirror-"+hex.EncodeToString(sum[:8])+".pid")
}

// Acquire takes the lock for destination. A lock file left by a process that
// is no longer running is replaced.
func Acquire(dir, destination string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := PIDPath(dir, destination)
	l := &Lock{path: path}

	for attempt := 0; attempt < 2; attempt++ {
		err := writePIDFile(path, destination)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("writing lock file: %w", err)
		}

		pid, err := ReadPIDFile(path)
		if err == nil && IsProcessRunning(pid) {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrAlreadyRunning, pid, path)
		}
		l.StalePID = pid
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock file: %w", err)
		}
	}
	return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Releasing twice is harmless.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// writePIDFile creates path exclusively with the current PID on the first
// line and the destination on the second.
func writePIDFile(path, destination string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%d\n%s\n", os.Getpid(), destination); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadPIDFile reads the PID from the first line of a lock file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	first, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
