package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig configures size rotation of the current log file and pruning
// of log files left by earlier runs.
type RotationConfig struct {
	// MaxSize is the size in bytes after which the current file is rotated.
	// Zero uses the default of 10 MiB.
	MaxSize int64

	// MaxAge is the number of days to keep older log files. Zero keeps them
	// regardless of age.
	MaxAge int

	// MaxBackups is the number of older log files to keep. Zero keeps all
	// (subject to MaxAge).
	MaxBackups int
}

// DefaultRotationConfig returns the rotation defaults.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 20,
	}
}

// RotatingWriter is an io.WriteCloser over one run's log file. When the file
// exceeds MaxSize it is renamed to "<name>.<n>.log" and a new file is opened
// under the original name. Writes take an flock so that tail-and-rotate tools
// see whole records.
type RotatingWriter struct {
	path    string
	cfg     RotationConfig
	mu      sync.Mutex
	file    *os.File
	size    int64
	rotated int
}

// NewRotatingWriter creates the log file (and its directory) and prunes older
// log files in the same directory. The file must not exist yet.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.openFile(); err != nil {
		return nil, err
	}

	Prune(filepath.Dir(path), path, cfg, time.Now())

	return w, nil
}

// Path returns the path of the active log file.
func (w *RotatingWriter) Path() string {
	return w.path
}

// Write writes p, rotating first when p would push the file over MaxSize.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.size > 0 && w.size+int64(len(p)) > w.cfg.MaxSize {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the log file. It is safe to call more than once.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		w.file = nil
		return fmt.Errorf("syncing log file: %w", err)
	}

	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) openFile() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return fmt.Errorf("stat failed: %w; close failed: %w", err, closeErr)
		}
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	w.rotated++
	if err := os.Rename(w.path, rotatedName(w.path, w.rotated)); err != nil {
		return fmt.Errorf("renaming log file: %w", err)
	}

	return w.openFile()
}

// rotatedName returns "<dir>/<base>.<n>.log" for "<dir>/<base>.log".
func rotatedName(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), n, ext)
}

// Prune removes log files in dir other than keep, oldest first, until at most
// cfg.MaxBackups remain, and removes any older than cfg.MaxAge days.
// Errors are ignored: pruning never blocks logging.
func Prune(dir, keep string, cfg RotationConfig, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	var older []logFile

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if path == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		older = append(older, logFile{path: path, modTime: info.ModTime()})
	}

	// Newest first.
	sort.Slice(older, func(i, j int) bool {
		return older[i].modTime.After(older[j].modTime)
	})

	maxAge := time.Duration(cfg.MaxAge) * 24 * time.Hour
	for i, lf := range older {
		overCount := cfg.MaxBackups > 0 && i >= cfg.MaxBackups
		overAge := cfg.MaxAge > 0 && now.Sub(lf.modTime) > maxAge
		if overCount || overAge {
			_ = os.Remove(lf.path)
		}
	}
}
