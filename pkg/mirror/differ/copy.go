package differ

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// copyFile writes the contents of src over dst, then carries over the
// permission bits and the modification time. A symlink at dst is replaced,
// never written through. It returns the bytes written.
func copyFile(fsys afero.Fs, src, dst string, info os.FileInfo) (int64, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	defer func() { _ = in.Close() }()

	if isSymlink(fsys, dst) {
		if err := fsys.Remove(dst); err != nil {
			return 0, fmt.Errorf("removing destination symlink: %w", err)
		}
	}

	perm := info.Mode().Perm()
	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("opening destination: %w", err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("copying content: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("closing destination: %w", err)
	}

	if err := fsys.Chmod(dst, perm); err != nil {
		return n, fmt.Errorf("setting permissions: %w", err)
	}
	mtime := info.ModTime()
	if err := fsys.Chtimes(dst, mtime, mtime); err != nil {
		return n, fmt.Errorf("setting modification time: %w", err)
	}
	return n, nil
}

// isSymlink reports whether path itself is a symlink. Filesystems without
// Lstat support never report one.
func isSymlink(fsys afero.Fs, path string) bool {
	lstater, ok := fsys.(afero.Lstater)
	if !ok {
		return false
	}
	info, lstatCalled, err := lstater.LstatIfPossible(path)
	return err == nil && lstatCalled && info.Mode()&os.ModeSymlink != 0
}
