package differ

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Listing is a live snapshot of one directory's immediate children, split
// into folders and files. Names are sorted.
type Listing struct {
	Dir     string
	Folders []string
	Files   []string

	// Skipped holds names that are neither folders nor regular files
	// (broken symlinks, sockets, devices, fifos) with the reason.
	Skipped []SkippedEntry

	linked map[string]bool
}

// SkippedEntry is a child that ReadListing left out.
type SkippedEntry struct {
	Name   string
	Reason string
}

// IsLink reports whether the named folder is reached through a symlink.
// Such folders are mirrored but not descended into.
func (l Listing) IsLink(name string) bool {
	return l.linked[name]
}

// HasFolder reports whether name is a folder in the listing.
func (l Listing) HasFolder(name string) bool {
	return contains(l.Folders, name)
}

// HasFile reports whether name is a file in the listing.
func (l Listing) HasFile(name string) bool {
	return contains(l.Files, name)
}

// ReadListing lists the immediate children of dir. Symlinks are classified by
// what they point to.
func ReadListing(fsys afero.Fs, dir string) (Listing, error) {
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return Listing{}, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	l := Listing{Dir: dir, linked: map[string]bool{}}
	for _, info := range infos {
		name := info.Name()
		mode := info.Mode()

		if mode&os.ModeSymlink != 0 {
			target, err := fsys.Stat(filepath.Join(dir, name))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					l.Skipped = append(l.Skipped, SkippedEntry{Name: name, Reason: "broken symlink"})
					continue
				}
				return Listing{}, fmt.Errorf("resolving symlink %s: %w", filepath.Join(dir, name), err)
			}
			if target.IsDir() {
				l.linked[name] = true
			}
			mode = target.Mode()
		}

		switch {
		case mode.IsDir():
			l.Folders = append(l.Folders, name)
		case mode.IsRegular():
			l.Files = append(l.Files, name)
		default:
			l.Skipped = append(l.Skipped, SkippedEntry{Name: name, Reason: "special file"})
		}
	}

	sort.Strings(l.Folders)
	sort.Strings(l.Files)
	return l, nil
}

// without returns a copy of l with the entries for which drop reports true removed.
func (l Listing) without(drop func(name string) bool) Listing {
	out := Listing{Dir: l.Dir, linked: l.linked}
	for _, s := range l.Skipped {
		if !drop(s.Name) {
			out.Skipped = append(out.Skipped, s)
		}
	}
	for _, name := range l.Folders {
		if !drop(name) {
			out.Folders = append(out.Folders, name)
		}
	}
	for _, name := range l.Files {
		if !drop(name) {
			out.Files = append(out.Files, name)
		}
	}
	return out
}

// skippedNames returns the sorted names of the skipped entries.
func (l Listing) skippedNames() []string {
	names := make([]string, 0, len(l.Skipped))
	for _, s := range l.Skipped {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

func contains(sorted []string, name string) bool {
	i := sort.SearchStrings(sorted, name)
	return i < len(sorted) && sorted[i] == name
}
