// Package verify checks whether a destination tree has converged on its
// source without changing either tree.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/spf13/afero"

	"github.com/jamesainslie/mirror/pkg/mirror/differ"
	"github.com/jamesainslie/mirror/pkg/mirror/filter"
)

// Options configures Compare.
type Options struct {
	Source      string
	Destination string

	// Filter hides entries on both sides, as during mirroring.
	Filter *filter.Matcher

	// Comparator checks files present on both sides. Nil compares content.
	Comparator differ.Comparator

	// Workers is the number of walk workers per tree. Zero lets fastwalk decide.
	Workers int
}

// Report lists every difference found. Paths are relative to the roots and
// sorted. Under a missing or extra folder only the folder itself is listed.
type Report struct {
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Elapsed     time.Duration `json:"elapsed_ns" yaml:"elapsed"`

	FoldersChecked int64 `json:"folders_checked" yaml:"folders_checked"`
	FilesChecked   int64 `json:"files_checked" yaml:"files_checked"`

	MissingFolders []string `json:"missing_folders" yaml:"missing_folders"`
	ExtraFolders   []string `json:"extra_folders" yaml:"extra_folders"`
	MissingFiles   []string `json:"missing_files" yaml:"missing_files"`
	ExtraFiles     []string `json:"extra_files" yaml:"extra_files"`
	Differing      []string `json:"differing" yaml:"differing"`

	// Errors holds entries that could not be read or compared.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Converged reports whether the destination matches the source.
func (r *Report) Converged() bool {
	return len(r.MissingFolders) == 0 && len(r.ExtraFolders) == 0 &&
		len(r.MissingFiles) == 0 && len(r.ExtraFiles) == 0 &&
		len(r.Differing) == 0 && len(r.Errors) == 0
}

// Differences returns the number of differences found.
func (r *Report) Differences() int {
	return len(r.MissingFolders) + len(r.ExtraFolders) + len(r.MissingFiles) +
		len(r.ExtraFiles) + len(r.Differing)
}

type entryKind int

const (
	kindFolder entryKind = iota
	kindFile
)

// tree is the flattened result of walking one root.
type tree struct {
	mu      sync.Mutex
	entries map[string]entryKind
	errors  []string
}

// Compare walks both trees and reports how the destination differs.
func Compare(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	for _, root := range []string{opts.Source, opts.Destination} {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s: not a folder", root)
		}
	}
	if opts.Comparator == nil {
		opts.Comparator = differ.ContentComparator{}
	}

	src, err := walk(ctx, opts.Source, opts)
	if err != nil {
		return nil, fmt.Errorf("walking source: %w", err)
	}
	dst, err := walk(ctx, opts.Destination, opts)
	if err != nil {
		return nil, fmt.Errorf("walking destination: %w", err)
	}

	report := &Report{
		Source:      opts.Source,
		Destination: opts.Destination,
		Errors:      append(src.errors, dst.errors...),
	}

	for rel, kind := range src.entries {
		if kind == kindFolder {
			report.FoldersChecked++
		} else {
			report.FilesChecked++
		}

		dstKind, ok := dst.entries[rel]
		switch {
		case (!ok || dstKind != kind) && kind == kindFolder:
			report.MissingFolders = append(report.MissingFolders, rel)
		case !ok || dstKind != kind:
			report.MissingFiles = append(report.MissingFiles, rel)
		case kind == kindFile:
			same, err := compareFile(opts, rel)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", rel, err))
			} else if !same {
				report.Differing = append(report.Differing, rel)
			}
		}
	}
	for rel, kind := range dst.entries {
		if srcKind, ok := src.entries[rel]; ok && srcKind == kind {
			continue
		}
		if kind == kindFolder {
			report.ExtraFolders = append(report.ExtraFolders, rel)
		} else {
			report.ExtraFiles = append(report.ExtraFiles, rel)
		}
	}

	report.MissingFiles = outside(report.MissingFiles, report.MissingFolders)
	report.MissingFolders = topmost(report.MissingFolders)
	report.ExtraFiles = outside(report.ExtraFiles, report.ExtraFolders)
	report.ExtraFolders = topmost(report.ExtraFolders)
	sort.Strings(report.Differing)
	sort.Strings(report.Errors)

	report.Elapsed = time.Since(start)
	return report, nil
}

func compareFile(opts Options, rel string) (bool, error) {
	fsys := afero.NewOsFs()
	srcPath := filepath.Join(opts.Source, rel)
	dstPath := filepath.Join(opts.Destination, rel)

	srcInfo, err := fsys.Stat(srcPath)
	if err != nil {
		return false, err
	}
	dstInfo, err := fsys.Stat(dstPath)
	if err != nil {
		return false, err
	}
	return opts.Comparator.Same(fsys, srcPath, dstPath, srcInfo, dstInfo)
}

// walk flattens the tree under root into relative paths. Symlinks are
// classified by their targets and never followed; broken ones are ignored.
func walk(ctx context.Context, root string, opts Options) (*tree, error) {
	t := &tree{entries: make(map[string]entryKind)}
	conf := fastwalk.Config{Follow: false, NumWorkers: opts.Workers}

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			t.addError(path, err)
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			t.addError(path, err)
			return nil
		}
		if opts.Filter.Excluded(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		mode := d.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				return nil //nolint:nilerr // broken symlinks are not mirrored
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			t.add(rel, kindFolder)
		case mode.IsRegular():
			t.add(rel, kindFile)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return nil, err
	}
	return t, nil
}

func (t *tree) add(rel string, kind entryKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[rel] = kind
}

func (t *tree) addError(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, fmt.Sprintf("%s: %v", path, err))
}

// topmost sorts folders and drops any folder inside another listed one.
func topmost(folders []string) []string {
	sort.Strings(folders)
	return outside(folders, folders)
}

// outside sorts files and drops any file inside one of folders.
func outside(files, folders []string) []string {
	sort.Strings(files)
	var out []string
	for _, f := range files {
		inside := false
		for _, dir := range folders {
			if isUnder(f, dir) {
				inside = true
				break
			}
		}
		if !inside {
			out = append(out, f)
		}
	}
	return out
}

func isUnder(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
