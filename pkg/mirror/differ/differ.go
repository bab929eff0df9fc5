// Package differ reconciles one directory level of a destination tree with
// the matching level of a source tree.
//
// For a level, the folders present only in the destination are removed
// recursively, the files present only in the destination are removed, the
// folders present only in the source are created empty, and every source
// file is copied when it is missing from the destination or differs from it.
// Removals run before creations, so a name that changed between file and
// folder converges in a single pass. Descending into child levels is the
// caller's job.
package differ

import (
	"context"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/jamesainslie/mirror/pkg/mirror/filter"
	"github.com/jamesainslie/mirror/pkg/mirror/logging"
	"github.com/jamesainslie/mirror/pkg/mirror/types"
)

// Options configures a Differ.
type Options struct {
	// Comparator decides whether an existing destination file is current.
	// Nil uses ContentComparator.
	Comparator Comparator

	// Filter hides entries from both listings. Nil hides nothing.
	Filter *filter.Matcher

	// SourceRoot and DestRoot anchor the relative paths Filter matches on.
	// When empty, entries are matched by name alone.
	SourceRoot string
	DestRoot   string

	// ContinueOnError logs and counts a failed entry and moves on to the next
	// one instead of stopping the level.
	ContinueOnError bool

	// Logger receives one event per action. Nil discards.
	Logger *logging.Logger
}

// Differ applies change sets to a filesystem.
type Differ struct {
	fs     afero.Fs
	opts   Options
	logger *logging.Logger
}

// New returns a Differ over fsys.
func New(fsys afero.Fs, opts Options) *Differ {
	if opts.Comparator == nil {
		opts.Comparator = ContentComparator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Differ{fs: fsys, opts: opts, logger: logger}
}

// LevelResult is the outcome of reconciling one level.
type LevelResult struct {
	Stats types.Stats

	// Descend lists the source folders to visit next, in name order.
	// Excluded folders and folders reached through symlinks are left out.
	Descend []string
}

// Reconcile makes dstDir match srcDir for one level.
func (d *Differ) Reconcile(ctx context.Context, srcDir, dstDir string) (types.Stats, error) {
	res, err := d.ReconcileLevel(ctx, srcDir, dstDir)
	return res.Stats, err
}

// ReconcileLevel makes dstDir match srcDir for one level and reports which
// source folders the caller should descend into.
func (d *Differ) ReconcileLevel(ctx context.Context, srcDir, dstDir string) (LevelResult, error) {
	var res LevelResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	res.Stats.LevelsVisited = 1

	// A level that cannot be listed is skipped whole, children included.
	src, err := ReadListing(d.fs, srcDir)
	if err != nil {
		return res, d.fail(&res.Stats, &OpError{Op: OpList, Path: srcDir, Err: err})
	}
	dst, err := ReadListing(d.fs, dstDir)
	if err != nil {
		return res, d.fail(&res.Stats, &OpError{Op: OpList, Path: dstDir, Err: err})
	}

	src = src.without(d.excluder(d.opts.SourceRoot, srcDir))
	dst = dst.without(d.excluder(d.opts.DestRoot, dstDir))
	d.logSkipped(src)

	cs := Compute(src, dst)
	d.logSkipped(dst.without(func(name string) bool { return contains(cs.FilesToRemove, name) }))
	if err := d.apply(cs, src, dst, &res.Stats); err != nil {
		return res, err
	}

	for _, name := range src.Folders {
		if !src.IsLink(name) {
			res.Descend = append(res.Descend, name)
		}
	}
	return res, nil
}

func (d *Differ) apply(cs ChangeSet, src, dst Listing, stats *types.Stats) error {
	for _, name := range cs.FoldersToRemove {
		path := filepath.Join(dst.Dir, name)
		d.logger.Info("removing folder", "path", path)
		if err := d.fs.RemoveAll(path); err != nil {
			if err := d.fail(stats, &OpError{Op: OpRemoveFolder, Path: path, Err: err}); err != nil {
				return err
			}
			continue
		}
		stats.FoldersRemoved++
	}

	for _, name := range cs.FilesToRemove {
		path := filepath.Join(dst.Dir, name)
		d.logger.Info("removing file", "path", path)
		if err := d.fs.Remove(path); err != nil {
			if err := d.fail(stats, &OpError{Op: OpRemoveFile, Path: path, Err: err}); err != nil {
				return err
			}
			continue
		}
		stats.FilesRemoved++
	}

	for _, name := range cs.FoldersToCreate {
		path := filepath.Join(dst.Dir, name)
		d.logger.Info("creating folder", "path", path)
		if err := d.fs.Mkdir(path, 0o755); err != nil {
			if err := d.fail(stats, &OpError{Op: OpCreateFolder, Path: path, Err: err}); err != nil {
				return err
			}
			continue
		}
		stats.FoldersCreated++
	}

	for _, name := range cs.FilesToSync {
		if err := d.syncFile(name, src.Dir, dst.Dir, dst.HasFile(name), stats); err != nil {
			if err := d.fail(stats, err); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Differ) syncFile(name, srcDir, dstDir string, exists bool, stats *types.Stats) error {
	srcPath := filepath.Join(srcDir, name)
	dstPath := filepath.Join(dstDir, name)

	srcInfo, err := d.fs.Stat(srcPath)
	if err != nil {
		return &OpError{Op: OpCopy, Path: srcPath, Err: err}
	}

	// A symlinked destination file is replaced by a copy even when the
	// content it points at matches.
	if exists && !isSymlink(d.fs, dstPath) {
		dstInfo, err := d.fs.Stat(dstPath)
		if err != nil {
			return &OpError{Op: OpCompare, Path: dstPath, Err: err}
		}
		same, err := d.opts.Comparator.Same(d.fs, srcPath, dstPath, srcInfo, dstInfo)
		if err != nil {
			return &OpError{Op: OpCompare, Path: dstPath, Err: err}
		}
		if same {
			d.logger.Debug("file unchanged, skipping", "path", srcPath)
			stats.FilesSkipped++
			return nil
		}
	}

	d.logger.Info("copying file", "from", srcPath, "to", dstPath, "size", humanize.IBytes(uint64(srcInfo.Size())))
	n, err := copyFile(d.fs, srcPath, dstPath, srcInfo)
	if err != nil {
		return &OpError{Op: OpCopy, Path: dstPath, Err: err}
	}
	stats.FilesCopied++
	stats.BytesCopied += n
	return nil
}

// fail applies the error policy. It returns err when the level must stop.
func (d *Differ) fail(stats *types.Stats, err error) error {
	if !d.opts.ContinueOnError {
		return err
	}
	d.logger.Error("operation failed, continuing", "error", err)
	stats.Errors++
	return nil
}

func (d *Differ) logSkipped(l Listing) {
	for _, s := range l.Skipped {
		d.logger.Warn("skipping entry", "path", filepath.Join(l.Dir, s.Name), "reason", s.Reason)
	}
}

// excluder returns a predicate reporting whether a child of dir is excluded.
func (d *Differ) excluder(root, dir string) func(string) bool {
	if d.opts.Filter == nil {
		return func(string) bool { return false }
	}

	prefix := ""
	if root != "" {
		rel, err := filepath.Rel(root, dir)
		if err == nil && rel != "." {
			prefix = rel
		}
	}
	return func(name string) bool {
		return d.opts.Filter.Excluded(filepath.Join(prefix, name))
	}
}

// Comparator returns the comparator in use.
func (d *Differ) Comparator() Comparator {
	return d.opts.Comparator
}
