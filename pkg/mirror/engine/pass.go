package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jamesainslie/mirror/pkg/mirror/types"
)

// Prepare checks the roots before the first pass. A missing source is fatal.
// A missing destination is created along with its ancestors.
func (e *Engine) Prepare() error {
	info, err := e.fs.Stat(e.cfg.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrSourceMissing
		}
		return &FatalError{Kind: KindConfig, Op: "startup", Path: e.cfg.Source, Err: err}
	}
	if !info.IsDir() {
		return &FatalError{Kind: KindConfig, Op: "startup", Path: e.cfg.Source, Err: ErrSourceNotDirectory}
	}

	info, err = e.fs.Stat(e.cfg.Destination)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e.logger.Info("creating destination folder", "path", e.cfg.Destination)
		if err := e.fs.MkdirAll(e.cfg.Destination, 0o755); err != nil {
			return &FatalError{Kind: KindConfig, Op: "startup", Path: e.cfg.Destination, Err: err}
		}
	case err != nil:
		return &FatalError{Kind: KindConfig, Op: "startup", Path: e.cfg.Destination, Err: err}
	case !info.IsDir():
		return &FatalError{Kind: KindConfig, Op: "startup", Path: e.cfg.Destination, Err: ErrDestinationNotDirectory}
	}
	return nil
}

// level is one entry of the pass worklist.
type level struct {
	src   string
	dst   string
	depth int
}

// Pass runs one full traversal of the source tree. The returned result is
// filled in even when the pass fails.
func (e *Engine) Pass(ctx context.Context) (types.PassResult, error) {
	prev := e.State()
	e.setState(StatePassInProgress)
	defer e.setState(prev)

	result := types.PassResult{
		ID:          uuid.NewString(),
		Session:     e.session,
		Source:      e.cfg.Source,
		Destination: e.cfg.Destination,
		Started:     e.clock.Now(),
	}
	e.passes.Add(1)
	logger := e.logger.With("pass", shortID(result.ID))
	logger.Debug("pass started")

	err := e.walk(ctx, &result.Stats)
	result.Elapsed = e.clock.Since(result.Started)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	logger.Info("pass complete",
		"elapsed", result.Elapsed.Round(time.Millisecond),
		"copied", result.Stats.FilesCopied,
		"removed", result.Stats.FilesRemoved+result.Stats.FoldersRemoved,
		"created", result.Stats.FoldersCreated,
		"unchanged", result.Stats.FilesSkipped,
		"bytes", humanize.IBytes(uint64(result.Stats.BytesCopied)),
		"errors", result.Stats.Errors,
	)
	return result, nil
}

// walk reconciles levels from an explicit stack. A level's children are
// pushed only after the level itself is reconciled, in reverse name order so
// they pop in name order.
func (e *Engine) walk(ctx context.Context, stats *types.Stats) error {
	stack := []level{{src: e.cfg.Source, dst: e.cfg.Destination}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		res, err := e.differ.ReconcileLevel(ctx, cur.src, cur.dst)
		stats.Add(res.Stats)
		if err != nil {
			return err
		}

		if len(res.Descend) > 0 && cur.depth+1 > e.cfg.MaxDepth {
			return fmt.Errorf("%s: %w (%d)", cur.src, ErrMaxDepthExceeded, e.cfg.MaxDepth)
		}
		for i := len(res.Descend) - 1; i >= 0; i-- {
			src := filepath.Join(cur.src, res.Descend[i])
			dst, err := e.destPath(src)
			if err != nil {
				return err
			}
			stack = append(stack, level{src: src, dst: dst, depth: cur.depth + 1})
		}
	}
	return nil
}
