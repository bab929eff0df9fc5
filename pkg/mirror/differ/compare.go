package differ

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Comparator names.
const (
	CompareContent = "content"
	CompareMtime   = "mtime"
)

// ErrUnknownComparator is returned by ComparatorByName for an unsupported name.
var ErrUnknownComparator = errors.New("unknown comparator")

// Comparator decides whether a destination file already matches its source.
type Comparator interface {
	Name() string
	Same(fsys afero.Fs, src, dst string, srcInfo, dstInfo os.FileInfo) (bool, error)
}

// ComparatorByName returns the comparator registered under name. Empty
// selects the content comparator.
func ComparatorByName(name string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case CompareContent, "":
		return ContentComparator{}, nil
	case CompareMtime:
		return MtimeComparator{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownComparator, name)
	}
}

// compareBufSize is the chunk size used for streaming compares.
const compareBufSize = 64 * 1024

// ContentComparator treats files as the same when their bytes are identical.
// Sizes are checked first.
type ContentComparator struct{}

// Name returns "content".
func (ContentComparator) Name() string { return CompareContent }

// Same streams both files and compares them chunk by chunk.
func (ContentComparator) Same(fsys afero.Fs, src, dst string, srcInfo, dstInfo os.FileInfo) (bool, error) {
	if srcInfo.Size() != dstInfo.Size() {
		return false, nil
	}

	a, err := fsys.Open(src)
	if err != nil {
		return false, err
	}
	defer func() { _ = a.Close() }()

	b, err := fsys.Open(dst)
	if err != nil {
		return false, err
	}
	defer func() { _ = b.Close() }()

	bufA := make([]byte, compareBufSize)
	bufB := make([]byte, compareBufSize)
	for {
		na, errA := io.ReadFull(a, bufA)
		nb, errB := io.ReadFull(b, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}

		doneA := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		doneB := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		if errA != nil && !doneA {
			return false, errA
		}
		if errB != nil && !doneB {
			return false, errB
		}
		if doneA || doneB {
			return doneA == doneB, nil
		}
	}
}

// MtimeComparator treats files with equal modification times as the same.
// It never reads file contents, so an edit that keeps the mtime goes unseen.
type MtimeComparator struct{}

// Name returns "mtime".
func (MtimeComparator) Name() string { return CompareMtime }

// Same compares modification times.
func (MtimeComparator) Same(_ afero.Fs, _, _ string, srcInfo, dstInfo os.FileInfo) (bool, error) {
	return srcInfo.ModTime().Equal(dstInfo.ModTime()), nil
}
