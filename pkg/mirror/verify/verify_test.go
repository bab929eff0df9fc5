package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/mirror/pkg/mirror/filter"
)

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func roots(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.Mkdir(dst, 0o755))
	return src, dst
}

func TestCompareConverged(t *testing.T) {
	src, dst := roots(t)
	for _, root := range []string{src, dst} {
		mkfile(t, filepath.Join(root, "a.txt"), "alpha")
		mkfile(t, filepath.Join(root, "sub", "b.txt"), "beta")
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	}

	report, err := Compare(context.Background(), Options{Source: src, Destination: dst})
	require.NoError(t, err)

	assert.True(t, report.Converged())
	assert.Zero(t, report.Differences())
	assert.Equal(t, int64(2), report.FoldersChecked)
	assert.Equal(t, int64(2), report.FilesChecked)
}

func TestCompareReportsDifferences(t *testing.T) {
	src, dst := roots(t)
	mkfile(t, filepath.Join(src, "same.txt"), "same")
	mkfile(t, filepath.Join(dst, "same.txt"), "same")
	mkfile(t, filepath.Join(src, "changed.txt"), "new!")
	mkfile(t, filepath.Join(dst, "changed.txt"), "old!")
	mkfile(t, filepath.Join(src, "only-src.txt"), "x")
	mkfile(t, filepath.Join(dst, "only-dst.txt"), "x")
	mkfile(t, filepath.Join(src, "newdir", "deep", "f.txt"), "x")
	mkfile(t, filepath.Join(dst, "olddir", "deep", "f.txt"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(src, "kind"), 0o755))
	mkfile(t, filepath.Join(dst, "kind"), "was a folder")

	report, err := Compare(context.Background(), Options{Source: src, Destination: dst})
	require.NoError(t, err)

	assert.False(t, report.Converged())
	assert.Equal(t, []string{"kind", "newdir"}, report.MissingFolders)
	assert.Equal(t, []string{"olddir"}, report.ExtraFolders)
	assert.Equal(t, []string{"only-src.txt"}, report.MissingFiles)
	assert.Equal(t, []string{"kind", "only-dst.txt"}, report.ExtraFiles)
	assert.Equal(t, []string{"changed.txt"}, report.Differing)
	assert.Equal(t, 7, report.Differences())
}

func TestCompareHonoursFilter(t *testing.T) {
	src, dst := roots(t)
	mkfile(t, filepath.Join(src, "keep.txt"), "k")
	mkfile(t, filepath.Join(dst, "keep.txt"), "k")
	mkfile(t, filepath.Join(src, "scratch.tmp"), "s")
	mkfile(t, filepath.Join(dst, "cache", "blob"), "b")

	m, err := filter.New("*.tmp", "cache")
	require.NoError(t, err)

	report, err := Compare(context.Background(), Options{Source: src, Destination: dst, Filter: m})
	require.NoError(t, err)
	assert.True(t, report.Converged(), "%+v", report)
}

func TestCompareMissingRoot(t *testing.T) {
	src, _ := roots(t)
	_, err := Compare(context.Background(), Options{Source: src, Destination: filepath.Join(src, "nope")})
	require.Error(t, err)
}

func TestCompareCancelled(t *testing.T) {
	src, dst := roots(t)
	mkfile(t, filepath.Join(src, "a.txt"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compare(ctx, Options{Source: src, Destination: dst})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopmost(t *testing.T) {
	got := topmost([]string{"a/c", "a b", "a", "b/x", "b/x/y"})
	assert.Equal(t, []string{"a", "a b", "b/x"}, got)
}
