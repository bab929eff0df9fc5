package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mirror/pkg/mirror/manifest"
	"github.com/jamesainslie/mirror/pkg/mirror/types"
	"github.com/jamesainslie/mirror/pkg/mirror/verify"
)

func divergedReport() *verify.Report {
	return &verify.Report{
		Source:         "/src",
		Destination:    "/dst",
		Elapsed:        250 * time.Millisecond,
		FoldersChecked: 3,
		FilesChecked:   10,
		MissingFolders: []string{"photos"},
		ExtraFiles:     []string{"stale.txt"},
		Differing:      []string{"notes/todo.md"},
	}
}

func convergedReport() *verify.Report {
	return &verify.Report{Source: "/src", Destination: "/dst", FoldersChecked: 3, FilesChecked: 10}
}

func historyEntries() []manifest.Entry {
	return []manifest.Entry{
		{
			ID:        "3f2a9c10-0000-4000-8000-000000000001",
			Session:   "s-1",
			Timestamp: time.Now().Add(-time.Minute),
			Elapsed:   2 * time.Second,
			Stats:     types.Stats{FilesCopied: 4, FilesRemoved: 1, BytesCopied: 4096},
		},
		{
			ID:        "9d00e1e1-0000-4000-8000-000000000002",
			Session:   "s-1",
			Timestamp: time.Now().Add(-2 * time.Minute),
			Elapsed:   time.Second,
			Error:     "copy /dst/a: permission denied",
		},
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "plain", "pretty", "yaml"}, Available())

	for _, name := range Available() {
		f, err := Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	_, err := Get("xml")
	assert.Error(t, err)

	r := NewRegistry()
	r.Register("x", func() Formatter { return &PlainFormatter{} })
	assert.Equal(t, []string{"x"}, r.Available())
}

func TestPlainFormatter_Verify(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, &Result{Verify: divergedReport()}))

	out := buf.String()
	assert.Contains(t, out, "missing-folder photos")
	assert.Contains(t, out, "extra-file     stale.txt")
	assert.Contains(t, out, "differs        notes/todo.md")
	assert.Contains(t, out, "diverged: 3 differences")

	buf.Reset()
	require.NoError(t, (&PlainFormatter{}).Format(&buf, &Result{Verify: convergedReport()}))
	assert.Equal(t, "converged: 3 folders, 10 files\n", buf.String())
}

func TestPlainFormatter_History(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, &Result{History: historyEntries()}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "3f2a9c10")
	assert.Contains(t, lines[1], "ok")
	assert.Contains(t, lines[1], "4.0 KiB")
	assert.Contains(t, lines[2], "failed")
}

func TestPlainFormatter_Detail(t *testing.T) {
	var buf bytes.Buffer
	entries := historyEntries()[1:]
	require.NoError(t, (&PlainFormatter{}).Format(&buf, &Result{History: entries, Detail: true}))

	out := buf.String()
	assert.Contains(t, out, "id: 9d00e1e1-0000-4000-8000-000000000002\n")
	assert.Contains(t, out, "status: failed\n")
	assert.Contains(t, out, "error: copy /dst/a: permission denied\n")
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &PrettyFormatter{}

	require.NoError(t, f.Format(&buf, &Result{Verify: divergedReport()}))
	out := buf.String()
	assert.Contains(t, out, "Missing folders (1)")
	assert.Contains(t, out, "photos")
	assert.Contains(t, out, "Diverged: 3 differences")

	buf.Reset()
	require.NoError(t, f.Format(&buf, &Result{Verify: convergedReport()}))
	assert.Contains(t, buf.String(), "Converged")

	buf.Reset()
	require.NoError(t, f.Format(&buf, &Result{History: historyEntries()}))
	out = buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "9d00e1e1")
	assert.Contains(t, out, "minute")

	buf.Reset()
	require.NoError(t, f.Format(&buf, &Result{History: historyEntries()[:1], Detail: true}))
	assert.Contains(t, buf.String(), "Files copied")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, &Result{Verify: divergedReport(), History: historyEntries()}))

	var doc struct {
		Verify struct {
			Converged      bool     `json:"converged"`
			Differences    int      `json:"differences"`
			MissingFolders []string `json:"missing_folders"`
			ExtraFolders   []string `json:"extra_folders"`
		} `json:"verify"`
		History []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Stats  struct {
				FilesCopied int64 `json:"files_copied"`
			} `json:"stats"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.False(t, doc.Verify.Converged)
	assert.Equal(t, 3, doc.Verify.Differences)
	assert.Equal(t, []string{"photos"}, doc.Verify.MissingFolders)
	assert.NotNil(t, doc.Verify.ExtraFolders, "empty lists encode as []")
	require.Len(t, doc.History, 2)
	assert.Equal(t, "ok", doc.History[0].Status)
	assert.Equal(t, int64(4), doc.History[0].Stats.FilesCopied)
	assert.Equal(t, "failed", doc.History[1].Status)
}

func TestJSONFormatter_OmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, &Result{Verify: convergedReport()}))
	assert.NotContains(t, buf.String(), "history")
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, &Result{History: historyEntries()}))

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.NotContains(t, doc, "verify")

	history, ok := doc["history"].([]interface{})
	require.True(t, ok)
	require.Len(t, history, 2)
	first := history[0].(map[string]interface{})
	assert.Equal(t, "2.0s", first["duration"])
	assert.Equal(t, "4.0 KiB", first["bytes_copied_human"])
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
