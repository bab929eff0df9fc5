package output

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mirror/pkg/mirror/manifest"
	"github.com/jamesainslie/mirror/pkg/mirror/types"
	"github.com/jamesainslie/mirror/pkg/mirror/verify"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Verify  *verifyView `json:"verify,omitempty" yaml:"verify,omitempty"`
	History []entryView `json:"history,omitempty" yaml:"history,omitempty"`
}

type verifyView struct {
	Source         string   `json:"source" yaml:"source"`
	Destination    string   `json:"destination" yaml:"destination"`
	Converged      bool     `json:"converged" yaml:"converged"`
	Differences    int      `json:"differences" yaml:"differences"`
	FoldersChecked int64    `json:"folders_checked" yaml:"folders_checked"`
	FilesChecked   int64    `json:"files_checked" yaml:"files_checked"`
	Duration       string   `json:"duration" yaml:"duration"`
	MissingFolders []string `json:"missing_folders" yaml:"missing_folders"`
	ExtraFolders   []string `json:"extra_folders" yaml:"extra_folders"`
	MissingFiles   []string `json:"missing_files" yaml:"missing_files"`
	ExtraFiles     []string `json:"extra_files" yaml:"extra_files"`
	Differing      []string `json:"differing" yaml:"differing"`
	Errors         []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type entryView struct {
	ID          string      `json:"id" yaml:"id"`
	Session     string      `json:"session" yaml:"session"`
	Status      string      `json:"status" yaml:"status"`
	Timestamp   time.Time   `json:"timestamp" yaml:"timestamp"`
	Source      string      `json:"source" yaml:"source"`
	Destination string      `json:"destination" yaml:"destination"`
	Duration    string      `json:"duration" yaml:"duration"`
	Stats       types.Stats `json:"stats" yaml:"stats"`
	BytesHuman  string      `json:"bytes_copied_human" yaml:"bytes_copied_human"`
	Error       string      `json:"error,omitempty" yaml:"error,omitempty"`
}

func buildDocument(r *Result) document {
	var doc document
	if r.Verify != nil {
		doc.Verify = newVerifyView(r.Verify)
	}
	for _, e := range r.History {
		doc.History = append(doc.History, newEntryView(e))
	}
	return doc
}

func newVerifyView(rep *verify.Report) *verifyView {
	return &verifyView{
		Source:         rep.Source,
		Destination:    rep.Destination,
		Converged:      rep.Converged(),
		Differences:    rep.Differences(),
		FoldersChecked: rep.FoldersChecked,
		FilesChecked:   rep.FilesChecked,
		Duration:       formatDuration(rep.Elapsed),
		MissingFolders: nonNil(rep.MissingFolders),
		ExtraFolders:   nonNil(rep.ExtraFolders),
		MissingFiles:   nonNil(rep.MissingFiles),
		ExtraFiles:     nonNil(rep.ExtraFiles),
		Differing:      nonNil(rep.Differing),
		Errors:         rep.Errors,
	}
}

func newEntryView(e manifest.Entry) entryView {
	return entryView{
		ID:          e.ID,
		Session:     e.Session,
		Status:      e.Status(),
		Timestamp:   e.Timestamp,
		Source:      e.Source,
		Destination: e.Destination,
		Duration:    formatDuration(e.Elapsed),
		Stats:       e.Stats,
		BytesHuman:  humanize.IBytes(uint64(e.Stats.BytesCopied)),
		Error:       e.Error,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// shortID trims a UUID to its first block for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
