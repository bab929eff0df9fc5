package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// PlainFormatter formats output as plain tab-separated text.
// It produces output suitable for scripting and piping.
// No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	if r.Verify != nil {
		if err := f.formatVerify(w, r); err != nil {
			return err
		}
	}
	if len(r.History) > 0 {
		if r.Detail {
			f.formatDetail(w, r)
			return nil
		}
		return f.formatHistory(w, r)
	}
	return nil
}

func (f *PlainFormatter) formatVerify(w *bytes.Buffer, r *Result) error {
	rep := r.Verify
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	rows := []struct {
		kind  string
		paths []string
	}{
		{"missing-folder", rep.MissingFolders},
		{"extra-folder", rep.ExtraFolders},
		{"missing-file", rep.MissingFiles},
		{"extra-file", rep.ExtraFiles},
		{"differs", rep.Differing},
		{"error", rep.Errors},
	}
	for _, row := range rows {
		for _, p := range row.paths {
			if _, err := fmt.Fprintf(tw, "%s\t%s\n", row.kind, p); err != nil {
				return err
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if rep.Converged() {
		fmt.Fprintf(w, "converged: %d folders, %d files\n", rep.FoldersChecked, rep.FilesChecked)
	} else {
		fmt.Fprintf(w, "diverged: %d differences\n", rep.Differences())
	}
	return nil
}

func (f *PlainFormatter) formatHistory(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("ID\tSTARTED\tSTATUS\tDURATION\tCOPIED\tREMOVED\tCREATED\tBYTES\n")); err != nil {
		return err
	}
	for _, e := range r.History {
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			shortID(e.ID),
			e.Timestamp.Local().Format(time.DateTime),
			e.Status(),
			formatDuration(e.Elapsed),
			e.Stats.FilesCopied,
			e.Stats.FilesRemoved+e.Stats.FoldersRemoved,
			e.Stats.FoldersCreated,
			humanize.IBytes(uint64(e.Stats.BytesCopied)),
		)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func (f *PlainFormatter) formatDetail(w *bytes.Buffer, r *Result) {
	for i, e := range r.History {
		if i > 0 {
			w.WriteString("\n")
		}
		fmt.Fprintf(w, "id: %s\n", e.ID)
		fmt.Fprintf(w, "session: %s\n", e.Session)
		fmt.Fprintf(w, "started: %s\n", e.Timestamp.Local().Format(time.RFC3339))
		fmt.Fprintf(w, "status: %s\n", e.Status())
		fmt.Fprintf(w, "source: %s\n", e.Source)
		fmt.Fprintf(w, "destination: %s\n", e.Destination)
		fmt.Fprintf(w, "duration: %s\n", formatDuration(e.Elapsed))
		fmt.Fprintf(w, "levels: %d\n", e.Stats.LevelsVisited)
		fmt.Fprintf(w, "folders created: %d\n", e.Stats.FoldersCreated)
		fmt.Fprintf(w, "folders removed: %d\n", e.Stats.FoldersRemoved)
		fmt.Fprintf(w, "files copied: %d (%s)\n", e.Stats.FilesCopied, humanize.IBytes(uint64(e.Stats.BytesCopied)))
		fmt.Fprintf(w, "files removed: %d\n", e.Stats.FilesRemoved)
		fmt.Fprintf(w, "files unchanged: %d\n", e.Stats.FilesSkipped)
		fmt.Fprintf(w, "errors: %d\n", e.Stats.Errors)
		if e.Error != "" {
			fmt.Fprintf(w, "error: %s\n", e.Error)
		}
	}
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
