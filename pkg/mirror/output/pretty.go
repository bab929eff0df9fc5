package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mirror/pkg/mirror/manifest"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	if r.Verify != nil {
		f.formatVerify(w, r)
	}
	if len(r.History) > 0 {
		if r.Detail {
			for _, e := range r.History {
				w.WriteString(f.formatEntry(e))
				w.WriteString("\n")
			}
		} else {
			w.WriteString(f.formatHistory(r.History))
		}
	}
	return nil
}

func (f *PrettyFormatter) formatVerify(w *bytes.Buffer, r *Result) {
	rep := r.Verify

	header := strings.Join([]string{
		LabelStyle.Render("Source:") + " " + ValueStyle.Render(rep.Source),
		LabelStyle.Render("Destination:") + " " + ValueStyle.Render(rep.Destination),
		LabelStyle.Render("Checked:") + " " + ValueStyle.Render(fmt.Sprintf("%d folders, %d files in %s",
			rep.FoldersChecked, rep.FilesChecked, formatDuration(rep.Elapsed))),
	}, "\n")
	w.WriteString(HeaderBox.Render(header))
	w.WriteString("\n")

	sections := []struct {
		title string
		paths []string
		style lipgloss.Style
	}{
		{"Missing folders", rep.MissingFolders, WarningStyle},
		{"Extra folders", rep.ExtraFolders, WarningStyle},
		{"Missing files", rep.MissingFiles, WarningStyle},
		{"Extra files", rep.ExtraFiles, WarningStyle},
		{"Differing files", rep.Differing, ErrorStyle},
		{"Errors", rep.Errors, ErrorStyle},
	}
	for _, s := range sections {
		if len(s.paths) == 0 {
			continue
		}
		w.WriteString(TitleStyle.Render(fmt.Sprintf("%s (%d)", s.title, len(s.paths))))
		w.WriteString("\n")
		for _, p := range s.paths {
			w.WriteString("  " + s.style.Render(p) + "\n")
		}
	}

	var verdict string
	if rep.Converged() {
		verdict = SuccessStyle.Bold(true).Render("Converged")
	} else {
		verdict = ErrorStyle.Bold(true).Render(fmt.Sprintf("Diverged: %d differences", rep.Differences()))
	}
	w.WriteString(FooterBox.Render(verdict))
	w.WriteString("\n")
}

func (f *PrettyFormatter) formatHistory(entries []manifest.Entry) string {
	var sb strings.Builder

	headers := []string{"ID", "STARTED", "STATUS", "DURATION", "COPIED", "REMOVED", "BYTES"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			shortID(e.ID),
			humanize.Time(e.Timestamp),
			e.Status(),
			formatDuration(e.Elapsed),
			fmt.Sprintf("%d", e.Stats.FilesCopied),
			fmt.Sprintf("%d", e.Stats.FilesRemoved+e.Stats.FoldersRemoved),
			humanize.IBytes(uint64(e.Stats.BytesCopied)),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = TableHeaderStyle.Render(padRight(h, widths[i]))
	}
	sb.WriteString("  " + strings.Join(cells, "  ") + "\n")

	for _, row := range rows {
		for i, cell := range row {
			style := ValueStyle
			if i == 2 {
				style = SuccessStyle
				if cell == manifest.StatusFailed {
					style = ErrorStyle
				}
			}
			cells[i] = style.Render(padRight(cell, widths[i]))
		}
		sb.WriteString("  " + strings.Join(cells, "  ") + "\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatEntry(e manifest.Entry) string {
	status := SuccessStyle.Render(e.Status())
	if e.Status() == manifest.StatusFailed {
		status = ErrorStyle.Render(e.Status())
	}

	line := func(label, value string) string {
		return LabelStyle.Render(padRight(label+":", 17)) + " " + ValueStyle.Render(value)
	}
	lines := []string{
		TitleStyle.Render("Pass "+e.ID) + "  " + status,
		line("Started", e.Timestamp.Local().Format("2006-01-02 15:04:05")+" ("+humanize.Time(e.Timestamp)+")"),
		line("Source", e.Source),
		line("Destination", e.Destination),
		line("Duration", formatDuration(e.Elapsed)),
		line("Folders created", fmt.Sprintf("%d", e.Stats.FoldersCreated)),
		line("Folders removed", fmt.Sprintf("%d", e.Stats.FoldersRemoved)),
		line("Files copied", fmt.Sprintf("%d (%s)", e.Stats.FilesCopied, humanize.IBytes(uint64(e.Stats.BytesCopied)))),
		line("Files removed", fmt.Sprintf("%d", e.Stats.FilesRemoved)),
		line("Files unchanged", fmt.Sprintf("%d", e.Stats.FilesSkipped)),
	}
	if e.Stats.Errors > 0 {
		lines = append(lines, line("Errors", WarningStyle.Render(fmt.Sprintf("%d", e.Stats.Errors))))
	}
	if e.Error != "" {
		lines = append(lines, LabelStyle.Render(padRight("Error:", 17))+" "+ErrorStyle.Render(e.Error))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// padRight pads a string with spaces on the right to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
