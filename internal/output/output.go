// Package output provides consistent CLI output for bmgrep's own messages:
// status lines, run summaries and locked output files. Search records are
// written by the search package, never here.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Aman-CERP/bmgrep/internal/profiling"
	"github.com/Aman-CERP/bmgrep/internal/search"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer, styled when out is a color-capable terminal.
func New(out io.Writer) *Writer {
	return NewWithColor(out, UseColor(out))
}

// NewWithColor creates a Writer with explicit color choice.
func NewWithColor(out io.Writer, color bool) *Writer {
	return &Writer{
		out:    out,
		styles: GetStyles(!color),
	}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a block with each line indented.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Summary prints the counters of one search run. heap is shown when
// non-zero.
func (w *Writer) Summary(stats search.Stats, heap uint64) {
	files := fmt.Sprintf("%d searched", stats.Searched)
	if stats.Skipped > 0 {
		files += w.styles.Warning.Render(fmt.Sprintf(", %d skipped", stats.Skipped))
	}

	rows := [][2]string{
		{"matches", w.styles.Value.Render(fmt.Sprintf("%d", stats.Matches))},
		{"files", fmt.Sprintf("%s (%s)", w.styles.Value.Render(fmt.Sprintf("%d", stats.Files)), files)},
		{"elapsed", w.styles.Value.Render(FormatDuration(stats.Duration))},
	}
	if heap > 0 {
		rows = append(rows, [2]string{"heap", w.styles.Value.Render(profiling.FormatBytes(heap))})
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Label.Render(fmt.Sprintf("%-8s", row[0])), row[1])
	}
}

// FormatDuration rounds d for display: microseconds below one millisecond,
// milliseconds otherwise.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
