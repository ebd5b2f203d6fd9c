package search

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
	"github.com/Aman-CERP/bmgrep/internal/filesource"
)

// Context window limits. Values are kept from the tool's established output.
const (
	// PrefixMaxLen bounds how far context extraction walks back from a match.
	PrefixMaxLen = 64
	// PostfixMaxLen is added to PrefixMaxLen to bound the emitted snippet.
	PostfixMaxLen = 64
	// PrintWindowLen is the window re-read from disk when printing a stored match.
	PrintWindowLen = 128

	printableMin = 20
	printableMax = 126
)

// DefaultFormat prints "path:line: " before the context snippet.
const DefaultFormat = "%s:%d: "

// OutputWriter serializes match output from concurrent workers. Each Print
// writes the header and the context body as one unit.
type OutputWriter struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	buf    bytes.Buffer
	err    error
}

// NewOutputWriter returns a writer printing headers with format, which must
// take the file name then the line number.
func NewOutputWriter(out io.Writer, format string) (*OutputWriter, error) {
	if format == "" {
		format = DefaultFormat
	}
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	return &OutputWriter{out: out, format: format}, nil
}

// Print writes the header for m and the context snippet taken from buf,
// the still-loaded contents of m.File.
func (w *OutputWriter) Print(m Match, buf []byte) error {
	return w.write(m, Context(buf, int(m.Offset)))
}

// PrintFromFile writes m after its file buffer has been released: a small
// window starting at the furthest byte Context can walk back to is read back
// from src to rebuild context. When the file can no longer be read only the
// header is printed.
func (w *OutputWriter) PrintFromFile(m Match, src filesource.Source) error {
	start := m.Offset - (PrefixMaxLen - 1)
	if start < 0 {
		start = 0
	}

	window, err := src.ReadAt(m.File, start, PrintWindowLen)
	if err != nil {
		return w.write(m, nil)
	}
	return w.write(m, Context(window, int(m.Offset-start)))
}

// Err returns the first write error seen, if any.
func (w *OutputWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *OutputWriter) write(m Match, body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}

	w.buf.Reset()
	_, _ = fmt.Fprintf(&w.buf, w.format, m.File, m.Line)
	w.buf.Write(body)
	w.buf.WriteByte('\n')

	if _, err := w.out.Write(w.buf.Bytes()); err != nil {
		w.err = fmt.Errorf("write output: %w", err)
		return w.err
	}
	return nil
}

// Context extracts the printable part of the line around offset. It walks
// back to the previous line ending or at most PrefixMaxLen bytes, then
// forward to the next line ending, the end of buf, or until
// PrefixMaxLen+PostfixMaxLen bytes were emitted. Non-printable bytes are
// dropped.
func Context(buf []byte, offset int) []byte {
	start := offset
	if start >= len(buf) {
		start = len(buf)
	} else {
		if start < 0 {
			start = 0
		}
		n := PrefixMaxLen
		for start >= 0 && !isLineEnding(buf[start]) && n > 0 {
			start--
			n--
		}
		start++
	}

	out := make([]byte, 0, PrefixMaxLen+PostfixMaxLen)
	n := PrefixMaxLen + PostfixMaxLen
	for p := start; p < len(buf) && !isLineEnding(buf[p]) && n > 0; p++ {
		if isPrintable(buf[p]) {
			out = append(out, buf[p])
			n--
		}
	}
	return out
}

// isPrintable keeps bytes 20..126. The lower bound is 20, not 0x20.
func isPrintable(c byte) bool {
	return c >= printableMin && c <= printableMax
}

func isLineEnding(c byte) bool {
	return c == '\n' || c == '\r'
}

// ValidateFormat checks that format has exactly two verbs, the first taking
// the file name and the second the line number.
func ValidateFormat(format string) error {
	var verbs []byte
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			continue
		}
		for i < len(format) && isVerbModifier(format[i]) {
			i++
		}
		if i >= len(format) {
			return invalidFormat(format, "dangling %")
		}
		verbs = append(verbs, format[i])
	}

	if len(verbs) != 2 {
		return invalidFormat(format, fmt.Sprintf("want 2 verbs, found %d", len(verbs)))
	}
	switch verbs[0] {
	case 's', 'q', 'v':
	default:
		return invalidFormat(format, fmt.Sprintf("first verb %%%c cannot print a file name", verbs[0]))
	}
	switch verbs[1] {
	case 'd', 'v':
	default:
		return invalidFormat(format, fmt.Sprintf("second verb %%%c cannot print a line number", verbs[1]))
	}
	return nil
}

func isVerbModifier(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c == '-', c == '+', c == '#', c == ' ', c == '.':
		return true
	}
	return false
}

func invalidFormat(format, reason string) error {
	return serrors.New(serrors.ErrCodeInvalidFormat, fmt.Sprintf("invalid output format %q: %s", format, reason), nil).
		WithSuggestion(`use a format like "%s:%d: "`)
}
