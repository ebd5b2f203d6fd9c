package search

import (
	"github.com/Aman-CERP/bmgrep/internal/bm"
	"github.com/Aman-CERP/bmgrep/internal/filesource"
)

// Collector runs the scanner over whole files. It is safe for concurrent use:
// the tables are read-only and every call loads its own buffer.
type Collector struct {
	tables *bm.Tables
	source filesource.Source
}

// NewCollector returns a collector searching for the pattern behind tables.
func NewCollector(tables *bm.Tables, source filesource.Source) *Collector {
	return &Collector{tables: tables, source: source}
}

// Collect loads path, scans it and returns every match in offset order. The
// buffer is released before returning, so printing the matches later needs a
// fresh read of the file.
func (c *Collector) Collect(path string) ([]Match, error) {
	buf, err := c.source.Load(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = buf.Release() }()

	found := bm.NewCursor(c.tables, buf.Data).All()
	if len(found) == 0 {
		return nil, nil
	}

	matches := make([]Match, len(found))
	for i, m := range found {
		matches[i] = Match{File: path, Line: m.Line, Offset: int64(m.Offset)}
	}
	return matches, nil
}

// Emit loads path and prints each match through w while the buffer is still
// loaded. It returns the number of matches printed.
func (c *Collector) Emit(path string, w *OutputWriter) (int, error) {
	buf, err := c.source.Load(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = buf.Release() }()

	cur := bm.NewCursor(c.tables, buf.Data)
	n := 0
	for {
		off, ok := cur.Next()
		if !ok {
			return n, nil
		}
		if err := w.Print(Match{File: path, Line: cur.Line(), Offset: int64(off)}, buf.Data); err != nil {
			return n, err
		}
		n++

		if c.tables.Len() == 0 {
			return n, nil
		}
		cur.Reseed(off + c.tables.Len())
	}
}
