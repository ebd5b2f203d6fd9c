package bm

// Match is one occurrence of the pattern inside a buffer.
type Match struct {
	Offset int // byte offset of the first pattern byte
	Line   int // 1-based line number of Offset
}

// Cursor scans one buffer for successive occurrences of a pattern.
//
// The buffer and tables are borrowed and must outlive the cursor. Newlines
// are counted over every byte the scan moves past, including bytes the shift
// tables skip without comparing, so Line is exact at every reported match.
type Cursor struct {
	tables *Tables
	buf    []byte

	start   int // scan window begins here
	counted int // newlines counted in buf[:counted]
	line    int
	done    bool
}

// NewCursor returns a cursor positioned at the start of buf on line 1.
func NewCursor(t *Tables, buf []byte) *Cursor {
	return &Cursor{
		tables: t,
		buf:    buf,
		line:   1,
	}
}

// Next finds the next occurrence at or after the cursor's start position.
// It reports ok=false when the rest of the buffer holds no match.
//
// An empty pattern matches at the current start without consuming input.
func (c *Cursor) Next() (offset int, ok bool) {
	if c.done {
		return 0, false
	}

	n := c.tables.Len()
	if n == 0 {
		if c.start > len(c.buf) {
			return 0, false
		}
		c.advanceLine(c.start)
		return c.start, true
	}

	pat := c.tables.pattern
	text := c.buf[c.start:]
	textLen := len(text)

	i := n - 1
	for i < textLen {
		c.advanceLine(c.start + i - n + 1)

		j := n - 1
		for j >= 0 && text[i] == pat[j] {
			i--
			j--
		}
		if j < 0 {
			return c.start + i + 1, true
		}

		i += c.tables.Shift(text[i], j)
	}

	c.done = true
	return 0, false
}

// Line returns the line counter. After Next reports a match it is the line
// the match starts on.
func (c *Cursor) Line() int {
	return c.line
}

// Reseed restarts scanning at absolute offset from, typically
// matchOffset+patternLength. The line counter is carried forward, never reset.
func (c *Cursor) Reseed(from int) {
	if from >= len(c.buf) {
		c.start = len(c.buf)
		c.done = true
		return
	}
	c.start = from
}

// All drains the cursor and returns every remaining match in ascending,
// non-overlapping order.
func (c *Cursor) All() []Match {
	var matches []Match
	for {
		off, ok := c.Next()
		if !ok {
			return matches
		}
		matches = append(matches, Match{Offset: off, Line: c.line})

		// The empty pattern matches once; re-seeding at the same offset
		// would report it forever.
		if c.tables.Len() == 0 {
			c.done = true
			return matches
		}
		c.Reseed(off + c.tables.Len())
	}
}

// advanceLine counts newlines up to (not including) pos.
func (c *Cursor) advanceLine(pos int) {
	if pos <= c.counted {
		return
	}
	for _, b := range c.buf[c.counted:pos] {
		if b == '\n' {
			c.line++
		}
	}
	c.counted = pos
}
