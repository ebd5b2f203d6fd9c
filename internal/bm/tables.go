// Package bm implements the Boyer-Moore literal matcher used by bmgrep.
//
// Tables are built once per pattern and are safe for concurrent read-only
// use. A Cursor is per-buffer state and must not be shared between goroutines.
package bm

// AlphabetSize is the number of distinct byte values.
const AlphabetSize = 256

// Tables holds the precomputed shift tables for one pattern.
type Tables struct {
	// BadChar maps a byte to the distance between the pattern's last byte and
	// the rightmost occurrence of that byte before it. Bytes not in the
	// pattern map to the pattern length.
	BadChar [AlphabetSize]int

	// GoodSuffix maps a mismatch position in the pattern to the shift that
	// re-aligns the already matched suffix with its next plausible occurrence.
	GoodSuffix []int

	pattern []byte
}

// NewTables builds the bad-character and good-suffix tables for pattern.
// An empty pattern gets no tables; matching it is a constant special case.
func NewTables(pattern []byte) *Tables {
	p := make([]byte, len(pattern))
	copy(p, pattern)

	t := &Tables{pattern: p}
	if len(p) == 0 {
		return t
	}

	buildBadChar(&t.BadChar, p)
	t.GoodSuffix = buildGoodSuffix(p)
	return t
}

// Pattern returns the pattern the tables were built for.
func (t *Tables) Pattern() []byte {
	return t.pattern
}

// Len returns the pattern length.
func (t *Tables) Len() int {
	return len(t.pattern)
}

// Shift returns the distance to advance after text byte b mismatched the
// pattern at index j. The result is always >= 1.
func (t *Tables) Shift(b byte, j int) int {
	return max(t.BadChar[b], t.GoodSuffix[j])
}

func buildBadChar(table *[AlphabetSize]int, p []byte) {
	n := len(p)
	for i := range table {
		table[i] = n
	}
	for i := 0; i < n-1; i++ {
		table[p[i]] = n - 1 - i
	}
}

// buildGoodSuffix runs two passes. The first handles suffixes that only
// reappear as a prefix of the pattern; the second handles suffixes that occur
// elsewhere in the pattern and may overwrite entries from the first pass.
func buildGoodSuffix(p []byte) []int {
	n := len(p)
	table := make([]int, n)

	lastPrefix := n - 1
	for pos := n - 1; pos >= 0; pos-- {
		if isPrefix(p, pos+1) {
			lastPrefix = pos + 1
		}
		table[pos] = lastPrefix + (n - 1 - pos)
	}

	for pos := 0; pos < n-1; pos++ {
		slen := suffixLength(p, pos)
		if p[pos-slen] != p[n-1-slen] {
			table[n-1-slen] = n - 1 - pos + slen
		}
	}

	return table
}

// isPrefix reports whether p[pos:] is a prefix of p.
func isPrefix(p []byte, pos int) bool {
	suffixLen := len(p) - pos
	for i := 0; i < suffixLen; i++ {
		if p[i] != p[pos+i] {
			return false
		}
	}
	return true
}

// suffixLength returns the length of the longest suffix of p ending at p[pos].
func suffixLength(p []byte, pos int) int {
	n := len(p)
	i := 0
	for i < pos && p[pos-i] == p[n-1-i] {
		i++
	}
	return i
}
