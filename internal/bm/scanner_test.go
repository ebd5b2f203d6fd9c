package bm

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveMatches is the reference search: non-overlapping occurrences with
// line numbers computed by counting newlines before each offset.
func naiveMatches(pattern, text []byte) []Match {
	if len(pattern) == 0 {
		return []Match{{Offset: 0, Line: 1}}
	}
	var out []Match
	from := 0
	for {
		k := bytes.Index(text[from:], pattern)
		if k < 0 {
			return out
		}
		off := from + k
		out = append(out, Match{Offset: off, Line: 1 + bytes.Count(text[:off], []byte("\n"))})
		from = off + len(pattern)
	}
}

func randomBytes(r *rand.Rand, alphabet []byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return b
}

func TestCursor_MatchesNaiveSearch_Randomized(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabets := [][]byte{[]byte("ab"), []byte("abc"), []byte("a\n"), []byte("ab\nc")}

	for iter := 0; iter < 20000; iter++ {
		alphabet := alphabets[r.Intn(len(alphabets))]
		pattern := randomBytes(r, alphabet, 1+r.Intn(6))
		text := randomBytes(r, alphabet, r.Intn(60))

		got := NewCursor(NewTables(pattern), text).All()
		want := naiveMatches(pattern, text)

		require.Equal(t, want, got, "pattern %q text %q", pattern, text)
	}
}

func TestCursor_TwoMatchesOnFirstLine(t *testing.T) {
	// Given: "abc" at offsets 2 and 8 with no newline before offset 8
	text := []byte("xxabcxxxabcx\nyy")

	// When: scanning for "abc"
	matches := NewCursor(NewTables([]byte("abc")), text).All()

	// Then: both matches are on line 1
	assert.Equal(t, []Match{{Offset: 2, Line: 1}, {Offset: 8, Line: 1}}, matches)
}

func TestCursor_EmptyPattern_MatchesAtZero(t *testing.T) {
	tests := []struct {
		name string
		text []byte
	}{
		{name: "non-empty buffer", text: []byte("hello\nworld")},
		{name: "zero-length buffer", text: []byte{}},
		{name: "nil buffer", text: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := NewCursor(NewTables(nil), tt.text).All()
			assert.Equal(t, []Match{{Offset: 0, Line: 1}}, matches)
		})
	}
}

func TestCursor_EmptyPattern_NextDoesNotConsumeInput(t *testing.T) {
	c := NewCursor(NewTables(nil), []byte("abc"))

	off1, ok1 := c.Next()
	off2, ok2 := c.Next()

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, 0, off1)
	assert.Equal(t, 0, off2)
}

func TestCursor_LineNumbers_MatchNewlineOracle(t *testing.T) {
	// Given: matches spread across lines, with long skips between them
	text := []byte("first line\nsecond needle line\n\n\nfourth\nneedle at start\nlast needle")

	matches := NewCursor(NewTables([]byte("needle")), text).All()
	require.Len(t, matches, 3)

	for _, m := range matches {
		want := 1 + bytes.Count(text[:m.Offset], []byte("\n"))
		assert.Equal(t, want, m.Line, "offset %d", m.Offset)
	}
	assert.Equal(t, 2, matches[0].Line)
	assert.Equal(t, 6, matches[1].Line)
	assert.Equal(t, 7, matches[2].Line)
}

func TestCursor_PatternContainingNewline_CountsLineOfFirstByte(t *testing.T) {
	text := []byte("a\nb\nc\nb\nc")

	matches := NewCursor(NewTables([]byte("b\nc")), text).All()

	assert.Equal(t, []Match{{Offset: 2, Line: 2}, {Offset: 6, Line: 4}}, matches)
}

func TestCursor_Reseed_EquivalentToFreshScanWithSeededLine(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	alphabet := []byte("ab\n")

	for iter := 0; iter < 2000; iter++ {
		pattern := randomBytes(r, alphabet, 1+r.Intn(4))
		text := randomBytes(r, alphabet, 10+r.Intn(80))
		tables := NewTables(pattern)

		c := NewCursor(tables, text)
		first, ok := c.Next()
		if !ok {
			continue
		}

		// Continue the same cursor after the first match
		resume := first + len(pattern)
		c.Reseed(resume)
		var continued []Match
		for {
			off, ok := c.Next()
			if !ok {
				break
			}
			continued = append(continued, Match{Offset: off, Line: c.Line()})
			c.Reseed(off + len(pattern))
		}

		// Independent scan of the remainder, line seeded from the oracle
		seed := 1 + bytes.Count(text[:resume], []byte("\n"))
		var independent []Match
		if resume < len(text) {
			for _, m := range NewCursor(tables, text[resume:]).All() {
				independent = append(independent, Match{Offset: resume + m.Offset, Line: seed + m.Line - 1})
			}
		}

		require.Equal(t, independent, continued, "pattern %q text %q", pattern, text)
	}
}

func TestCursor_Reseed_PastEnd_ReportsNotFound(t *testing.T) {
	text := []byte("abcabc")
	c := NewCursor(NewTables([]byte("abc")), text)

	off, ok := c.Next()
	require.True(t, ok)
	require.Equal(t, 0, off)

	c.Reseed(len(text) + 3)
	_, ok = c.Next()
	assert.False(t, ok)
}

func TestCursor_PatternLongerThanText_NotFound(t *testing.T) {
	c := NewCursor(NewTables([]byte("longer pattern")), []byte("short"))

	_, ok := c.Next()

	assert.False(t, ok)
	assert.Empty(t, c.All())
}

func TestCursor_OverlappingCandidates_AreNotReported(t *testing.T) {
	// Given: "aa" in "aaaaa"; searching resumes after each match
	matches := NewCursor(NewTables([]byte("aa")), []byte("aaaaa")).All()

	// Then: offsets 0 and 2 only
	assert.Equal(t, []Match{{Offset: 0, Line: 1}, {Offset: 2, Line: 1}}, matches)
}

func TestCursor_BinaryBytes(t *testing.T) {
	text := []byte{0x00, 0xff, 0x10, 0xff, 0x00, '\n', 0xff, 0x00}

	matches := NewCursor(NewTables([]byte{0xff, 0x00}), text).All()

	assert.Equal(t, []Match{{Offset: 3, Line: 1}, {Offset: 6, Line: 2}}, matches)
}

func BenchmarkCursor_All(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	text := randomBytes(r, []byte("abcdefghij \n"), 1<<20)
	tables := NewTables([]byte("hijack"))

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NewCursor(tables, text).All()
	}
}
