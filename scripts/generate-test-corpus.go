//go:build ignore

// Package main generates a synthetic text corpus for benchmarking bmgrep.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench -needle NEEDLE
//
// Every file gets a random number of lines built from a fixed vocabulary.
// The needle is planted on a fraction of the lines, and the total number of
// planted occurrences is printed so a run can be checked with:
//
//	bmgrep -r --stats NEEDLE testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	needle    = flag.String("needle", "NEEDLE", "Pattern planted in the corpus")
	rate      = flag.Float64("rate", 0.01, "Fraction of lines holding the needle")
	minLines  = flag.Int("min-lines", 50, "Minimum lines per file")
	maxLines  = flag.Int("max-lines", 5000, "Maximum lines per file")
	subdirs   = flag.Int("dirs", 8, "Number of subdirectories to spread files over")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var words = []string{
	"request", "handler", "timeout", "cache", "worker", "queue", "buffer",
	"session", "token", "config", "event", "message", "stream", "offset",
	"retry", "shard", "index", "cursor", "batch", "signal", "thread",
	"latency", "payload", "header", "socket", "lock", "commit", "record",
}

func main() {
	flag.Parse()
	if *minLines < 1 || *maxLines < *minLines || *subdirs < 1 {
		fmt.Fprintln(os.Stderr, "Error: need 1 <= min-lines <= max-lines and dirs >= 1")
		os.Exit(1)
	}
	rng := rand.New(rand.NewSource(*seed))

	for d := 0; d < *subdirs; d++ {
		if err := os.MkdirAll(filepath.Join(*outputDir, fmt.Sprintf("dir%02d", d)), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d files in %s...\n", *numFiles, *outputDir)

	var planted, bytes int
	for i := 0; i < *numFiles; i++ {
		content, n := generateFile(rng)
		path := filepath.Join(*outputDir, fmt.Sprintf("dir%02d", i%*subdirs), fmt.Sprintf("file%05d.log", i))
		if err := os.WriteFile(path, content, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		planted += n
		bytes += len(content)
	}

	fmt.Printf("Generated %d files (%d bytes), %d occurrences of %q.\n", *numFiles, bytes, planted, *needle)
}

// generateFile returns one file's content and the number of needles in it.
func generateFile(rng *rand.Rand) ([]byte, int) {
	lines := *minLines + rng.Intn(*maxLines-*minLines+1)

	var b strings.Builder
	planted := 0
	for l := 0; l < lines; l++ {
		count := 4 + rng.Intn(12)
		for w := 0; w < count; w++ {
			if w > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(words[rng.Intn(len(words))])
		}
		if rng.Float64() < *rate {
			b.WriteByte(' ')
			b.WriteString(*needle)
			planted++
		}
		b.WriteByte('\n')
	}
	return []byte(b.String()), planted
}
