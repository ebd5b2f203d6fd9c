// Package search runs literal pattern searches over many files.
//
// A Session owns the pattern tables, the output sink and the file source for
// one invocation. Files are distributed across goroutines either by a fixed
// partition decided up front (StrategyStatic) or through a shared FIFO that
// free workers pull from (StrategyQueue).
package search

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Strategy selects how files are distributed across workers.
type Strategy string

const (
	// StrategyQueue feeds files to workers through a shared queue and prints
	// each match as soon as it is found.
	StrategyQueue Strategy = "queue"
	// StrategyStatic splits the file list into contiguous partitions, one per
	// worker, and prints all matches after every worker has finished.
	StrategyStatic Strategy = "static"
	// StrategySingle searches files one after another on the calling goroutine.
	StrategySingle Strategy = "single"
)

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case StrategyQueue, "":
		return StrategyQueue, nil
	case StrategyStatic:
		return StrategyStatic, nil
	case StrategySingle:
		return StrategySingle, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (use queue, static or single)", s)
	}
}

// Threaded reports whether the strategy runs a worker pool.
func (s Strategy) Threaded() bool {
	return s == StrategyQueue || s == StrategyStatic
}

// Match is one reported occurrence of the pattern.
type Match struct {
	File   string
	Line   int   // 1-based
	Offset int64 // byte offset into the file
}

// FileTask is one file waiting to be searched.
type FileTask struct {
	Index int // position in the input list
	Path  string
}

// workerContext is the state owned by one static-partition worker.
type workerContext struct {
	id      int
	files   []FileTask
	matches []Match
}

// Stats summarizes one run.
type Stats struct {
	Files    int // files supplied
	Searched int // files loaded and scanned
	Skipped  int // files that could not be loaded
	Matches  int
	Duration time.Duration
}

type counters struct {
	searched atomic.Int64
	skipped  atomic.Int64
	matches  atomic.Int64
}

func (c *counters) stats(files int, elapsed time.Duration) Stats {
	return Stats{
		Files:    files,
		Searched: int(c.searched.Load()),
		Skipped:  int(c.skipped.Load()),
		Matches:  int(c.matches.Load()),
		Duration: elapsed,
	}
}
