package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/bmgrep/internal/bm"
	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
	"github.com/Aman-CERP/bmgrep/internal/filesource"
)

// MinThreads is the smallest worker count the threaded strategies accept.
const MinThreads = 2

// Options configures a Session.
type Options struct {
	Pattern  []byte
	Files    []string
	Threads  int
	Format   string // header format; DefaultFormat when empty
	Output   io.Writer
	Source   filesource.Source // ReadSource when nil
	Strategy Strategy
	Logger   *slog.Logger // slog.Default when nil
}

// Session is one search invocation: the pattern tables, the shared output
// writer and the files to search. Tables are built once and shared read-only
// by every worker.
type Session struct {
	pattern   []byte
	tables    *bm.Tables
	collector *Collector
	writer    *OutputWriter
	source    filesource.Source
	files     []string
	threads   int
	strategy  Strategy
	logger    *slog.Logger

	now   func() time.Time
	since func(time.Time) time.Duration
	// spawn starts one worker on g and reports whether it was accepted.
	spawn func(g *errgroup.Group, f func() error) bool
}

// NewSession validates opts and builds the pattern tables.
func NewSession(opts Options) (*Session, error) {
	if opts.Output == nil {
		return nil, serrors.ValidationError("no output writer", nil)
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyQueue
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, serrors.ValidationError(err.Error(), nil)
	}
	if strategy.Threaded() && opts.Threads < MinThreads {
		return nil, serrors.New(serrors.ErrCodeInvalidThreads,
			fmt.Sprintf("strategy %s needs at least %d threads, got %d", strategy, MinThreads, opts.Threads), nil).
			WithSuggestion("use --strategy single or raise --threads")
	}

	writer, err := NewOutputWriter(opts.Output, opts.Format)
	if err != nil {
		return nil, err
	}

	source := opts.Source
	if source == nil {
		source = filesource.ReadSource{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tables := bm.NewTables(opts.Pattern)
	return &Session{
		pattern:   tables.Pattern(),
		tables:    tables,
		collector: NewCollector(tables, source),
		writer:    writer,
		source:    source,
		files:     opts.Files,
		threads:   opts.Threads,
		strategy:  strategy,
		logger:    logger,
		now:       time.Now,
		since:     time.Since,
		spawn:     (*errgroup.Group).TryGo,
	}, nil
}

// Strategy returns the distribution strategy the session runs.
func (s *Session) Strategy() Strategy {
	return s.strategy
}

// Run searches the session's files with its strategy.
func (s *Session) Run(ctx context.Context) (Stats, error) {
	return s.RunFiles(ctx, s.files)
}

// RunFiles searches files instead of the session's own list, reusing the
// tables and the output writer. Watch mode calls it once per batch of
// changed files. Once the output has failed every later call returns that
// failure without reading any file.
func (s *Session) RunFiles(ctx context.Context, files []string) (Stats, error) {
	if err := s.writer.Err(); err != nil {
		return Stats{Files: len(files)}, err
	}

	s.logger.Debug("search started",
		slog.String("strategy", string(s.strategy)),
		slog.Int("files", len(files)),
		slog.Int("threads", s.threads),
		slog.Int("pattern_len", len(s.pattern)))

	var (
		stats Stats
		err   error
	)
	switch s.strategy {
	case StrategyStatic:
		stats, err = s.runStatic(ctx, files)
	case StrategySingle:
		stats, err = s.runSingle(ctx, files)
	default:
		stats, err = s.runQueue(ctx, files)
	}

	s.logger.Debug("search finished",
		slog.Int("searched", stats.Searched),
		slog.Int("skipped", stats.Skipped),
		slog.Int("matches", stats.Matches),
		slog.Duration("duration", stats.Duration))
	return stats, err
}

// SearchFile searches one file and prints its matches immediately.
func (s *Session) SearchFile(path string) error {
	_, err := s.collector.Emit(path, s.writer)
	return err
}

// RunSingle searches every file on the calling goroutine, in input order.
func (s *Session) RunSingle(ctx context.Context) (Stats, error) {
	return s.runSingle(ctx, s.files)
}

func (s *Session) runSingle(ctx context.Context, files []string) (Stats, error) {
	var c counters
	start := s.now()

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return c.stats(len(files), s.since(start)), err
		}
		n, err := s.collector.Emit(path, s.writer)
		c.matches.Add(int64(n))
		switch {
		case err == nil:
			c.searched.Add(1)
		case isSkip(err):
			s.skip(FileTask{Index: i, Path: path}, err, &c)
		default:
			return c.stats(len(files), s.since(start)), err
		}
	}
	return c.stats(len(files), s.since(start)), nil
}

// skip records a file that could not be searched. The run continues.
func (s *Session) skip(task FileTask, err error, c *counters) {
	c.skipped.Add(1)
	attrs := append([]any{slog.String("path", task.Path), slog.Int("index", task.Index)},
		attrsToAny(serrors.LogAttrs(err))...)
	s.logger.Debug("file skipped", attrs...)
}

// isSkip reports whether err only affects the one file being searched.
func isSkip(err error) bool {
	return serrors.IsRecoverable(err)
}

func tasksFor(files []string) []FileTask {
	tasks := make([]FileTask, len(files))
	for i, path := range files {
		tasks[i] = FileTask{Index: i, Path: path}
	}
	return tasks
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
