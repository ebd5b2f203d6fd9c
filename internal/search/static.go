package search

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
)

// RunStatic splits the files into one contiguous partition per thread. Every
// worker collects matches into its own list; once all workers have joined,
// the matches are printed in worker order, re-reading a small window of each
// file for context.
func (s *Session) RunStatic(ctx context.Context) (Stats, error) {
	return s.runStatic(ctx, s.files)
}

func (s *Session) runStatic(ctx context.Context, files []string) (Stats, error) {
	var c counters
	start := s.now()

	workers := partitionTasks(tasksFor(files), s.threads)
	s.logger.Debug("static partition",
		slog.Int("files", len(files)),
		slog.Int("threads", s.threads))

	g := new(errgroup.Group)
	g.SetLimit(s.threads)
	for _, w := range workers {
		if !s.spawn(g, func() error {
			s.collectAll(ctx, w, &c)
			return nil
		}) {
			_ = g.Wait()
			return c.stats(len(files), s.since(start)), serrors.New(serrors.ErrCodeWorkerStart,
				fmt.Sprintf("could not start static worker %d of %d", w.id, s.threads), nil)
		}
	}
	_ = g.Wait()

	for _, w := range workers {
		for _, m := range w.matches {
			if err := s.writer.PrintFromFile(m, s.source); err != nil {
				return c.stats(len(files), s.since(start)), err
			}
		}
	}

	return c.stats(len(files), s.since(start)), ctx.Err()
}

// collectAll runs the collector over w's files in buffered mode.
func (s *Session) collectAll(ctx context.Context, w *workerContext, c *counters) {
	for _, task := range w.files {
		if ctx.Err() != nil {
			return
		}
		matches, err := s.collector.Collect(task.Path)
		if err != nil {
			s.skip(task, err, c)
			continue
		}
		c.searched.Add(1)
		c.matches.Add(int64(len(matches)))
		w.matches = append(w.matches, matches...)
	}
}
