package search

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
)

// RunQueue starts every worker, then feeds the files through a shared queue.
// Matches are printed as soon as they are found, so output across files has
// no fixed order.
func (s *Session) RunQueue(ctx context.Context) (Stats, error) {
	return s.runQueue(ctx, s.files)
}

func (s *Session) runQueue(ctx context.Context, files []string) (Stats, error) {
	if len(files) == 0 {
		return Stats{}, serrors.ErrNoFiles
	}

	var c counters
	start := s.now()
	q := NewTaskQueue()

	g := new(errgroup.Group)
	g.SetLimit(s.threads)
	for id := 0; id < s.threads; id++ {
		if !s.spawn(g, func() error {
			return s.consume(ctx, id, q, &c)
		}) {
			q.Close()
			_ = g.Wait()
			return c.stats(len(files), s.since(start)), serrors.New(serrors.ErrCodeWorkerStart,
				fmt.Sprintf("could not start queue worker %d of %d", id, s.threads), nil)
		}
	}

	for _, task := range tasksFor(files) {
		q.Push(task)
	}
	q.Close()

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return c.stats(len(files), s.since(start)), err
}

// consume pops tasks until the queue is closed and drained. After ctx is
// cancelled the remaining tasks are drained without being searched.
func (s *Session) consume(ctx context.Context, id int, q *TaskQueue, c *counters) error {
	var writeErr error
	for {
		task, ok := q.Pop()
		if !ok {
			return writeErr
		}
		if ctx.Err() != nil || writeErr != nil {
			continue
		}

		n, err := s.collector.Emit(task.Path, s.writer)
		c.matches.Add(int64(n))
		switch {
		case err == nil:
			c.searched.Add(1)
		case isSkip(err):
			s.skip(task, err, c)
		default:
			writeErr = err
		}
		s.logger.Debug("worker finished file",
			slog.Int("worker", id),
			slog.String("path", task.Path),
			slog.Int("matches", n))
	}
}
