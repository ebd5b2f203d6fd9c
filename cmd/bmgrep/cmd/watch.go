package cmd

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmgrep/internal/config"
	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
	"github.com/Aman-CERP/bmgrep/internal/output"
	"github.com/Aman-CERP/bmgrep/internal/scanner"
	"github.com/Aman-CERP/bmgrep/internal/watcher"
)

type watchOptions struct {
	searchOptions
	debounce time.Duration
	poll     bool
	initial  bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <pattern> <dir>",
		Short: "Search files again whenever they change",
		Long: `Watch a directory tree and search every file that is created or modified.

Bursts of changes to the same file are coalesced over the debounce window,
so an editor save triggers one search. Excluded directories are not
watched. Writing .bmgrep.yaml in the root reloads the exclude patterns.

Stop with Ctrl+C.`,
		Example: `  bmgrep watch TODO ./src
  bmgrep watch --initial --debounce 500ms ERROR /var/log/app
  bmgrep watch --poll needle /mnt/share`,
		Args: minArgs(2, "bmgrep watch <pattern> <dir>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args[0], args[1], opts)
		},
	}

	addEngineFlags(cmd, &opts.searchOptions)
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "Coalescing window for change events (default: 200ms)")
	cmd.Flags().BoolVar(&opts.poll, "poll", false, "Poll for changes instead of using file system notifications")
	cmd.Flags().BoolVar(&opts.initial, "initial", false, "Search every file once before watching")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, pattern, dir string, opts watchOptions) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return serrors.FileUnavailable(dir, err)
	}

	cfg, err := watchConfig(root, opts, cmd)
	if err != nil {
		return err
	}

	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return serrors.ConfigError("invalid watch.debounce", err)
	}
	if cmd.Flags().Changed("debounce") {
		debounce = opts.debounce
	}
	logger := commandLogger(cfg)

	var current atomic.Pointer[scanner.Scanner]
	sc, err := newScanner(cfg, logger)
	if err != nil {
		return err
	}
	current.Store(sc)

	out := bufio.NewWriterSize(cmd.OutOrStdout(), outputBufferSize)
	session, err := newSession(cfg, pattern, nil, out, logger)
	if err != nil {
		return err
	}
	summary := output.New(cmd.ErrOrStderr())

	searchFiles := func(files []string) error {
		if len(files) == 0 {
			return nil
		}
		stats, err := session.RunFiles(ctx, files)
		if flushErr := out.Flush(); flushErr != nil && err == nil {
			err = serrors.InternalError("failed to flush output", flushErr)
		}
		if opts.stats {
			summary.Summary(stats, 0)
		}
		return err
	}

	if opts.initial {
		files, err := sc.Walk(ctx, root)
		if err != nil {
			return err
		}
		if err := searchFiles(files); err != nil {
			return err
		}
	}

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: debounce,
		ForcePolling:   cfg.Watch.Poll || opts.poll,
		Ignore:         ignoreFunc(root, &current),
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx, root)
	}()

	logger.Info("watching",
		slog.String("root", root),
		slog.String("watcher", w.WatcherType()),
		slog.Duration("debounce", debounce))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case err, ok := <-w.Errors():
			if ok {
				logger.Warn("watcher error", slog.String("error", err.Error()))
			}
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if watcher.HasConfigChange(batch) {
				if reloaded, err := reloadScanner(root, opts, cmd, logger); err != nil {
					logger.Warn("config reload failed", slog.String("error", err.Error()))
				} else {
					current.Store(reloaded)
					logger.Info("config reloaded")
				}
			}

			sc := current.Load()
			var files []string
			for _, path := range watcher.ChangedFiles(root, batch) {
				if sc.Include(root, path) {
					files = append(files, path)
				}
			}
			if err := searchFiles(files); err != nil {
				return err
			}
		}
	}
}

// ignoreFunc drops events for excluded directories and files using the
// scanner that is current when the event arrives.
func ignoreFunc(root string, current *atomic.Pointer[scanner.Scanner]) watcher.IgnoreFunc {
	return func(relPath string, isDir bool) bool {
		sc := current.Load()
		path := filepath.Join(root, filepath.FromSlash(relPath))
		if isDir {
			return sc.ExcludedDir(root, path)
		}
		for d := filepath.Dir(path); d != root && len(d) > len(root); d = filepath.Dir(d) {
			if sc.ExcludedDir(root, d) {
				return true
			}
		}
		return false
	}
}

// watchConfig loads the configuration with the project file taken from the
// watched root rather than the working directory.
func watchConfig(root string, opts watchOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return nil, err
	}
	cfg.Paths.Recursive = true
	return cfg, nil
}

// reloadScanner rebuilds the scanner from the configuration on disk, with
// the command-line flags applied again.
func reloadScanner(root string, opts watchOptions, cmd *cobra.Command, logger *slog.Logger) (*scanner.Scanner, error) {
	cfg, err := watchConfig(root, opts, cmd)
	if err != nil {
		return nil, err
	}
	return newScanner(cfg, logger)
}
