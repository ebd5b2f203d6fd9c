package cmd

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmgrep/internal/config"
	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
	"github.com/Aman-CERP/bmgrep/internal/filesource"
	"github.com/Aman-CERP/bmgrep/internal/output"
	"github.com/Aman-CERP/bmgrep/internal/profiling"
	"github.com/Aman-CERP/bmgrep/internal/scanner"
	"github.com/Aman-CERP/bmgrep/internal/search"
)

// outputBufferSize batches match records before they reach the terminal or file.
const outputBufferSize = 64 * 1024

// searchOptions holds CLI flags shared by the root command, search and watch.
type searchOptions struct {
	threads        int
	strategy       string
	format         string
	source         string
	exclude        []string
	recursive      bool
	followSymlinks bool
	maxFileSizeMB  int64
	outputPath     string
	appendOutput   bool
	stats          bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <pattern> <path>...",
		Short: "Search files for a literal pattern",
		Long: `Search files for a literal byte pattern.

Strategies:
  queue   workers pull files from a shared queue; output order varies (default)
  static  files are split into contiguous blocks, one per worker; matches are
          printed after all workers finish, in input order
  single  files are searched one at a time, in input order

Files that cannot be read are skipped. Finding no match is not an error.`,
		Example: `  bmgrep search needle a.txt b.txt
  bmgrep search -r --exclude '*.min.js' handler ./web
  bmgrep search -s static -j 4 -o matches.txt ERROR logs/*.log
  bmgrep search --format '%s(%d) ' --source mmap TODO big.txt`,
		Args: minArgs(2, "bmgrep search <pattern> <path>..."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], args[1:], opts)
		},
	}

	addSearchFlags(cmd, &opts)

	return cmd
}

// addSearchFlags registers the search flags on cmd. Defaults shown in help
// come from the configuration; flags override it only when set.
func addSearchFlags(cmd *cobra.Command, opts *searchOptions) {
	addEngineFlags(cmd, opts)
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Search directories recursively")
	cmd.Flags().BoolVar(&opts.followSymlinks, "follow-symlinks", false, "Follow symbolic links while walking directories")
	cmd.Flags().Int64Var(&opts.maxFileSizeMB, "max-file-size", 0, "Skip files larger than this many MB while walking (0: no limit)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write matches to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.appendOutput, "append", false, "Append to the --output file instead of truncating it")
}

// addEngineFlags registers the flags shared with watch mode.
func addEngineFlags(cmd *cobra.Command, opts *searchOptions) {
	cmd.Flags().IntVarP(&opts.threads, "threads", "j", 0, "Worker count (default: logical cores)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Distribution strategy: queue, static, single (default: queue)")
	cmd.Flags().StringVar(&opts.format, "format", "", `Match header format (default: "%s:%d: ")`)
	cmd.Flags().StringVar(&opts.source, "source", "", "File loading: read, mmap (default: read)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Glob patterns to skip while walking (repeatable)")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Print a run summary to stderr")
}

// apply overrides cfg with the flags the user set, then revalidates.
func (o searchOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Search.Threads = o.threads
	}
	if flags.Changed("strategy") {
		cfg.Search.Strategy = o.strategy
	}
	if flags.Changed("format") {
		cfg.Search.Format = o.format
	}
	if flags.Changed("source") {
		cfg.Search.Source = o.source
	}
	if flags.Changed("max-file-size") {
		cfg.Search.MaxFileSizeMB = o.maxFileSizeMB
	}
	if len(o.exclude) > 0 {
		cfg.Paths.Exclude = append(cfg.Paths.Exclude, o.exclude...)
	}
	if o.recursive {
		cfg.Paths.Recursive = true
	}
	if o.followSymlinks {
		cfg.Paths.FollowSymlinks = true
	}
	return cfg.Validate()
}

func runSearch(ctx context.Context, cmd *cobra.Command, pattern string, paths []string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}
	logger := commandLogger(cfg)

	sc, err := newScanner(cfg, logger)
	if err != nil {
		return err
	}
	files, err := sc.Expand(ctx, paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return serrors.New(serrors.ErrCodeNoFiles, "no files to search", nil).
			WithSuggestion("pass files, or directories with --recursive")
	}

	var dst io.Writer = cmd.OutOrStdout()
	if opts.outputPath != "" {
		f, err := output.OpenFile(ctx, opts.outputPath, opts.appendOutput, output.DefaultLockTimeout)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		dst = f
	}
	buffered := bufio.NewWriterSize(dst, outputBufferSize)

	session, err := newSession(cfg, pattern, files, buffered, logger)
	if err != nil {
		return err
	}

	logger.Debug("search command",
		slog.String("pattern", pattern),
		slog.Int("paths", len(paths)),
		slog.Int("files", len(files)))

	stats, runErr := session.Run(ctx)
	if err := buffered.Flush(); err != nil && runErr == nil {
		runErr = serrors.InternalError("failed to flush output", err)
	}

	if opts.stats {
		output.New(cmd.ErrOrStderr()).Summary(stats, profiling.HeapAlloc())
	}
	return runErr
}

func newScanner(cfg *config.Config, logger *slog.Logger) (*scanner.Scanner, error) {
	return scanner.New(scanner.Options{
		Exclude:        cfg.Paths.Exclude,
		Recursive:      cfg.Paths.Recursive,
		FollowSymlinks: cfg.Paths.FollowSymlinks,
		MaxFileSize:    cfg.MaxFileSizeBytes(),
		Logger:         logger,
	})
}

func newSession(cfg *config.Config, pattern string, files []string, out io.Writer, logger *slog.Logger) (*search.Session, error) {
	strategy, err := search.ParseStrategy(cfg.Search.Strategy)
	if err != nil {
		return nil, serrors.ValidationError(err.Error(), err)
	}
	source, err := filesource.New(cfg.Search.Source)
	if err != nil {
		return nil, err
	}
	return search.NewSession(search.Options{
		Pattern:  []byte(pattern),
		Files:    files,
		Threads:  cfg.Search.Threads,
		Format:   cfg.Search.Format,
		Output:   out,
		Source:   source,
		Strategy: strategy,
		Logger:   logger,
	})
}

// minArgs is cobra.MinimumNArgs with a validation error carrying usage.
func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < n {
			return serrors.ValidationError("missing arguments", nil).WithSuggestion(usage)
		}
		return nil
	}
}
