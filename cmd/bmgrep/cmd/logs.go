package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmgrep/internal/logging"
)

type logsOptions struct {
	follow   bool
	lines    int
	level    string
	contains string
	noColor  bool
	logFile  string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View bmgrep debug logs",
		Long: `View and tail the debug log written when bmgrep runs with --debug.

By default, shows the last 50 lines of ~/.bmgrep/logs/bmgrep.log. Use -f to
follow new log entries in real-time (like 'tail -f').`,
		Example: `  bmgrep logs                     # Show last 50 lines
  bmgrep logs -n 100              # Show last 100 lines
  bmgrep logs -f                  # Follow logs in real-time
  bmgrep logs --level error       # Show only error logs
  bmgrep logs --contains watcher  # Keep lines containing "watcher"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.contains, "contains", "", "Keep only lines containing this text")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}

func runLogs(ctx context.Context, stdout, stderr io.Writer, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:    opts.level,
		Contains: opts.contains,
		NoColor:  opts.noColor,
	}, stdout)

	_, _ = fmt.Fprintf(stderr, "Log file: %s\n", path)
	if opts.follow {
		_, _ = fmt.Fprintln(stderr, "Following... (Ctrl+C to stop)")
	}
	_, _ = fmt.Fprintln(stderr, "---")

	if opts.follow {
		return runFollow(ctx, viewer, path, stdout, stderr)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func runFollow(ctx context.Context, viewer *logging.Viewer, path string, stdout, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(stdout, viewer.FormatEntry(entry))
		case err := <-errCh:
			if err == nil || ctx.Err() != nil {
				return nil
			}
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "\n---")
			_, _ = fmt.Fprintln(stderr, "Stopped.")
			return nil
		}
	}
}
