// Package cmd provides the CLI commands for bmgrep.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmgrep/internal/config"
	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
	"github.com/Aman-CERP/bmgrep/internal/logging"
	"github.com/Aman-CERP/bmgrep/internal/profiling"
	"github.com/Aman-CERP/bmgrep/pkg/version"
)

// Profiling flags
var (
	profileOpts profiling.Options
	profiler    *profiling.Profiler
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the bmgrep CLI. With arguments
// it behaves like `bmgrep search`.
func NewRootCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "bmgrep <pattern> <path>...",
		Short: "Multi-threaded literal search with Boyer-Moore",
		Long: `bmgrep searches files for a literal byte pattern using the Boyer-Moore
algorithm, spreading the files over worker goroutines.

Each match is printed as a header (file and line) followed by the
surrounding printable bytes:

  notes.txt:12: the needle in the haystack

Running 'bmgrep <pattern> <path>...' is the same as 'bmgrep search'.`,
		Example: `  bmgrep needle notes.txt logs/app.log
  bmgrep -r -j 8 TODO ./src
  bmgrep --strategy static --stats ERROR /var/log/*.log`,
		Version:       version.Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			if len(args) < 2 {
				return serrors.ValidationError("expected a pattern and at least one path", nil).
					WithSuggestion("bmgrep <pattern> <path>...")
			}
			return runSearch(cmd.Context(), cmd, args[0], args[1:], opts)
		},
	}

	cmd.SetVersionTemplate("bmgrep version {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return serrors.ValidationError(err.Error(), err)
	})

	addSearchFlags(cmd, &opts)

	cmd.PersistentFlags().StringVar(&profileOpts.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.MemPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.TracePath, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.bmgrep/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts debug logging and profiling if requested.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		p, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profiler = p
	}

	return nil
}

// stopProfilingAndLogging flushes profiles and closes the debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return err
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM
// arrives, printing any error to stderr.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return execute(ctx, NewRootCmd(), os.Stderr)
}

// fatalDebugHint follows fatal errors when the run was not already logging.
const fatalDebugHint = "  Rerun with --debug, then `bmgrep logs` shows what each worker did"

func execute(ctx context.Context, cmd *cobra.Command, stderr io.Writer) error {
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprint(stderr, serrors.FormatForCLI(err))
		if serrors.IsFatal(err) && !debugMode {
			_, _ = fmt.Fprintln(stderr, fatalDebugHint)
		}
	}
	return err
}

// loadConfig loads the layered configuration, taking .bmgrep.yaml from the
// nearest project root above the working directory.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	root, err := config.FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return config.Load(root)
}

// commandLogger returns the debug file logger under --debug, and a stderr
// logger at the configured level otherwise.
func commandLogger(cfg *config.Config) *slog.Logger {
	if debugMode {
		return slog.Default()
	}
	return logging.NewStderrLogger(cfg.Logging.Level)
}
