package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where bmgrep writes its diagnostics. Search results never
// go through the logger.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath switches to JSON records in a rotating file that `bmgrep logs`
	// reads. Empty means text records on Echo only.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
	// SyncWrites flushes every record to disk so `bmgrep logs -f` sees it
	// while the search is still running.
	SyncWrites bool
	// Echo receives a copy of every file record when set. Without FilePath it
	// is the only destination, stderr when nil.
	Echo io.Writer
}

// DefaultConfig returns the file logging defaults.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		FilePath:  DefaultLogPath(),
		MaxSizeMB: 10,
		MaxFiles:  5,
	}
}

// DebugConfig is what --debug uses: every record, flushed as it is written.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.SyncWrites = true
	return cfg
}

// Setup builds the logger described by cfg and returns a cleanup function
// that flushes and closes the log file. File records carry the process id,
// since concurrent bmgrep runs append to the same file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if cfg.FilePath == "" {
		echo := cfg.Echo
		if echo == nil {
			echo = os.Stderr
		}
		return NewTextLogger(echo, cfg.Level), func() {}, nil
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	writer.SetImmediateSync(cfg.SyncWrites)

	var output io.Writer = writer
	if cfg.Echo != nil {
		output = io.MultiWriter(writer, cfg.Echo)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}

	return slog.New(handler).With(slog.Int("pid", os.Getpid())), cleanup, nil
}

// NewStderrLogger returns a text logger on stderr for runs without --debug.
func NewStderrLogger(level string) *slog.Logger {
	return NewTextLogger(os.Stderr, level)
}

// NewTextLogger returns a text logger writing to w.
func NewTextLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

// parseLevel accepts the slog level names in any case, plus "warning".
// Anything else is info.
func parseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// LevelFromString converts a level name for the log viewer's filter.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
