package watcher

import (
	"log/slog"
	"path/filepath"
	"sort"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed away.
	OpRename
	// OpConfigChange indicates the project .bmgrep.yaml was written.
	// Watch mode reloads its exclude patterns on this event.
	OpConfigChange
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpConfigChange:
		return "CONFIG_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is relative to the watched root.
	Path string

	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// IgnoreFunc reports whether a path, relative to the watched root, should
// produce no events. Directories for which it returns true are not watched.
type IgnoreFunc func(relPath string, isDir bool) bool

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 200ms
	DebounceWindow time.Duration

	// PollInterval is the scan interval in polling mode.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 100
	EventBufferSize int

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool

	// Ignore filters events before debouncing. May be nil.
	Ignore IgnoreFunc

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 100,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// ChangedFiles returns the absolute paths of files created or modified in
// batch, sorted and without duplicates. Directories, deletions and config
// events are dropped.
func ChangedFiles(root string, batch []FileEvent) []string {
	seen := make(map[string]struct{}, len(batch))
	files := make([]string, 0, len(batch))
	for _, e := range batch {
		if e.IsDir || (e.Operation != OpCreate && e.Operation != OpModify) {
			continue
		}
		path := filepath.Join(root, e.Path)
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// HasConfigChange reports whether batch carries an OpConfigChange event.
func HasConfigChange(batch []FileEvent) bool {
	for _, e := range batch {
		if e.Operation == OpConfigChange {
			return true
		}
	}
	return false
}
