// Package scanner expands command-line path arguments into the ordered list
// of files to search.
//
// Files named explicitly are always kept, in argument order, even when they
// do not exist: unreadable files are skipped later by the search itself.
// Directories are walked in lexical order when recursion is enabled.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// dirCacheSize bounds the number of cached directory decisions.
const dirCacheSize = 1024

// DefaultExcludes are directory names skipped during every walk.
var DefaultExcludes = []string{".git", "node_modules", "vendor"}

// Options configures path expansion.
type Options struct {
	// Exclude holds glob patterns matched against base names and
	// slash-separated paths relative to the walked root.
	Exclude []string

	// Recursive enables walking directory arguments.
	Recursive bool

	// FollowSymlinks includes symbolic links found while walking.
	FollowSymlinks bool

	// MaxFileSize skips larger files found while walking. 0 means no limit.
	MaxFileSize int64

	Logger *slog.Logger
}

// Scanner expands path arguments. It is safe for concurrent use.
type Scanner struct {
	opts     Options
	excludes []string
	logger   *slog.Logger

	// dirCache remembers whether a directory is excluded under a root.
	dirCache *lru.Cache[string, bool]
}

// New creates a Scanner.
func New(opts Options) (*Scanner, error) {
	cache, err := lru.New[string, bool](dirCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	excludes := make([]string, 0, len(DefaultExcludes)+len(opts.Exclude))
	excludes = append(excludes, DefaultExcludes...)
	for _, p := range opts.Exclude {
		excludes = append(excludes, normalizePattern(p))
	}

	return &Scanner{
		opts:     opts,
		excludes: excludes,
		logger:   logger,
		dirCache: cache,
	}, nil
}

// Expand turns path arguments into the list of files to search.
func (s *Scanner) Expand(ctx context.Context, args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			files = append(files, arg)
			continue
		}

		if !s.opts.Recursive {
			s.logger.Debug("skipping directory without --recursive", slog.String("path", arg))
			continue
		}

		found, err := s.Walk(ctx, arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

// Walk returns every file under root that passes the exclusion rules, in
// lexical order. Unreadable entries are skipped.
func (s *Scanner) Walk(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Debug("walk error", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && s.ExcludedDir(root, path) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.includeEntry(root, path, d) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Include reports whether path, a file under root, would be returned by Walk.
// Watch mode uses it to filter change events.
func (s *Scanner) Include(root, path string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() {
		return false
	}

	for dir := filepath.Dir(path); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if s.ExcludedDir(root, dir) {
			return false
		}
	}
	return s.includeEntry(root, path, fs.FileInfoToDirEntry(info))
}

// ExcludedDir reports whether dir, below root, matches an exclude pattern.
// Results are cached by the absolute root and dir, since relative patterns
// match differently under different roots.
func (s *Scanner) ExcludedDir(root, dir string) bool {
	key := absPath(root) + "\x00" + absPath(dir)
	if excluded, ok := s.dirCache.Get(key); ok {
		return excluded
	}

	excluded := s.matches(root, dir)
	s.dirCache.Add(key, excluded)
	if excluded {
		s.logger.Debug("excluded directory", slog.String("path", dir))
	}
	return excluded
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (s *Scanner) includeEntry(root, path string, d fs.DirEntry) bool {
	switch {
	case d.Type()&fs.ModeSymlink != 0:
		if !s.opts.FollowSymlinks {
			return false
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	case !d.Type().IsRegular():
		return false
	}
	if s.matches(root, path) {
		return false
	}

	if s.opts.MaxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() > s.opts.MaxFileSize {
			s.logger.Debug("skipping large file",
				slog.String("path", path),
				slog.Int64("size", info.Size()))
			return false
		}
	}
	return true
}

// matches reports whether path matches any exclude pattern, either by base
// name or by its slash-separated path relative to root.
func (s *Scanner) matches(root, path string) bool {
	base := filepath.Base(path)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range s.excludes {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if strings.Contains(pattern, "/") {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return true
			}
		}
	}
	return false
}

// normalizePattern strips "**/" and "/**" wrappers, which the base-name
// match already covers.
func normalizePattern(p string) string {
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "**/") {
		p = strings.TrimPrefix(p, "**/")
	}
	p = strings.TrimSuffix(p, "/**")
	return strings.TrimSuffix(p, "/")
}
