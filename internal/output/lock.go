package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
)

// LockSuffix is appended to an output path to name its lock file.
const LockSuffix = ".lock"

const lockRetryDelay = 25 * time.Millisecond

// DefaultLockTimeout bounds how long OpenFile waits for another bmgrep
// process writing the same file.
const DefaultLockTimeout = 10 * time.Second

// FileLock provides cross-process locking of an output file using
// gofrs/flock on a sibling lock file, so the output file itself stays
// writable on every platform.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock for target. The lock file is target+".lock".
func NewFileLock(target string) *FileLock {
	lockPath := target + LockSuffix
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires the lock, retrying until timeout. A timeout is reported as
// ErrCodeOutputLocked.
func (l *FileLock) Lock(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return serrors.FileUnavailable(l.path, err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	acquired, err := l.flock.TryLockContext(lockCtx, lockRetryDelay)
	switch {
	case acquired:
		l.locked = true
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil || errors.Is(err, context.DeadlineExceeded):
		return serrors.New(serrors.ErrCodeOutputLocked,
			fmt.Sprintf("output file is locked by another process: %s", l.path), err).
			WithSuggestion("wait for the other run to finish or choose a different --output")
	default:
		return serrors.FileUnavailable(l.path, err)
	}
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *FileLock) IsLocked() bool {
	return l.locked
}

// File is an output file opened under its FileLock.
type File struct {
	*os.File
	lock *FileLock
}

// OpenFile locks path and opens it for writing, truncating unless appendMode
// is set. Truncation happens only after the lock is held.
func OpenFile(ctx context.Context, path string, appendMode bool, timeout time.Duration) (*File, error) {
	lock := NewFileLock(path)
	if err := lock.Lock(ctx, timeout); err != nil {
		return nil, err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, serrors.FileUnavailable(path, err)
	}
	return &File{File: f, lock: lock}, nil
}

// Close closes the file and releases its lock.
func (f *File) Close() error {
	err := f.File.Close()
	if unlockErr := f.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
