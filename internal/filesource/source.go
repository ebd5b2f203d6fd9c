// Package filesource loads file contents for searching.
//
// A Source hands out whole-file buffers that stay valid until Release is
// called. Callers cannot tell whether the bytes were read into memory or
// mapped from the file.
package filesource

import (
	"fmt"
	"io"
	"os"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
)

// Kind names a Source implementation in configuration.
const (
	KindRead = "read"
	KindMmap = "mmap"
)

// Source loads file contents.
type Source interface {
	// Load returns the full contents of path.
	Load(path string) (*Buffer, error)

	// ReadAt reads up to n bytes of path starting at off. Reading past the
	// end returns the bytes available, possibly none.
	ReadAt(path string, off int64, n int) ([]byte, error)
}

// Buffer is a file's contents. Data must not be used after Release.
type Buffer struct {
	Data    []byte
	release func() error
}

// Release frees the buffer. Safe to call more than once.
func (b *Buffer) Release() error {
	if b == nil || b.release == nil {
		return nil
	}
	fn := b.release
	b.release = nil
	b.Data = nil
	return fn()
}

// New returns the Source registered under kind.
func New(kind string) (Source, error) {
	switch kind {
	case "", KindRead:
		return ReadSource{}, nil
	case KindMmap:
		return MmapSource{}, nil
	default:
		return nil, serrors.ConfigError(fmt.Sprintf("unknown file source %q (use read or mmap)", kind), nil)
	}
}

// ReadSource reads files fully into memory.
type ReadSource struct{}

// Load reads the whole file. A read that returns fewer bytes than the size
// reported by stat is a partial read.
func (ReadSource) Load(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.FileUnavailable(path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, serrors.FileUnavailable(path, err)
	}
	if info.IsDir() {
		return nil, serrors.FileUnavailable(path, fmt.Errorf("is a directory"))
	}

	size := info.Size()
	data, err := allocate(path, size)
	if err != nil {
		return nil, err
	}

	n, err := io.ReadFull(f, data)
	if err != nil {
		return nil, serrors.PartialRead(path, int64(n), size)
	}

	return &Buffer{Data: data, release: func() error { return nil }}, nil
}

// ReadAt reads a window of the file.
func (ReadSource) ReadAt(path string, off int64, n int) ([]byte, error) {
	return readWindow(path, off, n)
}

func readWindow(path string, off int64, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.FileUnavailable(path, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, n)
	got, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, serrors.FileUnavailable(path, err)
	}
	return buf[:got], nil
}

// allocate guards the conversion from file size to slice length and turns an
// allocation panic into a recoverable error for that one file.
func allocate(path string, size int64) (data []byte, err error) {
	if size < 0 || int64(int(size)) != size {
		return nil, serrors.New(serrors.ErrCodeAllocation, fmt.Sprintf("%s is too large to load (%d bytes)", path, size), nil)
	}
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = serrors.New(serrors.ErrCodeAllocation, fmt.Sprintf("cannot allocate %d bytes for %s", size, path), fmt.Errorf("%v", r))
		}
	}()
	return make([]byte, size), nil
}
