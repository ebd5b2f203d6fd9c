//go:build unix

package filesource

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
)

// MmapSource maps files read-only instead of copying them.
type MmapSource struct{}

// Load maps the whole file. Empty files are returned as an empty buffer
// because zero-length mappings are rejected by the kernel.
func (MmapSource) Load(path string) (*Buffer, error) {
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
	if size == 0 {
		return &Buffer{Data: []byte{}, release: func() error { return nil }}, nil
	}
	if int64(int(size)) != size {
		return nil, serrors.New(serrors.ErrCodeAllocation, fmt.Sprintf("%s is too large to map (%d bytes)", path, size), nil)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, serrors.FileUnavailable(path, fmt.Errorf("mmap: %w", err))
	}

	return &Buffer{
		Data: data,
		release: func() error {
			if err := unix.Munmap(data); err != nil {
				return fmt.Errorf("munmap %s: %w", path, err)
			}
			return nil
		},
	}, nil
}

// ReadAt reads a window with a plain positioned read; mapping a whole file
// for a 128-byte window costs more than it saves.
func (MmapSource) ReadAt(path string, off int64, n int) ([]byte, error) {
	return readWindow(path, off, n)
}
