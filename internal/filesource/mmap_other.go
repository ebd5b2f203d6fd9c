//go:build !unix

package filesource

// MmapSource falls back to reading files into memory on platforms without
// mmap support in golang.org/x/sys/unix.
type MmapSource struct{}

// Load reads the whole file.
func (MmapSource) Load(path string) (*Buffer, error) {
	return ReadSource{}.Load(path)
}

// ReadAt reads a window of the file.
func (MmapSource) ReadAt(path string, off int64, n int) ([]byte, error) {
	return readWindow(path, off, n)
}
