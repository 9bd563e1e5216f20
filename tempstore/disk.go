package tempstore

import (
	"fmt"
	"io"
	"os"
)

// Disk buffers through an os.TempFile, for objects too large (or too many
// concurrently in flight) to hold comfortably in memory.
type Disk struct {
	dir string // os.TempDir() if empty
}

// NewDisk returns a Store that spills every buffer straight to a temp file
// under dir (the system default temp directory if dir is "").
func NewDisk(dir string) Disk { return Disk{dir: dir} }

func (d Disk) Buffer(r io.Reader) (Handle, error) {
	f, err := os.CreateTemp(d.dir, "gitcore-tempstore-")
	if err != nil {
		return nil, fmt.Errorf("tempstore: create temp file: %w", err)
	}
	name := f.Name()

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(name)
		return nil, fmt.Errorf("tempstore: buffer to disk: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("tempstore: close temp file: %w", err)
	}

	return &diskHandle{path: name, size: size}, nil
}

type diskHandle struct {
	path string
	size int64
}

func (h *diskHandle) Size() int64 { return h.size }

func (h *diskHandle) Open() (io.ReadCloser, error) {
	return os.Open(h.path)
}

func (h *diskHandle) Dispose() error {
	if h.path == "" {
		return nil
	}
	err := os.Remove(h.path)
	h.path = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
