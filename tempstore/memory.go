package tempstore

import (
	"bytes"
	"io"
)

// Memory buffers everything in a byte slice. Simple and fast for small
// objects, but unbounded: a large write grows the heap proportionally.
type Memory struct{}

// NewMemory returns a Store that buffers entirely in memory.
func NewMemory() Memory { return Memory{} }

func (Memory) Buffer(r io.Reader) (Handle, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &memoryHandle{data: b}, nil
}

type memoryHandle struct {
	data []byte
}

func (h *memoryHandle) Size() int64 { return int64(len(h.data)) }

func (h *memoryHandle) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(h.data)), nil
}

func (h *memoryHandle) Dispose() error {
	h.data = nil
	return nil
}
