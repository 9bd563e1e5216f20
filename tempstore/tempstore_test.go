package tempstore

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func testStoreBuffersAndOpensRepeatably(t *testing.T, s Store, payload []byte) {
	t.Helper()
	h, err := s.Buffer(bytes.NewReader(payload))
	require.NoError(t, err)
	defer h.Dispose()

	require.Equal(t, int64(len(payload)), h.Size())

	for i := 0; i < 2; i++ {
		rc, err := h.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.Equal(t, payload, got)
	}

	require.NoError(t, h.Dispose())
	require.NoError(t, h.Dispose()) // idempotent
}

func TestMemoryBuffer(t *testing.T) {
	testStoreBuffersAndOpensRepeatably(t, NewMemory(), []byte("hello world"))
}

func TestDiskBuffer(t *testing.T) {
	testStoreBuffersAndOpensRepeatably(t, NewDisk(""), bytes.Repeat([]byte("x"), 1<<15))
}

func TestHybridBufferStaysInMemoryBelowThreshold(t *testing.T) {
	h := NewHybrid(16, "")
	handle, err := h.Buffer(bytes.NewReader([]byte("small")))
	require.NoError(t, err)
	defer handle.Dispose()

	_, ok := handle.(*memoryHandle)
	require.True(t, ok, "expected small buffer to stay resident")
}

func TestHybridBufferSpillsAboveThreshold(t *testing.T) {
	h := NewHybrid(16, "")
	payload := bytes.Repeat([]byte("y"), 1024)
	handle, err := h.Buffer(bytes.NewReader(payload))
	require.NoError(t, err)
	defer handle.Dispose()

	_, ok := handle.(*diskHandle)
	require.True(t, ok, "expected large buffer to spill to disk")
	require.Equal(t, int64(len(payload)), handle.Size())

	rc, err := handle.Open()
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, payload, got)
}

func TestHybridDefaultThreshold(t *testing.T) {
	h := NewHybrid(0, "")
	require.Equal(t, int64(DefaultSpillThreshold), h.threshold)
}
