package hash

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeflaterInflaterRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("hello, git\n"), 100)

	var buf bytes.Buffer
	dw, err := NewDeflater(&buf, 0)
	require.NoError(t, err)
	_, err = dw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, dw.Close())

	// Simulate a pack stream: a second object's bytes follow immediately.
	trailer := []byte("next-object-bytes")
	full := append(append([]byte{}, buf.Bytes()...), trailer...)

	ir, err := NewInflater(bytes.NewReader(full))
	require.NoError(t, err)
	got, err := io.ReadAll(ir)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, ir.Close())

	// The consumed byte count must point exactly at the start of the next
	// object's bytes, not somewhere inside the zlib stream or past it.
	consumed := ir.ConsumedBytes()
	require.True(t, consumed <= int64(len(full)))
	require.Equal(t, trailer, full[consumed:])
}

func TestSHA1Deterministic(t *testing.T) {
	h := SHA1()
	h.Write([]byte("blob 5\x00hello"))
	sum := h.Sum(nil)
	require.Len(t, sum, 20)

	h2 := SHA1()
	h2.Write([]byte("blob 5\x00hello"))
	require.Equal(t, sum, h2.Sum(nil))
}
