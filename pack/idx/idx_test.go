package idx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/statewalker/gitcore"
)

func hashN(n byte) gitcore.Hash {
	var h gitcore.Hash
	h[0] = n
	h[gitcore.Size-1] = 0xAA
	return h
}

func TestWriteOpenRoundTrip(t *testing.T) {
	entries := []Entry{
		{Hash: hashN(0x01), Offset: 12, CRC32: 0x1111},
		{Hash: hashN(0x10), Offset: 500, CRC32: 0x2222},
		{Hash: hashN(0xff), Offset: 0x80000001, CRC32: 0x3333}, // forces large-offset table
	}
	pack := gitcore.ComputeHash(gitcore.CommitObject, []byte("pack contents"))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, pack, entries))

	r, err := Open(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, r.Count())
	require.Equal(t, pack, r.PackChecksum())

	for _, e := range entries {
		off, crc, ok := r.Find(e.Hash)
		require.True(t, ok, "expected to find %s", e.Hash)
		require.Equal(t, e.Offset, off)
		require.Equal(t, e.CRC32, crc)
	}
}

func TestFindMissing(t *testing.T) {
	entries := []Entry{
		{Hash: hashN(0x01), Offset: 12, CRC32: 1},
		{Hash: hashN(0x10), Offset: 50, CRC32: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, gitcore.ZeroHash, entries))

	r, err := Open(&buf)
	require.NoError(t, err)

	_, _, ok := r.Find(hashN(0x05))
	require.False(t, ok)

	// fanout boundary: an id whose first byte has no entries at all.
	_, _, ok = r.Find(hashN(0x00))
	require.False(t, ok)
}

func TestUnsortedInputIsSortedByWrite(t *testing.T) {
	entries := []Entry{
		{Hash: hashN(0xff), Offset: 3, CRC32: 3},
		{Hash: hashN(0x01), Offset: 1, CRC32: 1},
		{Hash: hashN(0x80), Offset: 2, CRC32: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, gitcore.ZeroHash, entries))

	r, err := Open(&buf)
	require.NoError(t, err)
	require.Equal(t, hashN(0x01), r.HashAt(0))
	require.Equal(t, hashN(0x80), r.HashAt(1))
	require.Equal(t, hashN(0xff), r.HashAt(2))
}

func TestBadMagicRejected(t *testing.T) {
	_, err := Open(bytes.NewReader(make([]byte, 1100)))
	require.ErrorIs(t, err, gitcore.ErrCorruptPack)
}
