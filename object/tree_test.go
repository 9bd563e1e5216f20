package object

import (
	"bytes"
	"testing"

	"github.com/statewalker/gitcore"
	"github.com/stretchr/testify/require"
)

func TestEmptyTreeHash(t *testing.T) {
	tr := NewTree(nil)
	payload, err := tr.Bytes()
	require.NoError(t, err)
	require.Empty(t, payload)

	id := gitcore.ComputeHash(gitcore.TreeObject, payload)
	require.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", id.String())
}

func TestTreeRoundTrip(t *testing.T) {
	blobA := gitcore.ComputeHash(gitcore.BlobObject, []byte("a"))
	blobB := gitcore.ComputeHash(gitcore.BlobObject, []byte("bb"))
	subTree := gitcore.ComputeHash(gitcore.TreeObject, nil)

	tr := NewTree([]TreeEntry{
		{Mode: Regular, Name: "file.txt", Hash: blobA},
		{Mode: Dir, Name: "dir", Hash: subTree},
		{Mode: Executable, Name: "run.sh", Hash: blobB},
	})

	payload, err := tr.Bytes()
	require.NoError(t, err)

	decoded, err := DecodeTree(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, tr.Entries, decoded.Entries)

	reencoded, err := decoded.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, reencoded)
}

func TestTreeSortOrderImplicitSlash(t *testing.T) {
	// "foo.txt" sorts before "foo" when "foo" is a directory, because
	// directory names compare as if followed by '/' (0x2f), which is
	// greater than '.' (0x2e) but less than nothing.
	blob := gitcore.ComputeHash(gitcore.BlobObject, []byte("x"))
	tr := NewTree([]TreeEntry{
		{Mode: Dir, Name: "foo", Hash: gitcore.ComputeHash(gitcore.TreeObject, nil)},
		{Mode: Regular, Name: "foo.txt", Hash: blob},
	})

	require.Equal(t, "foo.txt", tr.Entries[0].Name)
	require.Equal(t, "foo", tr.Entries[1].Name)
}

func TestDecodeTreeRejectsUnsortedInput(t *testing.T) {
	var buf bytes.Buffer
	blob := gitcore.ComputeHash(gitcore.BlobObject, []byte("x"))
	buf.WriteString("100644 zz\x00")
	buf.Write(blob.Bytes())
	buf.WriteString("100644 aa\x00")
	buf.Write(blob.Bytes())

	_, err := DecodeTree(&buf)
	require.ErrorIs(t, err, gitcore.ErrCorruptObject)
}
