package packstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/pack"
	"github.com/statewalker/gitcore/pack/idx"
)

// fakeSource feeds pack.Encode straight from an in-memory map, the same
// minimal shape pack's own tests use.
type fakeSource struct {
	objects map[gitcore.Hash][]byte
	types   map[gitcore.Hash]gitcore.ObjectType
}

func newFakeSource() *fakeSource {
	return &fakeSource{objects: map[gitcore.Hash][]byte{}, types: map[gitcore.Hash]gitcore.ObjectType{}}
}

func (f *fakeSource) add(typ gitcore.ObjectType, content []byte) gitcore.Hash {
	id := gitcore.ComputeHash(typ, content)
	f.objects[id] = content
	f.types[id] = typ
	return id
}

func (f *fakeSource) LoadHeader(ctx context.Context, id gitcore.Hash) (gitcore.Header, error) {
	b, ok := f.objects[id]
	if !ok {
		return gitcore.Header{}, gitcore.ErrNotFound
	}
	return gitcore.Header{Type: f.types[id], Size: int64(len(b))}, nil
}

func (f *fakeSource) Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error) {
	b, ok := f.objects[id]
	if !ok {
		return nil, gitcore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func buildPack(t *testing.T, src *fakeSource, ids []gitcore.Hash, useDeltas bool) (*bytes.Reader, *idx.Reader) {
	t.Helper()
	var packBuf bytes.Buffer
	entries, checksum, _, err := pack.Encode(context.Background(), &packBuf, src, ids, pack.EncodeOptions{UseDeltas: useDeltas, Window: 10})
	require.NoError(t, err)

	idxEntries := make([]idx.Entry, len(entries))
	for i, e := range entries {
		idxEntries[i] = idx.Entry{Hash: e.Hash, Offset: e.Offset, CRC32: e.CRC32}
	}
	var idxBuf bytes.Buffer
	require.NoError(t, idx.Write(&idxBuf, checksum, idxEntries))

	ir, err := idx.Open(&idxBuf)
	require.NoError(t, err)
	return bytes.NewReader(packBuf.Bytes()), ir
}

func TestStoreHasAndLoadWithoutDeltas(t *testing.T) {
	src := newFakeSource()
	id := src.add(gitcore.BlobObject, []byte("hello pack store"))

	ra, ir := buildPack(t, src, []gitcore.Hash{id}, false)
	store := New([]*Pack{OpenPack(ra, ir)}, nil, 0)

	ok, err := store.Has(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)

	rc, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello pack store", string(got))
}

func TestStoreResolvesDeltaChain(t *testing.T) {
	src := newFakeSource()
	base := bytes.Repeat([]byte("alpha beta gamma delta epsilon "), 30)
	target := append(append([]byte{}, base...), []byte("zeta")...)

	baseID := src.add(gitcore.BlobObject, base)
	targetID := src.add(gitcore.BlobObject, target)

	ra, ir := buildPack(t, src, []gitcore.Hash{baseID, targetID}, true)
	store := New([]*Pack{OpenPack(ra, ir)}, nil, 16)

	hdr, err := store.LoadHeader(context.Background(), targetID)
	require.NoError(t, err)
	require.Equal(t, int64(len(target)), hdr.Size)

	rc, err := store.Load(context.Background(), targetID)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, target, got)

	// Cached resolution should return the identical content on a second read.
	rc2, err := store.Load(context.Background(), targetID)
	require.NoError(t, err)
	defer rc2.Close()
	got2, err := io.ReadAll(rc2)
	require.NoError(t, err)
	require.Equal(t, target, got2)
}

func TestStoreMissingObject(t *testing.T) {
	src := newFakeSource()
	id := src.add(gitcore.BlobObject, []byte("present"))
	ra, ir := buildPack(t, src, []gitcore.Hash{id}, false)
	store := New([]*Pack{OpenPack(ra, ir)}, nil, 0)

	missing := gitcore.ComputeHash(gitcore.BlobObject, []byte("absent"))
	ok, err := store.Has(context.Background(), missing)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Load(context.Background(), missing)
	require.ErrorIs(t, err, gitcore.ErrNotFound)
}
