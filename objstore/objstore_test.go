package objstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/object"
	"github.com/statewalker/gitcore/store"
	"github.com/statewalker/gitcore/tempstore"
	"github.com/stretchr/testify/require"
)

func newTestStore(opts Options) *Store {
	return New(store.NewMemory(), tempstore.NewMemory(), opts)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	id, err := s.Store(ctx, gitcore.BlobObject, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	require.Equal(t, "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0", id.String())

	ok, err := s.Has(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	hdr, err := s.LoadHeader(ctx, id)
	require.NoError(t, err)
	require.Equal(t, gitcore.BlobObject, hdr.Type)
	require.Equal(t, int64(5), hdr.Size)

	rc, err := s.Load(ctx, id)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "hello", string(got))
}

func TestStoreDeduplicatesIdenticalContent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	id1, err := s.Store(ctx, gitcore.BlobObject, bytes.NewReader([]byte("same")))
	require.NoError(t, err)
	id2, err := s.Store(ctx, gitcore.BlobObject, bytes.NewReader([]byte("same")))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestStoreWithSizeMismatchFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})

	_, err := s.StoreWithSize(ctx, gitcore.BlobObject, 10, bytes.NewReader([]byte("short")))
	require.ErrorIs(t, err, gitcore.ErrSizeMismatch)
}

func TestStoreWithDecodeCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{MaxCacheSize: 1 << 10, MaxCacheEntries: 8})

	id, err := s.Store(ctx, gitcore.BlobObject, bytes.NewReader([]byte("cached")))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rc, err := s.Load(ctx, id)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.Equal(t, "cached", string(got))
	}
}

func TestTypedBlobStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})
	blobs := NewBlobStore(s)

	id, err := blobs.Put(ctx, Blob{Content: []byte("typed")})
	require.NoError(t, err)

	b, err := blobs.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []byte("typed"), b.Content)
}

func TestTypedTreeStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(Options{})
	trees := NewTreeStore(s)

	blobID := gitcore.ComputeHash(gitcore.BlobObject, []byte("x"))
	tree := object.NewTree([]object.TreeEntry{
		{Mode: object.Regular, Name: "file.txt", Hash: blobID},
	})

	id, err := trees.Put(ctx, tree)
	require.NoError(t, err)

	got, err := trees.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, tree.Entries, got.Entries)
}

func TestStagingStoreBatchAndPrefixDelete(t *testing.T) {
	s := NewStagingStore()
	blobID := gitcore.ComputeHash(gitcore.BlobObject, []byte("x"))

	b := NewBatch().
		UpdateStagingEntry(StagingEntry{Path: "a.txt", Hash: blobID}).
		UpdateStagingEntry(StagingEntry{Path: "dir/b.txt", Hash: blobID}).
		UpdateStagingEntry(StagingEntry{Path: "dir/c.txt", Hash: blobID})
	require.NoError(t, s.Apply(b))
	require.Equal(t, 3, s.Len())

	var paths []string
	require.NoError(t, s.Each(func(e StagingEntry) error {
		paths = append(paths, e.Path)
		return nil
	}))
	require.Equal(t, []string{"a.txt", "dir/b.txt", "dir/c.txt"}, paths)

	require.NoError(t, s.Apply(NewBatch().DeleteStagingTree("dir")))
	require.Equal(t, 1, s.Len())
	_, ok := s.Get("a.txt")
	require.True(t, ok)
}

func TestStagingStoreFlags(t *testing.T) {
	s := NewStagingStore()
	blobID := gitcore.ComputeHash(gitcore.BlobObject, []byte("x"))
	require.NoError(t, s.Apply(NewBatch().UpdateStagingEntry(StagingEntry{Path: "f", Hash: blobID})))

	require.NoError(t, s.SetAssumeValid("f", true))
	e, ok := s.Get("f")
	require.True(t, ok)
	require.True(t, e.AssumeValid)

	require.ErrorIs(t, s.SetIntentToAdd("missing", true), gitcore.ErrNotFound)
}
