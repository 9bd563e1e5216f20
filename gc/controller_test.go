package gc

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/object"
	"github.com/statewalker/gitcore/objstore"
	"github.com/statewalker/gitcore/refstore"
	"github.com/statewalker/gitcore/store"
	"github.com/statewalker/gitcore/tempstore"
)

// fixedAccess reports every id as touched at a fixed instant, so tests can
// deterministically push objects inside or outside the prune grace window.
type fixedAccess struct {
	when time.Time
}

func (f fixedAccess) Touched(ctx context.Context, id gitcore.Hash) (time.Time, error) {
	return f.when, nil
}

func newTestRepo(t *testing.T) (*objstore.Store, *store.Memory, *refstore.Refs) {
	t.Helper()
	raw := store.NewMemory()
	temp := tempstore.NewMemory()
	objects := objstore.New(raw, temp, objstore.Options{})
	refs := refstore.New(store.NewMemory(), nil)
	return objects, raw, refs
}

func commitChain(t *testing.T, objects *objstore.Store) (root gitcore.Hash, blob gitcore.Hash, tree gitcore.Hash) {
	t.Helper()
	ctx := context.Background()
	blob, err := objects.Store(ctx, gitcore.BlobObject, bytes.NewReader([]byte("content")))
	require.NoError(t, err)

	treeObj := object.NewTree([]object.TreeEntry{{Mode: object.Regular, Name: "f", Hash: blob}})
	var tbuf bytes.Buffer
	require.NoError(t, treeObj.Encode(&tbuf))
	tree, err = objects.Store(ctx, gitcore.TreeObject, bytes.NewReader(tbuf.Bytes()))
	require.NoError(t, err)

	who := object.PersonIdent{Name: "t", Email: "t@e", When: time.Unix(1000, 0)}
	c := &object.Commit{TreeHash: tree, Author: who, Committer: who, RawMessage: []byte("m\n")}
	var cbuf bytes.Buffer
	require.NoError(t, c.Encode(&cbuf))
	root, err = objects.Store(ctx, gitcore.CommitObject, bytes.NewReader(cbuf.Bytes()))
	require.NoError(t, err)
	return root, blob, tree
}

func TestControllerPrunesUnreachablePastGrace(t *testing.T) {
	objects, raw, refs := newTestRepo(t)
	ctx := context.Background()

	root, _, _ := commitChain(t, objects)
	require.NoError(t, refs.Set(ctx, "refs/heads/main", root, "", ""))

	// An orphan blob: reachable from nothing, "touched" long before now.
	orphan, err := objects.Store(ctx, gitcore.BlobObject, bytes.NewReader([]byte("garbage")))
	require.NoError(t, err)

	access := fixedAccess{when: time.Unix(0, 0)}
	c, err := NewController(refs, objects, raw, raw, access, nil, nil, nil, Options{PruneGraceSeconds: 60})
	require.NoError(t, err)

	stats, err := c.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Pruned)

	ok, err := raw.Has(ctx, orphan.String())
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = objects.Has(ctx, root)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestControllerSkipsPruneWithinGrace(t *testing.T) {
	objects, raw, refs := newTestRepo(t)
	ctx := context.Background()

	root, _, _ := commitChain(t, objects)
	require.NoError(t, refs.Set(ctx, "refs/heads/main", root, "", ""))

	orphan, err := objects.Store(ctx, gitcore.BlobObject, bytes.NewReader([]byte("recent garbage")))
	require.NoError(t, err)

	access := fixedAccess{when: time.Now()}
	c, err := NewController(refs, objects, raw, raw, access, nil, nil, nil, Options{PruneGraceSeconds: DefaultPruneGraceSeconds})
	require.NoError(t, err)

	stats, err := c.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Pruned)

	ok, err := raw.Has(ctx, orphan.String())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestControllerReportsReachableCount(t *testing.T) {
	objects, raw, refs := newTestRepo(t)
	ctx := context.Background()

	root, blob, tree := commitChain(t, objects)
	require.NoError(t, refs.Set(ctx, "refs/heads/main", root, "", ""))

	c, err := NewController(refs, objects, raw, raw, nil, nil, nil, nil, Options{})
	require.NoError(t, err)

	stats, err := c.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Reachable) // root commit + tree + blob
	require.Equal(t, 0, stats.Pruned)
	_ = blob
	_ = tree

	again := c.GetStats()
	require.Equal(t, stats, again)
}
