package gc

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/object"
)

// memObjects is a trivial in-memory ObjectReader, enough to drive a
// reachability walk over a handcrafted commit graph.
type memObjects struct {
	content map[gitcore.Hash][]byte
	types   map[gitcore.Hash]gitcore.ObjectType
}

func newMemObjects() *memObjects {
	return &memObjects{content: map[gitcore.Hash][]byte{}, types: map[gitcore.Hash]gitcore.ObjectType{}}
}

func (m *memObjects) put(typ gitcore.ObjectType, b []byte) gitcore.Hash {
	id := gitcore.ComputeHash(typ, b)
	m.content[id] = b
	m.types[id] = typ
	return id
}

func (m *memObjects) LoadHeader(ctx context.Context, id gitcore.Hash) (gitcore.Header, error) {
	b, ok := m.content[id]
	if !ok {
		return gitcore.Header{}, gitcore.ErrNotFound
	}
	return gitcore.Header{Type: m.types[id], Size: int64(len(b))}, nil
}

func (m *memObjects) Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error) {
	b, ok := m.content[id]
	if !ok {
		return nil, gitcore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func putBlob(t *testing.T, m *memObjects, content string) gitcore.Hash {
	return m.put(gitcore.BlobObject, []byte(content))
}

func putTree(t *testing.T, m *memObjects, entries []object.TreeEntry) gitcore.Hash {
	tree := object.NewTree(entries)
	var buf bytes.Buffer
	require.NoError(t, tree.Encode(&buf))
	return m.put(gitcore.TreeObject, buf.Bytes())
}

func putCommit(t *testing.T, m *memObjects, tree gitcore.Hash, parents []gitcore.Hash, when time.Time) gitcore.Hash {
	who := object.PersonIdent{Name: "tester", Email: "tester@example.com", When: when}
	c := &object.Commit{TreeHash: tree, ParentHashes: parents, Author: who, Committer: who, RawMessage: []byte("msg\n")}
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	return m.put(gitcore.CommitObject, buf.Bytes())
}

func TestWalkReachesCommitTreeBlobChain(t *testing.T) {
	m := newMemObjects()
	blob := putBlob(t, m, "file contents")
	tree := putTree(t, m, []object.TreeEntry{{Mode: object.Regular, Name: "a.txt", Hash: blob}})
	root := putCommit(t, m, tree, nil, time.Unix(1000, 0))

	w := NewWalker(m)
	reachable, err := w.Walk(context.Background(), []gitcore.Hash{root})
	require.NoError(t, err)

	require.Contains(t, reachable, root)
	require.Contains(t, reachable, tree)
	require.Contains(t, reachable, blob)
	require.Len(t, reachable, 3)
}

func TestWalkFollowsParentsAndSkipsUnreachable(t *testing.T) {
	m := newMemObjects()
	blob1 := putBlob(t, m, "v1")
	tree1 := putTree(t, m, []object.TreeEntry{{Mode: object.Regular, Name: "f", Hash: blob1}})
	c1 := putCommit(t, m, tree1, nil, time.Unix(1000, 0))

	blob2 := putBlob(t, m, "v2")
	tree2 := putTree(t, m, []object.TreeEntry{{Mode: object.Regular, Name: "f", Hash: blob2}})
	c2 := putCommit(t, m, tree2, []gitcore.Hash{c1}, time.Unix(2000, 0))

	// An orphan commit, never passed as a root and never a parent.
	orphanBlob := putBlob(t, m, "orphan")
	orphanTree := putTree(t, m, []object.TreeEntry{{Mode: object.Regular, Name: "o", Hash: orphanBlob}})
	putCommit(t, m, orphanTree, nil, time.Unix(500, 0))

	w := NewWalker(m)
	reachable, err := w.Walk(context.Background(), []gitcore.Hash{c2})
	require.NoError(t, err)

	for _, h := range []gitcore.Hash{c1, c2, tree1, tree2, blob1, blob2} {
		require.Contains(t, reachable, h)
	}
	require.NotContains(t, reachable, orphanBlob)
	require.Len(t, reachable, 6)
}

func TestWalkGitlinkNotDereferenced(t *testing.T) {
	m := newMemObjects()
	// A gitlink pointing at a hash that is never stored in this object
	// reader at all — the walk must mark it reachable without trying to
	// load it as a local object.
	submoduleCommit := gitcore.ComputeHash(gitcore.CommitObject, []byte("lives in another repo"))
	tree := putTree(t, m, []object.TreeEntry{{Mode: object.Submodule, Name: "lib", Hash: submoduleCommit}})
	root := putCommit(t, m, tree, nil, time.Unix(1000, 0))

	w := NewWalker(m)
	reachable, err := w.Walk(context.Background(), []gitcore.Hash{root})
	require.NoError(t, err)

	require.Contains(t, reachable, submoduleCommit)
}

func TestWalkTagTarget(t *testing.T) {
	m := newMemObjects()
	blob := putBlob(t, m, "tagged content")
	tree := putTree(t, m, []object.TreeEntry{{Mode: object.Regular, Name: "f", Hash: blob}})
	c := putCommit(t, m, tree, nil, time.Unix(1000, 0))

	tag := &object.Tag{ObjectHash: c, ObjectType: gitcore.CommitObject, Name: "v1", Tagger: &object.PersonIdent{Name: "t", Email: "t@e", When: time.Unix(1000, 0)}, RawMessage: []byte("release\n")}
	var buf bytes.Buffer
	require.NoError(t, tag.Encode(&buf))
	tagID := m.put(gitcore.TagObject, buf.Bytes())

	w := NewWalker(m)
	reachable, err := w.Walk(context.Background(), []gitcore.Hash{tagID})
	require.NoError(t, err)

	require.Contains(t, reachable, tagID)
	require.Contains(t, reachable, c)
	require.Contains(t, reachable, tree)
	require.Contains(t, reachable, blob)
}
