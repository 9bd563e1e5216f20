package refstore

import (
	"context"
	"testing"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/store"
	"github.com/stretchr/testify/require"
)

func TestSetAndResolveDirect(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), nil)

	target := gitcore.ComputeHash(gitcore.CommitObject, []byte("c1"))
	require.NoError(t, r.Set(ctx, "refs/heads/main", target, "tester", "init"))

	resolved, err := r.Resolve(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, Direct, resolved.Kind)
	require.Equal(t, target, resolved.Target)
}

func TestSymbolicResolution(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), nil)

	target := gitcore.ComputeHash(gitcore.CommitObject, []byte("c1"))
	require.NoError(t, r.Set(ctx, "refs/heads/main", target, "tester", "init"))
	require.NoError(t, r.SetSymbolic(ctx, "HEAD", "refs/heads/main"))

	resolved, err := r.Resolve(ctx, "HEAD")
	require.NoError(t, err)
	require.Equal(t, Direct, resolved.Kind)
	require.Equal(t, target, resolved.Target)
}

func TestSymbolicCycleDetected(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), nil)

	require.NoError(t, r.SetSymbolic(ctx, "a", "b"))
	require.NoError(t, r.SetSymbolic(ctx, "b", "a"))

	_, err := r.Resolve(ctx, "a")
	require.ErrorIs(t, err, gitcore.ErrCorruptObject)
}

func TestCompareAndSetRejectsStaleValue(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), nil)

	c1 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c1"))
	c2 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c2"))
	c3 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c3"))

	require.NoError(t, r.Set(ctx, "refs/heads/main", c1, "tester", "init"))

	err := r.CompareAndSet(ctx, "refs/heads/main", c2, c3, "tester", "bad")
	require.ErrorIs(t, err, gitcore.ErrNonFastForward)

	require.NoError(t, r.CompareAndSet(ctx, "refs/heads/main", c1, c2, "tester", "ff"))
	resolved, err := r.Resolve(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, c2, resolved.Target)
}

func TestCompareAndSetRequiresAbsentForZeroHash(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), nil)
	c1 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c1"))

	require.NoError(t, r.CompareAndSet(ctx, "refs/heads/new", gitcore.ZeroHash, c1, "tester", "create"))

	_, err := r.Resolve(ctx, "refs/heads/new")
	require.NoError(t, err)
}

func TestListSortedByName(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), nil)
	c1 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c1"))

	require.NoError(t, r.Set(ctx, "refs/heads/z", c1, "tester", ""))
	require.NoError(t, r.Set(ctx, "refs/heads/a", c1, "tester", ""))

	entries, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "refs/heads/a", entries[0].Name)
	require.Equal(t, "refs/heads/z", entries[1].Name)
}

func TestReflogDisabledByDefault(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), nil)
	c1 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c1"))
	require.NoError(t, r.Set(ctx, "refs/heads/main", c1, "tester", "init"))

	log, err := r.GetReflog(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Nil(t, log)
}

func TestReflogRecordsHistory(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory(), store.NewMemory())
	c1 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c1"))
	c2 := gitcore.ComputeHash(gitcore.CommitObject, []byte("c2"))

	require.NoError(t, r.Set(ctx, "refs/heads/main", c1, "tester", "init"))
	require.NoError(t, r.Set(ctx, "refs/heads/main", c2, "tester", "update"))

	log, err := r.GetReflog(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.Len(t, log, 2)
	require.Equal(t, gitcore.ZeroHash, log[0].Old)
	require.Equal(t, c1, log[0].New)
	require.Equal(t, c1, log[1].Old)
	require.Equal(t, c2, log[1].New)
	require.Equal(t, "update", log[1].Message)
}
