// Package gc implements the GC orchestrator (C10) and reachability walk
// (C11): enumerate every ref, walk commits→trees→blobs (and tag targets)
// to find the reachable set, then prune/repack/deltify per spec §4.10.
package gc

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/emirpasic/gods/trees/binaryheap"
	"golang.org/x/sync/errgroup"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/object"
)

// ObjectReader is the subset of objstore.Store's contract the walker and
// controller need to read objects during reachability analysis.
type ObjectReader interface {
	LoadHeader(ctx context.Context, id gitcore.Hash) (gitcore.Header, error)
	Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error)
}

// Walker computes the set of object ids reachable from a set of root
// object ids (typically resolved refs), following commit parent edges,
// commit/tag trees, and tag targets.
//
// Grounded on plumbing/object/commitgraph's ctime-ordered commit walk: a
// binaryheap frontier ordered by committer time means a large, deep
// history is processed newest-first rather than via unbounded recursion
// depth, the same shape commitgraph's commitNodeIteratorByCTime gives
// go-git's own log/merge-base walkers.
type Walker struct {
	reader ObjectReader
}

// NewWalker returns a Walker reading objects through reader.
func NewWalker(reader ObjectReader) *Walker {
	return &Walker{reader: reader}
}

// commitWork is one queued commit: its id (already marked reachable, tree
// already walked) and its own commit, whose parents still need visiting.
type commitWork struct {
	hash   gitcore.Hash
	commit *object.Commit
}

func commitWorkComparator(a, b interface{}) int {
	ca, cb := a.(commitWork), b.(commitWork)
	switch {
	case ca.commit.Committer.When.After(cb.commit.Committer.When):
		return -1 // max-heap: newer commits pop first
	case ca.commit.Committer.When.Before(cb.commit.Committer.When):
		return 1
	default:
		return 0
	}
}

// syncSet is a mutex-guarded Hash set, shared between the sequential
// commit/tag walk and markTree's concurrent subtree fan-out below.
type syncSet struct {
	mu sync.Mutex
	m  map[gitcore.Hash]struct{}
}

func newSyncSet() *syncSet { return &syncSet{m: make(map[gitcore.Hash]struct{})} }

// mark adds h and reports whether it was newly added (false if already
// present), so callers can use it as a once-only gate.
func (s *syncSet) mark(h gitcore.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[h]; ok {
		return false
	}
	s.m[h] = struct{}{}
	return true
}

func (s *syncSet) snapshot() map[gitcore.Hash]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[gitcore.Hash]struct{}, len(s.m))
	for h := range s.m {
		out[h] = struct{}{}
	}
	return out
}

// Walk returns every object id reachable from roots.
func (w *Walker) Walk(ctx context.Context, roots []gitcore.Hash) (map[gitcore.Hash]struct{}, error) {
	reachable := newSyncSet()
	visitedObjects := newSyncSet() // commits/tags/blobs pushed once
	walkedTrees := newSyncSet()    // trees fully expanded once

	frontier := binaryheap.NewWith(commitWorkComparator)
	var frontierMu sync.Mutex // binaryheap itself isn't safe for concurrent Push

	var push func(h gitcore.Hash) error
	push = func(h gitcore.Hash) error {
		if h.IsZero() || !visitedObjects.mark(h) {
			return nil
		}

		hdr, err := w.reader.LoadHeader(ctx, h)
		if err != nil {
			return fmt.Errorf("gc: loading header for %s: %w", h, err)
		}

		switch hdr.Type {
		case gitcore.CommitObject:
			rc, err := w.reader.Load(ctx, h)
			if err != nil {
				return err
			}
			c, err := object.DecodeCommit(rc)
			rc.Close()
			if err != nil {
				return err
			}
			reachable.mark(h)
			frontierMu.Lock()
			frontier.Push(commitWork{hash: h, commit: c})
			frontierMu.Unlock()

		case gitcore.TagObject:
			rc, err := w.reader.Load(ctx, h)
			if err != nil {
				return err
			}
			t, err := object.DecodeTag(rc)
			rc.Close()
			if err != nil {
				return err
			}
			reachable.mark(h)
			return push(t.ObjectHash)

		case gitcore.TreeObject:
			return w.markTree(ctx, h, reachable, walkedTrees)

		case gitcore.BlobObject:
			reachable.mark(h)

		default:
			return fmt.Errorf("gc: %s has unrecognized object type for a ref target", h)
		}
		return nil
	}

	// Roots (distinct refs) are independent of one another, so they're
	// pushed concurrently, bounded by GOMAXPROCS (spec §5: errgroup used
	// wherever multiple suspension points can be awaited concurrently).
	// Shared state (reachable/visitedObjects/walkedTrees, the frontier) is
	// protected by syncSet's own lock and frontierMu above.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, r := range roots {
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return push(r)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for !frontier.Empty() {
		v, _ := frontier.Pop()
		cw := v.(commitWork)
		if err := w.markTree(ctx, cw.commit.TreeHash, reachable, walkedTrees); err != nil {
			return nil, err
		}
		for _, p := range cw.commit.ParentHashes {
			if err := push(p); err != nil {
				return nil, err
			}
		}
	}

	return reachable.snapshot(), nil
}

// markTree walks a tree's entries, recursing into subtrees and recording
// blobs directly. Gitlink entries (nested-repository commits) are marked
// reachable by their own id but never dereferenced: the commit they name
// lives in another repository's object store, not this one. Sibling
// subtrees are independent of each other, so they're recursed into
// concurrently, bounded by GOMAXPROCS, through the same shared, mutex-
// guarded sets push uses.
func (w *Walker) markTree(ctx context.Context, h gitcore.Hash, reachable, walked *syncSet) error {
	if h.IsZero() || !walked.mark(h) {
		return nil
	}
	reachable.mark(h)

	rc, err := w.reader.Load(ctx, h)
	if err != nil {
		return fmt.Errorf("gc: loading tree %s: %w", h, err)
	}
	tree, err := object.DecodeTree(rc)
	rc.Close()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range tree.Entries {
		e := e
		switch {
		case e.Mode == object.Submodule:
			reachable.mark(e.Hash)
		case e.Mode.IsDir():
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return w.markTree(ctx, e.Hash, reachable, walked)
			})
		default:
			reachable.mark(e.Hash)
		}
	}
	return g.Wait()
}
