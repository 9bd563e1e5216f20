package objstore

import (
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/statewalker/gitcore"
)

// StagingEntry is one path's entry in the staging index: the blob it
// points at, its mode, and the index bits Git tracks per-entry.
type StagingEntry struct {
	Path         string
	Mode         uint32
	Hash         gitcore.Hash
	AssumeValid  bool
	SkipWorktree bool
	IntentToAdd  bool
	Stage        int // 0 = normal, 1-3 = unmerged conflict stages
}

// StagingStore holds the staging index as a sorted path → StagingEntry
// mapping, backed by a treemap so prefix scans (DeleteStagingTree) and
// ordered iteration fall out of the data structure instead of a sort pass.
type StagingStore struct {
	mu      sync.Mutex
	entries *treemap.Map // string -> StagingEntry
}

// NewStagingStore returns an empty staging index.
func NewStagingStore() *StagingStore {
	return &StagingStore{entries: treemap.NewWithStringComparator()}
}

// Get returns the entry at path, if present.
func (s *StagingStore) Get(path string) (StagingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries.Get(path)
	if !ok {
		return StagingEntry{}, false
	}
	return v.(StagingEntry), true
}

// Each iterates entries in path order.
func (s *StagingStore) Each(fn func(StagingEntry) error) error {
	s.mu.Lock()
	it := s.entries.Iterator()
	snapshot := make([]StagingEntry, 0, s.entries.Size())
	for it.Next() {
		snapshot = append(snapshot, it.Value().(StagingEntry))
	}
	s.mu.Unlock()

	for _, e := range snapshot {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of staged entries.
func (s *StagingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Size()
}

// Batch describes an atomic set of edits to apply to the index: all
// succeed together, or (on a validation error building the batch) none are
// applied.
type Batch struct {
	upserts    []StagingEntry
	deletes    []string
	deleteTree []string
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch { return &Batch{} }

// UpdateStagingEntry stages an upsert of e (add or replace).
func (b *Batch) UpdateStagingEntry(e StagingEntry) *Batch {
	b.upserts = append(b.upserts, e)
	return b
}

// DeleteStagingEntry stages removal of a single path.
func (b *Batch) DeleteStagingEntry(path string) *Batch {
	b.deletes = append(b.deletes, path)
	return b
}

// DeleteStagingTree stages removal of every entry whose path has prefix as
// a directory prefix.
func (b *Batch) DeleteStagingTree(prefix string) *Batch {
	b.deleteTree = append(b.deleteTree, prefix)
	return b
}

// Apply applies every edit in the batch to s. Batch construction above
// cannot itself fail, so Apply always succeeds; it exists as a distinct
// step so future validation (e.g. conflict checks) has a single place to
// reject the whole batch before any edit is visible.
func (s *StagingStore) Apply(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prefix := range b.deleteTree {
		dirPrefix := strings.TrimSuffix(prefix, "/") + "/"
		var toRemove []string
		it := s.entries.Iterator()
		for it.Next() {
			k := it.Key().(string)
			if k == prefix || strings.HasPrefix(k, dirPrefix) {
				toRemove = append(toRemove, k)
			}
		}
		for _, k := range toRemove {
			s.entries.Remove(k)
		}
	}
	for _, path := range b.deletes {
		s.entries.Remove(path)
	}
	for _, e := range b.upserts {
		s.entries.Put(e.Path, e)
	}
	return nil
}

// ResolveStagingConflict replaces all staged stages (1-3) for path with a
// single normal-stage entry, as happens when a merge conflict is resolved.
func (s *StagingStore) ResolveStagingConflict(path string, resolved StagingEntry) error {
	resolved.Stage = 0
	b := NewBatch().UpdateStagingEntry(resolved)
	return s.Apply(b)
}

// SetAssumeValid toggles the assume-valid bit on path's entry, if present.
func (s *StagingStore) SetAssumeValid(path string, v bool) error {
	return s.setFlag(path, func(e *StagingEntry) { e.AssumeValid = v })
}

// SetSkipWorktree toggles the skip-worktree bit on path's entry, if present.
func (s *StagingStore) SetSkipWorktree(path string, v bool) error {
	return s.setFlag(path, func(e *StagingEntry) { e.SkipWorktree = v })
}

// SetIntentToAdd toggles the intent-to-add bit on path's entry, if present.
func (s *StagingStore) SetIntentToAdd(path string, v bool) error {
	return s.setFlag(path, func(e *StagingEntry) { e.IntentToAdd = v })
}

func (s *StagingStore) setFlag(path string, mutate func(*StagingEntry)) error {
	e, ok := s.Get(path)
	if !ok {
		return gitcore.ErrNotFound
	}
	mutate(&e)
	return s.Apply(NewBatch().UpdateStagingEntry(e))
}
