// Package packstore implements the pack store (C9): a read-only object
// source backed by one or more (pack, idx) pairs. Has/Load consult each
// pack's index via its fanout table and binary search, then inflate (and,
// for delta entries, transparently expand via the delta engine) at the
// resolved offset.
package packstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/delta"
	"github.com/statewalker/gitcore/pack"
	"github.com/statewalker/gitcore/pack/idx"
)

// Fallback is the subset of objstore.Store's contract the Store falls
// through to for any id, ref-delta bases included, not present in any open
// pack.
type Fallback interface {
	LoadHeader(ctx context.Context, id gitcore.Hash) (gitcore.Header, error)
	Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error)
}

// Pack pairs an open, random-access pack file with its parsed index.
type Pack struct {
	ra  io.ReaderAt
	idx *idx.Reader
}

// OpenPack builds a Pack from an already-open pack file (any io.ReaderAt —
// *os.File, a billy.File, or an in-memory *bytes.Reader for tests) and its
// parsed index.
func OpenPack(ra io.ReaderAt, index *idx.Reader) *Pack {
	return &Pack{ra: ra, idx: index}
}

// Store wraps a set of packs as an objstore-compatible object source,
// expanding deltas transparently and memoizing recently-reconstructed
// intermediates in a small LRU (spec §4.7's "chain cache").
type Store struct {
	mu       sync.Mutex
	packs    []*Pack
	fallback Fallback
	cache    *lru.Cache // (pack index, offset) -> resolvedEntry
}

type chainCacheKey struct {
	pack   int
	offset int64
}

type resolvedEntry struct {
	typ     gitcore.ObjectType
	content []byte
}

// New builds a Store over packs. fallback (may be nil) is consulted for
// any id that isn't found in an open pack: by Has, LoadHeader and Load
// directly, and when a ref-delta's base lives outside every open pack —
// the usual case for a "thin pack" received over a transport, whose base
// already lives in the receiving repository's object store.
func New(packs []*Pack, fallback Fallback, cacheEntries int) *Store {
	s := &Store{packs: packs, fallback: fallback}
	if cacheEntries > 0 {
		s.cache = lru.New(cacheEntries)
	}
	return s
}

// find locates id across every open pack, returning the owning pack's
// index in s.packs, its byte offset, and its CRC32.
func (s *Store) find(id gitcore.Hash) (packIdx int, offset int64, crc uint32, ok bool) {
	for i, p := range s.packs {
		if off, c, found := p.idx.Find(id); found {
			return i, off, c, true
		}
	}
	return 0, 0, 0, false
}

// Has reports whether id is present in any open pack or, when a fallback
// is set, in the fallback.
func (s *Store) Has(ctx context.Context, id gitcore.Hash) (bool, error) {
	_, _, _, ok := s.find(id)
	if ok {
		return true, nil
	}
	if s.fallback != nil {
		if _, err := s.fallback.LoadHeader(ctx, id); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// LoadHeader returns id's type and size without requiring the caller to
// read the full (possibly delta-expanded) payload.
func (s *Store) LoadHeader(ctx context.Context, id gitcore.Hash) (gitcore.Header, error) {
	typ, content, err := s.resolve(ctx, id)
	if err != nil {
		return gitcore.Header{}, err
	}
	return gitcore.Header{Type: typ, Size: int64(len(content))}, nil
}

// Load returns id's fully-expanded payload, resolving any delta chain
// against the owning pack's other entries (or, for an out-of-pack
// ref-delta base, the fallback source).
func (s *Store) Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error) {
	_, content, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *Store) resolve(ctx context.Context, id gitcore.Hash) (gitcore.ObjectType, []byte, error) {
	pi, offset, _, ok := s.find(id)
	if !ok {
		if s.fallback != nil {
			hdr, err := s.fallback.LoadHeader(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			rc, err := s.fallback.Load(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			return hdr.Type, b, err
		}
		return 0, nil, gitcore.ErrNotFound
	}
	return s.resolveAt(ctx, pi, offset, 0)
}

func (s *Store) resolveAt(ctx context.Context, packIdx int, offset int64, depth int) (gitcore.ObjectType, []byte, error) {
	if depth > delta.DefaultMaxDepth {
		return 0, nil, fmt.Errorf("%w: chain depth exceeds %d resolving offset %d", gitcore.ErrDeltaChainTooDeep, delta.DefaultMaxDepth, offset)
	}

	key := lru.Key(chainCacheKey{packIdx, offset})
	if s.cache != nil {
		if v, ok := s.getCached(key); ok {
			return v.typ, v.content, nil
		}
	}

	p := s.packs[packIdx]
	eh, r, err := pack.ReadEntryAt(p.ra, offset)
	if err != nil {
		return 0, nil, err
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: inflating entry at offset %d: %v", gitcore.ErrCorruptPack, offset, err)
	}

	var typ gitcore.ObjectType
	var content []byte

	switch {
	case eh.Type.Valid():
		typ, content = eh.Type, body

	case eh.Type == gitcore.OFSDeltaObject:
		baseTyp, baseContent, err := s.resolveAt(ctx, packIdx, eh.BaseOffset, depth+1)
		if err != nil {
			return 0, nil, err
		}
		var dst bytes.Buffer
		if err := delta.Apply(bytes.NewReader(baseContent), int64(len(baseContent)), bytes.NewReader(body), &dst); err != nil {
			return 0, nil, fmt.Errorf("%w: applying ofs-delta at offset %d: %v", gitcore.ErrCorruptPack, offset, err)
		}
		typ, content = baseTyp, dst.Bytes()

	case eh.Type == gitcore.REFDeltaObject:
		var baseTyp gitcore.ObjectType
		var baseContent []byte
		if baseOff, _, found := p.idx.Find(eh.BaseHash); found {
			baseTyp, baseContent, err = s.resolveAt(ctx, packIdx, baseOff, depth+1)
			if err != nil {
				return 0, nil, err
			}
		} else {
			baseTyp, baseContent, err = s.resolve(ctx, eh.BaseHash)
			if err != nil {
				return 0, nil, err
			}
		}
		var dst bytes.Buffer
		if err := delta.Apply(bytes.NewReader(baseContent), int64(len(baseContent)), bytes.NewReader(body), &dst); err != nil {
			return 0, nil, fmt.Errorf("%w: applying ref-delta at offset %d: %v", gitcore.ErrCorruptPack, offset, err)
		}
		typ, content = baseTyp, dst.Bytes()

	default:
		return 0, nil, fmt.Errorf("%w: invalid entry type at offset %d", gitcore.ErrCorruptPack, offset)
	}

	if s.cache != nil {
		s.putCached(key, resolvedEntry{typ: typ, content: content})
	}
	return typ, content, nil
}

func (s *Store) getCached(key lru.Key) (resolvedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(key)
	if !ok {
		return resolvedEntry{}, false
	}
	return v.(resolvedEntry), true
}

func (s *Store) putCached(key lru.Key, v resolvedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key, v)
}
