// Package objstore is the streaming object store (C5): it frames payloads
// with Git's "<type> <size>\0" header, hashes them, and persists the
// framed bytes through a store.Store, using a tempstore.Store to learn an
// unsized reader's length before the header can be written.
package objstore

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/golang/groupcache/lru"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/store"
	"github.com/statewalker/gitcore/tempstore"
)

// Store is the typed, content-addressed object store built over a raw
// store.Store and a tempstore.Store.
type Store struct {
	raw  store.Store
	temp tempstore.Store

	cache           *lru.Cache
	maxCacheSize    int64
	cachedBytes     int64
	maxCacheEntries int
}

// Options configures Store's decode cache. Zero value disables caching.
type Options struct {
	MaxCacheSize    int64 // total bytes of cached payload, 0 disables
	MaxCacheEntries int   // max distinct cache entries, 0 disables
}

// New builds a Store over raw and temp. opts.MaxCacheEntries == 0 disables
// the decode cache entirely.
func New(raw store.Store, temp tempstore.Store, opts Options) *Store {
	s := &Store{
		raw:             raw,
		temp:            temp,
		maxCacheSize:    opts.MaxCacheSize,
		maxCacheEntries: opts.MaxCacheEntries,
	}
	if opts.MaxCacheEntries > 0 {
		s.cache = lru.New(opts.MaxCacheEntries)
		s.cache.OnEvicted = func(key lru.Key, value interface{}) {
			if b, ok := value.([]byte); ok {
				s.cachedBytes -= int64(len(b))
			}
		}
	}
	return s
}

// Header is an object's type and payload size, read without decoding the
// full payload.
type Header = gitcore.Header

// Store buffers r fully (to learn its size), frames it with typ's header,
// hashes it, and persists it. Returns the resulting object id.
func (s *Store) Store(ctx context.Context, typ gitcore.ObjectType, r io.Reader) (gitcore.Hash, error) {
	if !typ.Valid() {
		return gitcore.ZeroHash, gitcore.ErrInvalidType
	}
	payload, err := s.temp.Buffer(r)
	if err != nil {
		return gitcore.ZeroHash, err
	}
	defer payload.Dispose()
	return s.storeBuffered(ctx, typ, payload.Size(), payload)
}

// StoreWithSize stores r, which must yield exactly size bytes, under typ's
// header. Avoids re-learning the size from the reader when the caller
// already knows it (e.g. when copying an object whose header was already
// read), but still buffers through tempstore: the final key is the
// content hash, which isn't known until the payload has been read once.
func (s *Store) StoreWithSize(ctx context.Context, typ gitcore.ObjectType, size int64, r io.Reader) (gitcore.Hash, error) {
	if !typ.Valid() {
		return gitcore.ZeroHash, gitcore.ErrInvalidType
	}

	payload, err := s.temp.Buffer(io.LimitReader(r, size+1))
	if err != nil {
		return gitcore.ZeroHash, err
	}
	defer payload.Dispose()
	if payload.Size() != size {
		return gitcore.ZeroHash, fmt.Errorf("%w: declared %d, got %d", gitcore.ErrSizeMismatch, size, payload.Size())
	}
	return s.storeBuffered(ctx, typ, size, payload)
}

func (s *Store) storeBuffered(ctx context.Context, typ gitcore.ObjectType, size int64, payload tempstore.Handle) (gitcore.Hash, error) {
	hasher := gitcore.NewObjectHasher(typ, size)
	pr, err := payload.Open()
	if err != nil {
		return gitcore.ZeroHash, err
	}
	if _, err := io.Copy(hasher, pr); err != nil {
		pr.Close()
		return gitcore.ZeroHash, err
	}
	pr.Close()
	id := hasher.Sum()

	key := id.String()
	if ok, _ := s.raw.Has(ctx, key); ok {
		return id, nil // already present, content-addressed so it's identical
	}

	framed, err := payload.Open()
	if err != nil {
		return gitcore.ZeroHash, err
	}
	defer framed.Close()

	header := fmt.Appendf(nil, "%s %d\x00", typ.String(), size)
	if err := s.raw.Put(ctx, key, io.MultiReader(bytes.NewReader(header), framed)); err != nil {
		return gitcore.ZeroHash, err
	}
	return id, nil
}

// Has reports whether id is present.
func (s *Store) Has(ctx context.Context, id gitcore.Hash) (bool, error) {
	return s.raw.Has(ctx, id.String())
}

// LoadHeader reads and parses just the type+size header of id, without
// reading the full payload.
func (s *Store) LoadHeader(ctx context.Context, id gitcore.Hash) (Header, error) {
	rc, err := s.raw.Get(ctx, id.String())
	if err != nil {
		return Header{}, err
	}
	defer rc.Close()
	return readHeader(bufio.NewReader(rc))
}

// Load opens id's decoded payload (header stripped), positioned at the
// start of the content.
func (s *Store) Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error) {
	key := id.String()

	if s.cache != nil {
		if v, ok := s.cache.Get(lru.Key(key)); ok {
			b := v.([]byte)
			return io.NopCloser(bytes.NewReader(b)), nil
		}
	}

	rc, err := s.raw.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(rc)
	hdr, err := readHeader(br)
	if err != nil {
		rc.Close()
		return nil, err
	}

	if s.cache != nil && hdr.Size <= s.maxCacheSize {
		b, err := io.ReadAll(br)
		rc.Close()
		if err != nil {
			return nil, err
		}
		s.cacheInsert(key, b)
		return io.NopCloser(bytes.NewReader(b)), nil
	}

	return &limitedReadCloser{r: io.LimitReader(br, hdr.Size), c: rc}, nil
}

func (s *Store) cacheInsert(key string, b []byte) {
	for s.cachedBytes+int64(len(b)) > s.maxCacheSize && s.cache.Len() > 0 {
		s.cache.RemoveOldest()
	}
	s.cache.Add(lru.Key(key), b)
	s.cachedBytes += int64(len(b))
}

func readHeader(r *bufio.Reader) (Header, error) {
	typLine, err := r.ReadString(' ')
	if err != nil {
		return Header{}, fmt.Errorf("%w: missing type header: %v", gitcore.ErrCorruptObject, err)
	}
	typ, err := gitcore.ParseObjectType(typLine[:len(typLine)-1])
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
	}

	sizeLine, err := r.ReadString(0)
	if err != nil {
		return Header{}, fmt.Errorf("%w: missing size header: %v", gitcore.ErrCorruptObject, err)
	}
	size, err := strconv.ParseInt(sizeLine[:len(sizeLine)-1], 10, 64)
	if err != nil {
		return Header{}, fmt.Errorf("%w: invalid size header: %v", gitcore.ErrCorruptObject, err)
	}

	return Header{Type: typ, Size: size}, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error               { return l.c.Close() }
