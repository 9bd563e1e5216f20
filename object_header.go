package gitcore

import (
	"bytes"
	"hash"
	"io"
	"strconv"

	githash "github.com/statewalker/gitcore/hash"
)

// Header is the decoded form of an object's "<type> <size>\0" prefix.
type Header struct {
	Type ObjectType
	Size int64
}

// ObjectHasher seeds a SHA-1 hasher with a Git object header and exposes it
// as an io.Writer for the payload, producing the content-addressed id
// spec §3 defines: sha1("<type> <size>\0" || payload).
type ObjectHasher struct {
	h hash.Hash
}

// NewObjectHasher returns a hasher already seeded with the header for the
// given type and size; write the payload to it and call Sum.
func NewObjectHasher(t ObjectType, size int64) *ObjectHasher {
	oh := &ObjectHasher{h: githash.SHA1()}
	oh.Reset(t, size)
	return oh
}

// Reset reseeds the hasher for a new type/size, without allocating a new
// underlying hash.Hash.
func (oh *ObjectHasher) Reset(t ObjectType, size int64) {
	oh.h.Reset()
	oh.h.Write(t.Bytes())
	oh.h.Write([]byte(" "))
	oh.h.Write([]byte(strconv.FormatInt(size, 10)))
	oh.h.Write([]byte{0})
}

// Write feeds payload bytes into the hash.
func (oh *ObjectHasher) Write(p []byte) (int, error) {
	return oh.h.Write(p)
}

// Sum returns the resulting object id.
func (oh *ObjectHasher) Sum() Hash {
	var h Hash
	copy(h[:], oh.h.Sum(nil))
	return h
}

// ComputeHash is a convenience one-shot form of ObjectHasher for content
// that's already fully in memory.
func ComputeHash(t ObjectType, payload []byte) Hash {
	oh := NewObjectHasher(t, int64(len(payload)))
	oh.Write(payload)
	return oh.Sum()
}

// EncodedObject is a generic, type-erased view of any stored Git object:
// the payload bytes plus its type and size. Used by the delta and pack
// packages to move objects around without caring whether they came from a
// loose store, a pack, or an in-memory buffer.
type EncodedObject interface {
	Hash() Hash
	Type() ObjectType
	SetType(ObjectType)
	Size() int64
	SetSize(int64)
	Reader() (io.ReadCloser, error)
	Writer() (io.WriteCloser, error)
}

// DeltaObject is an EncodedObject known to be stored as a delta against a
// base object.
type DeltaObject interface {
	EncodedObject
	BaseHash() Hash
	ActualHash() Hash
	ActualSize() int64
}

// MemoryObject is the simplest EncodedObject: content buffered entirely in
// memory. Useful for building small objects (trees, commits, tags) and as
// the target of delta application when the result is known to be small.
type MemoryObject struct {
	typ     ObjectType
	size    int64
	content []byte
	hash    Hash
	hashed  bool
}

// NewMemoryObject returns an empty MemoryObject of the given type.
func NewMemoryObject(t ObjectType) *MemoryObject {
	return &MemoryObject{typ: t}
}

// Hash computes (and caches) the object id from the buffered content. The
// cache is invalidated by any further Write.
func (o *MemoryObject) Hash() Hash {
	if !o.hashed {
		o.hash = ComputeHash(o.typ, o.content)
		o.hashed = true
	}
	return o.hash
}

func (o *MemoryObject) Type() ObjectType     { return o.typ }
func (o *MemoryObject) SetType(t ObjectType) { o.typ = t; o.hashed = false }
func (o *MemoryObject) Size() int64          { return o.size }
func (o *MemoryObject) SetSize(s int64)      { o.size = s }

// Reader returns a fresh reader over the buffered content.
func (o *MemoryObject) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(o.content)), nil
}

// Writer returns o itself: writes append to the buffer and update Size.
func (o *MemoryObject) Writer() (io.WriteCloser, error) {
	return o, nil
}

// Write implements io.Writer, appending to the buffered content.
func (o *MemoryObject) Write(p []byte) (int, error) {
	o.content = append(o.content, p...)
	o.size = int64(len(o.content))
	o.hashed = false
	return len(p), nil
}

// Close implements io.Closer; MemoryObject needs no cleanup.
func (o *MemoryObject) Close() error { return nil }

var _ EncodedObject = (*MemoryObject)(nil)

// Content returns the buffered bytes directly, without an io.Reader hop.
func (o *MemoryObject) Content() []byte { return o.content }
