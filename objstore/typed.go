package objstore

import (
	"context"
	"io"

	"github.com/statewalker/gitcore"
)

// Codec decodes/encodes a typed value T to/from its Git object payload.
type Codec[T any] struct {
	Type   gitcore.ObjectType
	Decode func(io.Reader) (T, error)
	Encode func(T, io.Writer) error
}

// TypedStore is a generic view over Store for a single Git object type,
// decoding/encoding payloads to a concrete Go type instead of raw bytes.
type TypedStore[T any] struct {
	store *Store
	codec Codec[T]
}

// NewTypedStore builds a TypedStore for codec over store.
func NewTypedStore[T any](store *Store, codec Codec[T]) *TypedStore[T] {
	return &TypedStore[T]{store: store, codec: codec}
}

// Get loads and decodes the object at id.
func (s *TypedStore[T]) Get(ctx context.Context, id gitcore.Hash) (T, error) {
	var zero T
	rc, err := s.store.Load(ctx, id)
	if err != nil {
		return zero, err
	}
	defer rc.Close()
	return s.codec.Decode(rc)
}

// Put encodes v and stores it, returning its id.
func (s *TypedStore[T]) Put(ctx context.Context, v T) (gitcore.Hash, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.codec.Encode(v, pw))
	}()
	return s.store.Store(ctx, s.codec.Type, pr)
}

// Raw exposes the underlying untyped Store, e.g. for Has/LoadHeader.
func (s *TypedStore[T]) Raw() *Store { return s.store }
