package store

import (
	"bytes"
	"context"
	"io"

	"github.com/statewalker/gitcore"
)

// KVClient is the minimal shape a key-value backend needs to back a Store:
// byte-slice values keyed by string, with enumeration of every key. It
// intentionally avoids committing to any one vendor SDK (bbolt, badger, a
// cloud KV API) — adapt the target client to this interface at the call
// site.
type KVClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys calls fn for every stored key, in any order. fn returning
	// ErrStopIteration stops enumeration early without error.
	Keys(ctx context.Context, fn func(key string) error) error
}

// KV adapts a KVClient into a Store.
type KV struct {
	client KVClient
}

// NewKV wraps client as a Store.
func NewKV(client KVClient) *KV {
	return &KV{client: client}
}

func (k *KV) Put(ctx context.Context, key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return k.client.Put(ctx, key, b)
}

func (k *KV) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := k.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, gitcore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (k *KV) Has(ctx context.Context, key string) (bool, error) {
	b, err := k.client.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	return k.client.Delete(ctx, key)
}

func (k *KV) Keys(ctx context.Context, fn func(key string) error) error {
	return k.client.Keys(ctx, fn)
}
