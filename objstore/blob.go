package objstore

import (
	"io"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/object"
)

// Blob is the decoded form of a blob object: just its content, read lazily.
// Unlike Tree/Commit/Tag, blobs have no further structure to parse, so the
// "decoded" form is simply the raw bytes.
type Blob struct {
	Content []byte
}

// NewBlobStore builds a TypedStore for blob objects.
func NewBlobStore(s *Store) *TypedStore[Blob] {
	return NewTypedStore(s, Codec[Blob]{
		Type: gitcore.BlobObject,
		Decode: func(r io.Reader) (Blob, error) {
			b, err := io.ReadAll(r)
			return Blob{Content: b}, err
		},
		Encode: func(b Blob, w io.Writer) error {
			_, err := w.Write(b.Content)
			return err
		},
	})
}

// NewTreeStore builds a TypedStore for tree objects.
func NewTreeStore(s *Store) *TypedStore[*object.Tree] {
	return NewTypedStore(s, Codec[*object.Tree]{
		Type:   gitcore.TreeObject,
		Decode: object.DecodeTree,
		Encode: func(t *object.Tree, w io.Writer) error { return t.Encode(w) },
	})
}

// NewCommitStore builds a TypedStore for commit objects.
func NewCommitStore(s *Store) *TypedStore[*object.Commit] {
	return NewTypedStore(s, Codec[*object.Commit]{
		Type:   gitcore.CommitObject,
		Decode: object.DecodeCommit,
		Encode: func(c *object.Commit, w io.Writer) error { return c.Encode(w) },
	})
}

// NewTagStore builds a TypedStore for annotated tag objects.
func NewTagStore(s *Store) *TypedStore[*object.Tag] {
	return NewTypedStore(s, Codec[*object.Tag]{
		Type:   gitcore.TagObject,
		Decode: object.DecodeTag,
		Encode: func(t *object.Tag, w io.Writer) error { return t.Encode(w) },
	})
}
