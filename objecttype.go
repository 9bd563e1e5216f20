// Package gitcore implements a Git-compatible, content-addressed object
// store: streaming ingest, delta compression, and pack-file packaging.
//
// Porcelain (add/commit/status/checkout/merge/rebase/...), working
// directory materialization, ref-name parsing and reflog text format,
// network transports, and CLI surfaces are out of scope; this package only
// specifies the contracts the core exposes to those collaborators.
package gitcore

import "errors"

// ObjectType identifies the kind of a Git object. On the wire (pack format)
// these map to the small integers Git itself uses.
type ObjectType int8

const (
	// InvalidObject is the zero value; never a valid stored object.
	InvalidObject ObjectType = 0
	// CommitObject is a commit.
	CommitObject ObjectType = 1
	// TreeObject is a tree.
	TreeObject ObjectType = 2
	// BlobObject is a blob.
	BlobObject ObjectType = 3
	// TagObject is an annotated tag.
	TagObject ObjectType = 4
	// OFSDeltaObject is a delta with an offset back-reference (5 is
	// reserved by Git for future expansion).
	OFSDeltaObject ObjectType = 6
	// REFDeltaObject is a delta with a base-id back-reference.
	REFDeltaObject ObjectType = 7

	// AnyObject matches any of the above; used by callers that don't care.
	AnyObject ObjectType = -127
)

// ErrInvalidType is returned by ParseObjectType for an unrecognized word.
var ErrInvalidType = errors.New("gitcore: invalid object type")

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case OFSDeltaObject:
		return "ofs-delta"
	case REFDeltaObject:
		return "ref-delta"
	case AnyObject:
		return "any"
	default:
		return "unknown"
	}
}

// Bytes returns the ASCII wire representation of t, as used in the
// "<type> <size>\0" object header.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// Valid reports whether t is one of the four storable object types.
func (t ObjectType) Valid() bool {
	switch t {
	case CommitObject, TreeObject, BlobObject, TagObject:
		return true
	default:
		return false
	}
}

// IsDelta reports whether t represents a delta entry in a pack stream.
func (t ObjectType) IsDelta() bool {
	return t == REFDeltaObject || t == OFSDeltaObject
}

// ParseObjectType parses the textual object-type word used in object
// headers and pack metadata.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "commit":
		return CommitObject, nil
	case "tree":
		return TreeObject, nil
	case "blob":
		return BlobObject, nil
	case "tag":
		return TagObject, nil
	case "ofs-delta":
		return OFSDeltaObject, nil
	case "ref-delta":
		return REFDeltaObject, nil
	default:
		return InvalidObject, ErrInvalidType
	}
}
