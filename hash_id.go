package gitcore

import (
	"bytes"
	"encoding/hex"
	"sort"
)

// Size is the length in bytes of a SHA-1 digest.
const Size = 20

// HexSize is the length of a SHA-1 digest in lowercase hex characters.
const HexSize = Size * 2

// Hash is the 40-character-hex SHA-1 object id described in spec §3. It is
// a value type: comparisons, map keys, and equality all work by value.
type Hash [Size]byte

// ZeroHash is the Hash zero value; used as a sentinel for "no object" (e.g.
// the parent of a root commit, or an unborn ref).
var ZeroHash Hash

// NewHash parses a 40-character hex string into a Hash. Invalid input
// yields the zero Hash, matching go-git's permissive NewHash convention;
// callers that need to distinguish invalid input from the zero hash should
// use FromHex instead.
func NewHash(s string) Hash {
	h, _ := FromHex(s)
	return h
}

// FromHex parses a hex string into a Hash, reporting whether it was valid
// (exactly HexSize hex characters).
func FromHex(s string) (Hash, bool) {
	var h Hash
	if len(s) != HexSize {
		return h, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// FromBytes builds a Hash from a raw 20-byte slice.
func FromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != Size {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// IsZero reports whether h is the zero Hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the lowercase hex representation of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the raw 20-byte digest.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Compare orders h against a raw byte slice the way bytes.Compare does.
func (h Hash) Compare(b []byte) int {
	return bytes.Compare(h[:], b)
}

// HasPrefix reports whether h's raw bytes start with prefix.
func (h Hash) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(h[:], prefix)
}

// IsHash reports whether s looks like a valid hex object id.
func IsHash(s string) bool {
	if len(s) != HexSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashesSort sorts a slice of Hashes in increasing byte order.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

// HashSlice attaches sort.Interface to []Hash.
type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return p[i].Compare(p[j][:]) < 0 }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
