// Package hash provides the hashing, checksum, and varint codecs that the
// rest of gitcore builds object identity and pack framing on top of.
package hash

import (
	"crypto/sha1"
	"hash"

	"github.com/pjbgf/sha1cd"
)

// collisionDetection controls whether SHA1 returns a collision-detecting
// hasher (the default, matching go-git) or the plain stdlib implementation.
var collisionDetection = true

// UseCollisionDetection toggles the SHA-1 backend returned by SHA1. It is
// exposed for callers who need the cheaper stdlib implementation (e.g. when
// hashing huge volumes of already-trusted content); the default is the
// collision-detecting backend go-git itself ships.
func UseCollisionDetection(enabled bool) {
	collisionDetection = enabled
}

// SHA1 returns a new incremental SHA-1 hasher. By default it is backed by
// sha1cd, which behaves exactly like crypto/sha1 except that it detects the
// chosen-prefix collisions used in the SHAttered/SHA-mbles attacks; Git
// itself now defaults to this implementation.
func SHA1() hash.Hash {
	if collisionDetection {
		return sha1cd.New()
	}
	return sha1.New()
}
