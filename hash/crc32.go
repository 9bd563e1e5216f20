package hash

import (
	"hash"
	"hash/crc32"
)

// CRC32 returns a new incremental IEEE CRC32 hasher, the polynomial Git's
// pack index format fixes for its per-object checksum table.
func CRC32() hash.Hash32 {
	return crc32.NewIEEE()
}
