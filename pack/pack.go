// Package pack implements Git's packfile wire format: a header, a run of
// type-tagged, optionally delta-compressed object entries, and a trailing
// SHA-1 checksum over everything before it.
//
//	+------+---------+--------------+-----+--------------+----------+
//	| PACK | version | object count | ... | object entry | checksum |
//	+------+---------+--------------+-----+--------------+----------+
//
// See https://git-scm.com/docs/gitformat-pack for the upstream format.
package pack

import (
	"errors"

	"github.com/statewalker/gitcore"
)

// Signature is the 4-byte magic every packfile begins with.
var Signature = [4]byte{'P', 'A', 'C', 'K'}

// SupportedVersion is the only packfile version this package reads or
// writes.
const SupportedVersion = 2

// Errors returned while scanning or parsing a packfile. All are wrapped
// around gitcore.ErrCorruptPack so callers can test with errors.Is.
var (
	ErrBadSignature       = errors.New("pack: bad signature")
	ErrUnsupportedVersion = errors.New("pack: unsupported version")
	ErrTruncated          = errors.New("pack: truncated stream")
	ErrChecksumMismatch   = errors.New("pack: trailer checksum mismatch")
	ErrBaseNotFound       = errors.New("pack: delta base not found")
)

// Header is the packfile's 12-byte preamble.
type Header struct {
	Version     uint32
	ObjectCount uint32
}

// EntryHeader describes one object entry's framing within a pack stream.
// Offset and ContentOffset are byte offsets from the start of the pack
// (the "PACK" signature), useful for building a pack index or resolving
// ofs-deltas.
type EntryHeader struct {
	Index         int
	Offset        int64
	ContentOffset int64
	Type          gitcore.ObjectType // Blob/Tree/Commit/Tag/OFSDelta/REFDelta
	Size          int64              // inflated size
	BaseOffset    int64              // OFSDeltaObject: absolute offset of the base entry
	BaseHash      gitcore.Hash       // REFDeltaObject: id of the base object
	CRC32         uint32             // over the entry's compressed bytes; valid once its body has been fully read
}
