// Package delta implements the delta engine (C7): the copy/insert
// instruction codec Git pack entries use to store one object as a patch
// against another, streaming application of that patch, content-defined
// chunk matching to generate new deltas, and chain bookkeeping (depth,
// cycles, cost) shared between the GC deltifier and the pack parser.
package delta

import "errors"

// ErrInvalidDelta marks a truncated or structurally malformed instruction
// stream (bad varint, copy past either buffer's end).
var ErrInvalidDelta = errors.New("delta: invalid delta stream")

// ErrBadCommand marks an instruction byte that is neither a copy nor an
// insert opcode (0x00, reserved by the format).
var ErrBadCommand = errors.New("delta: bad instruction byte")

// maxCopySize is the largest single copy instruction can address (a zero
// size nibble means "the max", per patch_delta.go's decodeSize).
const maxCopySize = 0x10000

// maxInsertSize is the largest run of literal bytes one insert
// instruction carries; longer runs are split into multiple instructions.
const maxInsertSize = 127

// copyFlag is set in an instruction's first byte to mark a copy op; a
// clear bit with a non-zero byte marks an insert of that many literal
// bytes (the byte value *is* the length). Zero is reserved.
const copyFlag = 0x80

var offsetBits = [4]struct {
	mask  byte
	shift uint
}{
	{0x01, 0}, {0x02, 8}, {0x04, 16}, {0x08, 24},
}

var sizeBits = [3]struct {
	mask  byte
	shift uint
}{
	{0x10, 0}, {0x20, 8}, {0x40, 16},
}

func isCopy(cmd byte) bool   { return cmd&copyFlag != 0 }
func isInsert(cmd byte) bool { return cmd&copyFlag == 0 && cmd != 0 }

// encodeVarint writes size as Git's delta-header varint: 7 bits per byte,
// least-significant first, high bit set on every byte but the last.
func encodeVarint(size uint64) []byte {
	var out []byte
	for {
		b := byte(size & 0x7f)
		size >>= 7
		if size == 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// decodeVarint reads a delta-header varint, returning the value and the
// number of bytes consumed.
func decodeVarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, b := range buf {
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
		if shift > 63 {
			return 0, 0, ErrInvalidDelta
		}
	}
	return 0, 0, ErrInvalidDelta
}
