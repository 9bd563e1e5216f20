package delta

import (
	"bufio"
	"fmt"
	"io"

	"github.com/statewalker/gitcore"
)

// Apply streams the result of applying instr (a delta instruction stream,
// as produced by Encode) against base to dst. base must support random
// access (io.ReaderAt) since copy instructions can jump backward as well
// as forward; dst only needs to be written once, in order, so the result
// itself can stream straight into a pack or object store write.
//
// Grounded on patch_delta.go's patchDeltaWriter: same copy/insert command
// parsing, same "size == 0 means maxCopySize" decode rule, but built
// around io.ReaderAt directly rather than a *bytes.Reader-backed
// SectionReader so it composes with any base source (a pack's own
// decompressed stream included).
func Apply(base io.ReaderAt, baseSize int64, instr io.Reader, dst io.Writer) error {
	br := bufio.NewReaderSize(instr, 1024)

	srcSz, err := readVarintFromReader(br)
	if err != nil {
		return err
	}
	if int64(srcSz) != baseSize {
		return fmt.Errorf("%w: delta base size %d does not match provided base size %d", ErrInvalidDelta, srcSz, baseSize)
	}

	targetSz, err := readVarintFromReader(br)
	if err != nil {
		return err
	}
	remaining := targetSz

	for remaining > 0 {
		cmd, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return ErrInvalidDelta
			}
			return err
		}

		switch {
		case isCopy(cmd):
			offset, size, err := readCopyArgs(cmd, br)
			if err != nil {
				return err
			}
			if uint64(size) > remaining || overflows(offset, size) || uint64(offset+size) > srcSz {
				return ErrInvalidDelta
			}
			if err := copyFromBase(dst, base, int64(offset), int64(size)); err != nil {
				return err
			}
			remaining -= uint64(size)

		case isInsert(cmd):
			size := int(cmd)
			if uint64(size) > remaining {
				return ErrInvalidDelta
			}
			if _, err := io.CopyN(dst, br, int64(size)); err != nil {
				return fmt.Errorf("%w: truncated insert literal: %v", ErrInvalidDelta, err)
			}
			remaining -= uint64(size)

		default:
			return ErrBadCommand
		}
	}

	return nil
}

func readCopyArgs(cmd byte, br io.ByteReader) (offset, size int, err error) {
	for _, ob := range offsetBits {
		if cmd&ob.mask != 0 {
			b, err := br.ReadByte()
			if err != nil {
				return 0, 0, ErrInvalidDelta
			}
			offset |= int(b) << ob.shift
		}
	}
	for _, sb := range sizeBits {
		if cmd&sb.mask != 0 {
			b, err := br.ReadByte()
			if err != nil {
				return 0, 0, ErrInvalidDelta
			}
			size |= int(b) << sb.shift
		}
	}
	if size == 0 {
		size = maxCopySize
	}
	return offset, size, nil
}

func copyFromBase(dst io.Writer, base io.ReaderAt, offset, size int64) error {
	buf := make([]byte, size)
	if _, err := base.ReadAt(buf, offset); err != nil && err != io.EOF {
		return fmt.Errorf("%w: reading base at offset %d: %v", gitcore.ErrCorruptObject, offset, err)
	}
	_, err := dst.Write(buf)
	return err
}

func overflows(offset, size int) bool {
	return offset+size < offset
}

func readVarintFromReader(br *bufio.Reader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, ErrInvalidDelta
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift > 63 {
			return 0, ErrInvalidDelta
		}
	}
}
