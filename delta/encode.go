package delta

// OpKind distinguishes a delta instruction's two forms.
type OpKind int

const (
	// OpCopy copies Size bytes from base starting at Offset.
	OpCopy OpKind = iota
	// OpInsert carries Size literal bytes to emit, found in Literal.
	OpInsert
)

// Op is one delta instruction.
type Op struct {
	Kind    OpKind
	Offset  int    // OpCopy only
	Size    int    // both
	Literal []byte // OpInsert only
}

// Encode serializes baseSize, targetSize, and ops into Git's delta
// instruction stream: a pack ref-delta/ofs-delta entry's payload (minus
// the base reference itself, which pack framing carries separately).
// Grounded on diff_delta.go's DiffDelta: copy ops emit only the offset/
// size bytes that are non-zero (bitmask prefix), insert runs longer than
// 127 bytes are split across multiple instructions.
func Encode(baseSize, targetSize int64, ops []Op) []byte {
	out := encodeVarint(uint64(baseSize))
	out = append(out, encodeVarint(uint64(targetSize))...)

	for _, op := range ops {
		switch op.Kind {
		case OpCopy:
			out = append(out, encodeCopy(op.Offset, op.Size)...)
		case OpInsert:
			out = append(out, encodeInsert(op.Literal)...)
		}
	}
	return out
}

func encodeCopy(offset, size int) []byte {
	// A zero size nibble means "maxCopySize" on decode, so a copy that is
	// exactly maxCopySize can omit its size bytes entirely; anything else
	// must never collide with that sentinel.
	cmd := byte(copyFlag)
	var rest []byte

	for _, ob := range offsetBits {
		shifted := byte((offset >> ob.shift) & 0xff)
		if shifted != 0 {
			rest = append(rest, shifted)
			cmd |= ob.mask
		}
	}

	encodeSize := size
	if size == maxCopySize {
		encodeSize = 0 // rely on decode's zero-means-max rule
	}
	for _, sb := range sizeBits {
		shifted := byte((encodeSize >> sb.shift) & 0xff)
		if shifted != 0 {
			rest = append(rest, shifted)
			cmd |= sb.mask
		}
	}

	return append([]byte{cmd}, rest...)
}

func encodeInsert(literal []byte) []byte {
	var out []byte
	for len(literal) > maxInsertSize {
		out = append(out, byte(maxInsertSize))
		out = append(out, literal[:maxInsertSize]...)
		literal = literal[maxInsertSize:]
	}
	out = append(out, byte(len(literal)))
	out = append(out, literal...)
	return out
}

// Decode parses a full delta instruction stream into its base/target sizes
// and instruction list. Primarily useful for inspection and testing; Apply
// performs the same parse without materializing every Op, so it can
// stream against a base that doesn't fit in memory.
func Decode(stream []byte) (baseSize, targetSize int64, ops []Op, err error) {
	bs, n, err := decodeVarint(stream)
	if err != nil {
		return 0, 0, nil, err
	}
	stream = stream[n:]

	ts, n, err := decodeVarint(stream)
	if err != nil {
		return 0, 0, nil, err
	}
	stream = stream[n:]

	for len(stream) > 0 {
		cmd := stream[0]
		stream = stream[1:]

		switch {
		case isCopy(cmd):
			var offset, size int
			for _, ob := range offsetBits {
				if cmd&ob.mask != 0 {
					if len(stream) == 0 {
						return 0, 0, nil, ErrInvalidDelta
					}
					offset |= int(stream[0]) << ob.shift
					stream = stream[1:]
				}
			}
			for _, sb := range sizeBits {
				if cmd&sb.mask != 0 {
					if len(stream) == 0 {
						return 0, 0, nil, ErrInvalidDelta
					}
					size |= int(stream[0]) << sb.shift
					stream = stream[1:]
				}
			}
			if size == 0 {
				size = maxCopySize
			}
			ops = append(ops, Op{Kind: OpCopy, Offset: offset, Size: size})

		case isInsert(cmd):
			size := int(cmd)
			if len(stream) < size {
				return 0, 0, nil, ErrInvalidDelta
			}
			lit := make([]byte, size)
			copy(lit, stream[:size])
			stream = stream[size:]
			ops = append(ops, Op{Kind: OpInsert, Size: size, Literal: lit})

		default:
			return 0, 0, nil, ErrBadCommand
		}
	}

	return int64(bs), int64(ts), ops, nil
}
