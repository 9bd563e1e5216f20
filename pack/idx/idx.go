// Package idx implements Git's pack index v2 format (spec §3/§4.8): a
// 256-entry fanout table over the first byte of each sorted object id,
// the sorted ids themselves, a parallel CRC32 table, a 4-byte offset table
// (with large offsets pushed out to an 8-byte overflow table), and a
// trailing pack checksum plus the index's own checksum.
//
// Grounded on plumbing/format/idxfile's writer.go (fanout bucket
// construction) and readerat.go (cached fanout table, binary search, the
// 4-byte/8-byte offset table split).
package idx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/statewalker/gitcore"
	githash "github.com/statewalker/gitcore/hash"
)

// Version is the only pack index version this package reads or writes.
const Version = 2

// Magic is the 4-byte signature a v2 index begins with.
var Magic = [4]byte{0xff, 't', 'O', 'c'}

// largeOffsetFlag marks a 4-byte offset-table slot whose real value lives
// in the 8-byte large-offset table instead.
const largeOffsetFlag = 0x80000000

// Errors returned while reading a pack index. All wrap gitcore.ErrCorruptPack.
var (
	ErrBadMagic         = errors.New("idx: bad magic")
	ErrUnsupportedVersion = errors.New("idx: unsupported version")
	ErrChecksumMismatch = errors.New("idx: trailing checksum mismatch")
	ErrTruncated        = errors.New("idx: truncated index")
)

// Entry is one object's index record: its id, the byte offset of its
// entry header within the pack, and the CRC32 of its compressed bytes.
type Entry struct {
	Hash   gitcore.Hash
	Offset int64
	CRC32  uint32
}

// Write emits a v2 pack index for entries (which need not be pre-sorted;
// Write sorts a copy) against packChecksum, the SHA-1 trailer of the pack
// these entries describe.
func Write(w io.Writer, packChecksum gitcore.Hash, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Hash.Compare(sorted[j].Hash[:]) < 0
	})

	h := githash.SHA1()
	bw := bufio.NewWriter(io.MultiWriter(w, h))

	if _, err := bw.Write(Magic[:]); err != nil {
		return err
	}
	if err := writeUint32(bw, Version); err != nil {
		return err
	}

	// Fanout table: fanout[i] = count of entries whose first hash byte <= i.
	var fanout [256]uint32
	for _, e := range sorted {
		fanout[e.Hash[0]]++
	}
	var running uint32
	for i := range fanout {
		running += fanout[i]
		fanout[i] = running
	}
	for _, v := range fanout {
		if err := writeUint32(bw, v); err != nil {
			return err
		}
	}

	for _, e := range sorted {
		if _, err := bw.Write(e.Hash[:]); err != nil {
			return err
		}
	}
	for _, e := range sorted {
		if err := writeUint32(bw, e.CRC32); err != nil {
			return err
		}
	}

	var large []int64
	for _, e := range sorted {
		if e.Offset < 0 {
			return fmt.Errorf("idx: negative offset for %s", e.Hash)
		}
		if e.Offset > 0x7fffffff {
			if err := writeUint32(bw, largeOffsetFlag|uint32(len(large))); err != nil {
				return err
			}
			large = append(large, e.Offset)
		} else {
			if err := writeUint32(bw, uint32(e.Offset)); err != nil {
				return err
			}
		}
	}
	for _, off := range large {
		if err := writeUint64(bw, uint64(off)); err != nil {
			return err
		}
	}

	if _, err := bw.Write(packChecksum[:]); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	sum := h.Sum(nil)
	_, err := w.Write(sum)
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// Reader is a parsed pack index, held fully in memory (index files are a
// small fraction of the pack they describe) with a cached fanout table for
// O(1) bucket lookup ahead of the binary search over that bucket's ids.
type Reader struct {
	data   []byte
	count  uint32
	fanout [256]uint32

	namesOff, crcOff, offsOff, largeOff, packSumOff, idxSumOff int
}

// Open parses a full pack index read from r.
func Open(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*Reader, error) {
	if len(data) < 4+4+256*4+2*gitcore.Size {
		return nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, ErrTruncated)
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, ErrBadMagic)
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != Version {
		return nil, fmt.Errorf("%w: %w: %d", gitcore.ErrCorruptPack, ErrUnsupportedVersion, version)
	}

	ix := &Reader{data: data}
	off := 8
	for i := 0; i < 256; i++ {
		ix.fanout[i] = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
	ix.count = ix.fanout[255]

	ix.namesOff = off
	off += int(ix.count) * gitcore.Size
	ix.crcOff = off
	off += int(ix.count) * 4
	ix.offsOff = off
	off += int(ix.count) * 4

	// Scan the 4-byte offset table once to learn how many large-offset
	// slots it references, so largeOff/packSumOff/idxSumOff can be fixed.
	largeCount := 0
	for i := 0; i < int(ix.count); i++ {
		v := binary.BigEndian.Uint32(data[ix.offsOff+i*4 : ix.offsOff+i*4+4])
		if v&largeOffsetFlag != 0 {
			idx := int(v &^ largeOffsetFlag)
			if idx+1 > largeCount {
				largeCount = idx + 1
			}
		}
	}

	ix.largeOff = off
	off += largeCount * 8
	ix.packSumOff = off
	off += gitcore.Size
	ix.idxSumOff = off
	off += gitcore.Size

	if off > len(data) {
		return nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, ErrTruncated)
	}

	h := githash.SHA1()
	h.Write(data[:ix.idxSumOff])
	expected := h.Sum(nil)
	if !bytes.Equal(expected, data[ix.idxSumOff:ix.idxSumOff+gitcore.Size]) {
		return nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, ErrChecksumMismatch)
	}

	return ix, nil
}

// Count returns the number of indexed objects.
func (ix *Reader) Count() int { return int(ix.count) }

// PackChecksum returns the indexed pack's own trailer SHA-1.
func (ix *Reader) PackChecksum() gitcore.Hash {
	var h gitcore.Hash
	copy(h[:], ix.data[ix.packSumOff:ix.packSumOff+gitcore.Size])
	return h
}

// IdxChecksum returns this index file's own trailing SHA-1.
func (ix *Reader) IdxChecksum() gitcore.Hash {
	var h gitcore.Hash
	copy(h[:], ix.data[ix.idxSumOff:ix.idxSumOff+gitcore.Size])
	return h
}

// HashAt returns the i'th object id in sorted order.
func (ix *Reader) HashAt(i int) gitcore.Hash {
	var h gitcore.Hash
	off := ix.namesOff + i*gitcore.Size
	copy(h[:], ix.data[off:off+gitcore.Size])
	return h
}

// CRC32At returns the i'th entry's CRC32.
func (ix *Reader) CRC32At(i int) uint32 {
	off := ix.crcOff + i*4
	return binary.BigEndian.Uint32(ix.data[off : off+4])
}

// OffsetAt returns the i'th entry's pack offset, resolving the large-offset
// table redirection when the 4-byte slot has its high bit set.
func (ix *Reader) OffsetAt(i int) int64 {
	off := ix.offsOff + i*4
	v := binary.BigEndian.Uint32(ix.data[off : off+4])
	if v&largeOffsetFlag == 0 {
		return int64(v)
	}
	largeIdx := int(v &^ largeOffsetFlag)
	loff := ix.largeOff + largeIdx*8
	return int64(binary.BigEndian.Uint64(ix.data[loff : loff+8]))
}

// Find looks up id via the fanout table followed by a binary search over
// its bucket, returning the entry's pack offset and CRC32.
func (ix *Reader) Find(id gitcore.Hash) (offset int64, crc32 uint32, ok bool) {
	var lo uint32
	b := id[0]
	if b > 0 {
		lo = ix.fanout[b-1]
	}
	hi := ix.fanout[b]

	i := sort.Search(int(hi-lo), func(i int) bool {
		return ix.HashAt(int(lo) + i).Compare(id[:]) >= 0
	})
	pos := int(lo) + i
	if pos >= int(hi) || ix.HashAt(pos) != id {
		return 0, 0, false
	}
	return ix.OffsetAt(pos), ix.CRC32At(pos), true
}

// Entries returns every indexed entry in sorted-id order.
func (ix *Reader) Entries() []Entry {
	out := make([]Entry, ix.count)
	for i := range out {
		out[i] = Entry{Hash: ix.HashAt(i), Offset: ix.OffsetAt(i), CRC32: ix.CRC32At(i)}
	}
	return out
}
