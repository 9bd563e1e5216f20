package pack

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"github.com/statewalker/gitcore"
	githash "github.com/statewalker/gitcore/hash"
)

// Scanner provides sequential, forward-only access to a packfile's object
// entries: read the header once, then repeatedly call Next to advance to
// an entry and Read to pull its inflated bytes, mirroring archive/tar's
// Reader/Next/Read shape. Delta entries are *not* expanded here — Size,
// Type and the base reference are reported as-is; resolving delta chains
// against their bases is Parser's job.
type Scanner struct {
	r        *countingReader
	packHash hash.Hash // sha1 over every byte except the trailer itself

	header Header
	index  int

	inflater *githash.Inflater
	entryCRC hash.Hash32
	curEntry *EntryHeader

	checksum gitcore.Hash
	finished bool
}

// NewScanner reads and validates the 12-byte pack header from r and
// returns a Scanner positioned at the first object entry.
func NewScanner(r io.Reader) (*Scanner, error) {
	packHash := githash.SHA1()
	cr := newCountingReader(r)
	cr.sink = packHash

	s := &Scanner{r: cr, packHash: packHash}
	if err := s.readHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scanner) readHeader() error {
	var sig [4]byte
	if err := s.r.readFull(sig[:]); err != nil {
		return fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
	}
	if !bytes.Equal(sig[:], Signature[:]) {
		return fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, ErrBadSignature)
	}

	var buf [4]byte
	if err := s.r.readFull(buf[:]); err != nil {
		return fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
	}
	version := binary.BigEndian.Uint32(buf[:])
	if version != SupportedVersion {
		return fmt.Errorf("%w: %w: %d", gitcore.ErrCorruptPack, ErrUnsupportedVersion, version)
	}

	if err := s.r.readFull(buf[:]); err != nil {
		return fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
	}
	s.header = Header{Version: version, ObjectCount: binary.BigEndian.Uint32(buf[:])}
	return nil
}

// Header returns the packfile's parsed header.
func (s *Scanner) Header() Header { return s.header }

// Checksum returns the pack's trailer checksum. Valid only after Next has
// returned io.EOF.
func (s *Scanner) Checksum() gitcore.Hash { return s.checksum }

// Next advances to the next object entry, discarding any unread remainder
// of the previous one. It returns io.EOF once every declared object has
// been scanned and the trailer checksum has been verified.
func (s *Scanner) Next() (*EntryHeader, error) {
	if s.inflater != nil {
		if _, err := io.Copy(io.Discard, s); err != nil {
			return nil, err
		}
	}

	if s.index >= int(s.header.ObjectCount) {
		return nil, s.readTrailer()
	}

	offset := s.r.offset
	typ, size, baseOffset, baseHash, err := s.readEntryHeader(offset)
	if err != nil {
		return nil, err
	}
	contentOffset := s.r.offset

	crc := githash.CRC32()
	s.r.sink = io.MultiWriter(s.packHash, crc)

	inf, err := s.r.newInflater()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
	}

	eh := &EntryHeader{
		Index:         s.index,
		Offset:        offset,
		ContentOffset: contentOffset,
		Type:          typ,
		Size:          size,
		BaseOffset:    baseOffset,
		BaseHash:      baseHash,
	}

	s.inflater = inf
	s.entryCRC = crc
	s.curEntry = eh
	s.index++

	return eh, nil
}

// Read reads the currently open entry's inflated bytes. It returns io.EOF
// once the entry's zlib stream ends, at which point the entry's CRC32 has
// been finalized.
func (s *Scanner) Read(p []byte) (int, error) {
	if s.inflater == nil {
		return 0, io.EOF
	}
	n, err := s.inflater.Read(p)
	if err == io.EOF {
		s.inflater.Close()
		s.curEntry.CRC32 = s.entryCRC.Sum32()
		s.inflater = nil
		s.r.sink = s.packHash
	}
	return n, err
}

func (s *Scanner) readTrailer() error {
	if s.finished {
		return io.EOF
	}
	expected := s.packHash.Sum(nil)
	s.r.sink = nil

	var trailer [gitcore.Size]byte
	if err := s.r.readFull(trailer[:]); err != nil {
		return fmt.Errorf("%w: %w: %w", gitcore.ErrCorruptPack, ErrTruncated, err)
	}
	if !bytes.Equal(trailer[:], expected) {
		return fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, ErrChecksumMismatch)
	}

	h, _ := gitcore.FromBytes(trailer[:])
	s.checksum = h
	s.finished = true
	return io.EOF
}

// readEntryHeader parses one entry's type+size varint and, for delta
// types, its base reference, consuming bytes one at a time from s.r.
func (s *Scanner) readEntryHeader(offset int64) (typ gitcore.ObjectType, size int64, baseOffset int64, baseHash gitcore.Hash, err error) {
	var hdr []byte
	for {
		b, rerr := s.r.ReadByte()
		if rerr != nil {
			return 0, 0, 0, gitcore.Hash{}, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, rerr)
		}
		hdr = append(hdr, b)
		if b&0x80 == 0 {
			break
		}
	}
	t, sz, n := githash.DecodeTypeSize(hdr)
	if n != len(hdr) {
		return 0, 0, 0, gitcore.Hash{}, fmt.Errorf("%w: truncated object header", gitcore.ErrCorruptPack)
	}
	typ = gitcore.ObjectType(t)
	size = int64(sz)

	switch typ {
	case gitcore.OFSDeltaObject:
		var obuf []byte
		for {
			b, rerr := s.r.ReadByte()
			if rerr != nil {
				return 0, 0, 0, gitcore.Hash{}, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, rerr)
			}
			obuf = append(obuf, b)
			if b&0x80 == 0 {
				break
			}
		}
		rel, on := githash.DecodeOffset(obuf)
		if on != len(obuf) {
			return 0, 0, 0, gitcore.Hash{}, fmt.Errorf("%w: truncated ofs-delta base", gitcore.ErrCorruptPack)
		}
		baseOffset = offset - int64(rel)
		if baseOffset < 0 {
			return 0, 0, 0, gitcore.Hash{}, fmt.Errorf("%w: ofs-delta base before start of pack", gitcore.ErrCorruptPack)
		}
	case gitcore.REFDeltaObject:
		var h [gitcore.Size]byte
		if err := s.r.readFull(h[:]); err != nil {
			return 0, 0, 0, gitcore.Hash{}, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
		}
		baseHash, _ = gitcore.FromBytes(h[:])
	default:
		if !typ.Valid() {
			return 0, 0, 0, gitcore.Hash{}, fmt.Errorf("%w: invalid object type tag %d", gitcore.ErrCorruptPack, t)
		}
	}

	return typ, size, baseOffset, baseHash, nil
}

// ReadEntryAt parses a single entry header at offset within a seekable
// pack source and returns a reader over its inflated content, without any
// of Scanner's sequential bookkeeping (object count, trailer, running
// CRC). Used by packstore for random-access reads against an already
//-indexed pack.
func ReadEntryAt(r io.ReaderAt, offset int64) (*EntryHeader, io.ReadCloser, error) {
	sr := io.NewSectionReader(r, offset, 1<<62-offset)
	br := bufio.NewReader(sr)

	var hdr []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
		}
		hdr = append(hdr, b)
		if b&0x80 == 0 {
			break
		}
	}
	t, sz, n := githash.DecodeTypeSize(hdr)
	if n != len(hdr) {
		return nil, nil, fmt.Errorf("%w: truncated object header", gitcore.ErrCorruptPack)
	}
	typ := gitcore.ObjectType(t)

	eh := &EntryHeader{Offset: offset, Type: typ, Size: int64(sz)}

	switch typ {
	case gitcore.OFSDeltaObject:
		var obuf []byte
		for {
			b, err := br.ReadByte()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
			}
			obuf = append(obuf, b)
			if b&0x80 == 0 {
				break
			}
		}
		rel, on := githash.DecodeOffset(obuf)
		if on != len(obuf) {
			return nil, nil, fmt.Errorf("%w: truncated ofs-delta base", gitcore.ErrCorruptPack)
		}
		eh.BaseOffset = offset - int64(rel)
	case gitcore.REFDeltaObject:
		var h [gitcore.Size]byte
		if _, err := io.ReadFull(br, h[:]); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
		}
		eh.BaseHash, _ = gitcore.FromBytes(h[:])
	default:
		if !typ.Valid() {
			return nil, nil, fmt.Errorf("%w: invalid object type tag %d", gitcore.ErrCorruptPack, t)
		}
	}

	eh.ContentOffset = offset + int64(len(hdr))

	inf, err := githash.NewInflater(br)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", gitcore.ErrCorruptPack, err)
	}
	return eh, inf, nil
}
