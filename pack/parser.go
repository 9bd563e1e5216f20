package pack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/delta"
)

// ObjectSink is the subset of objstore.Store's contract the Parser needs
// to persist resolved objects and fall back to for ref-deltas whose base
// lies outside the pack being parsed. Declared locally (rather than
// importing objstore) so pack has no dependency on the store layer it's
// itself parsed into; *objstore.Store satisfies this structurally.
type ObjectSink interface {
	StoreWithSize(ctx context.Context, typ gitcore.ObjectType, size int64, r io.Reader) (gitcore.Hash, error)
	LoadHeader(ctx context.Context, id gitcore.Hash) (gitcore.Header, error)
	Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error)
}

// ParsedObject describes one object Parse wrote to its sink.
type ParsedObject struct {
	Hash   gitcore.Hash
	Type   gitcore.ObjectType
	Size   int64
	Offset int64
	CRC32  uint32
}

// Result is everything Parse learns about a pack stream: every object it
// wrote to the sink (enough to build a pack index from) and the pack's own
// trailer checksum.
type Result struct {
	Objects  []ParsedObject
	Checksum gitcore.Hash
}

// pending is an unresolved delta entry queued during pass 1: its header
// (offset, base reference) and its already-inflated instruction stream.
type pending struct {
	eh      EntryHeader
	payload []byte
}

type resolvedEntry struct {
	hash    gitcore.Hash
	typ     gitcore.ObjectType
	content []byte
}

// Parse performs the two-pass parse spec §4.8 describes: pass 1 scans the
// pack sequentially, storing every non-delta object directly into sink and
// buffering delta entries (their instruction stream plus base reference)
// into a pending queue; pass 2 repeatedly resolves queued deltas against
// already-resolved entries (by offset for ofs-delta, by id for ref-delta)
// or, for a ref-delta whose base isn't in this pack, against sink itself.
// Pass 2 repeats until either the queue empties or a full sweep makes no
// progress, at which point any remainder means a genuinely missing base.
func Parse(ctx context.Context, r io.Reader, sink ObjectSink) (*Result, error) {
	sc, err := NewScanner(r)
	if err != nil {
		return nil, err
	}

	resolvedByOffset := make(map[int64]resolvedEntry)
	resolvedByHash := make(map[gitcore.Hash]resolvedEntry)
	var objects []ParsedObject
	var queue []pending

	for {
		eh, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if eh.Type.IsDelta() {
			buf, err := io.ReadAll(sc)
			if err != nil {
				return nil, fmt.Errorf("%w: reading delta entry at offset %d: %v", gitcore.ErrCorruptPack, eh.Offset, err)
			}
			queue = append(queue, pending{eh: *eh, payload: buf})
			continue
		}

		content, err := io.ReadAll(sc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading object at offset %d: %v", gitcore.ErrCorruptPack, eh.Offset, err)
		}
		id, err := sink.StoreWithSize(ctx, eh.Type, eh.Size, bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		re := resolvedEntry{hash: id, typ: eh.Type, content: content}
		resolvedByOffset[eh.Offset] = re
		resolvedByHash[id] = re
		objects = append(objects, ParsedObject{Hash: id, Type: eh.Type, Size: eh.Size, Offset: eh.Offset, CRC32: eh.CRC32})
	}

	for progress := true; len(queue) > 0 && progress; {
		progress = false
		next := queue[:0:0]
		for _, p := range queue {
			base, ok, err := resolveBase(ctx, sink, p.eh, resolvedByOffset, resolvedByHash)
			if err != nil {
				return nil, err
			}
			if !ok {
				next = append(next, p)
				continue
			}

			var dst bytes.Buffer
			if err := delta.Apply(bytes.NewReader(base.content), int64(len(base.content)), bytes.NewReader(p.payload), &dst); err != nil {
				return nil, fmt.Errorf("%w: applying delta at offset %d: %v", gitcore.ErrCorruptPack, p.eh.Offset, err)
			}

			id, err := sink.StoreWithSize(ctx, base.typ, int64(dst.Len()), bytes.NewReader(dst.Bytes()))
			if err != nil {
				return nil, err
			}
			re := resolvedEntry{hash: id, typ: base.typ, content: dst.Bytes()}
			resolvedByOffset[p.eh.Offset] = re
			resolvedByHash[id] = re
			objects = append(objects, ParsedObject{Hash: id, Type: base.typ, Size: int64(dst.Len()), Offset: p.eh.Offset, CRC32: p.eh.CRC32})
			progress = true
		}
		queue = next
	}

	if len(queue) > 0 {
		return nil, fmt.Errorf("%w: %w: %d delta entries never resolved a base", gitcore.ErrCorruptPack, ErrBaseNotFound, len(queue))
	}

	return &Result{Objects: objects, Checksum: sc.Checksum()}, nil
}

// resolveBase finds eh's base object, either among already-resolved pack
// entries or, for a ref-delta whose base lies outside this pack, by
// loading it from sink directly.
func resolveBase(ctx context.Context, sink ObjectSink, eh EntryHeader, byOffset map[int64]resolvedEntry, byHash map[gitcore.Hash]resolvedEntry) (resolvedEntry, bool, error) {
	switch eh.Type {
	case gitcore.OFSDeltaObject:
		base, ok := byOffset[eh.BaseOffset]
		return base, ok, nil

	case gitcore.REFDeltaObject:
		if base, ok := byHash[eh.BaseHash]; ok {
			return base, true, nil
		}
		hdr, err := sink.LoadHeader(ctx, eh.BaseHash)
		if err != nil {
			if errIsNotFound(err) {
				return resolvedEntry{}, false, nil
			}
			return resolvedEntry{}, false, err
		}
		rc, err := sink.Load(ctx, eh.BaseHash)
		if err != nil {
			return resolvedEntry{}, false, err
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return resolvedEntry{}, false, err
		}
		return resolvedEntry{hash: eh.BaseHash, typ: hdr.Type, content: content}, true, nil

	default:
		return resolvedEntry{}, false, nil
	}
}

func errIsNotFound(err error) bool {
	return errors.Is(err, gitcore.ErrNotFound)
}
