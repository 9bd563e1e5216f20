package pack

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/delta"
	githash "github.com/statewalker/gitcore/hash"
)

// ObjectSource is the subset of objstore.Store's contract Encode needs to
// read the objects it's packaging. Declared locally for the same reason
// ObjectSink is: no dependency from pack onto the store layer.
type ObjectSource interface {
	LoadHeader(ctx context.Context, id gitcore.Hash) (gitcore.Header, error)
	Load(ctx context.Context, id gitcore.Hash) (io.ReadCloser, error)
}

// Entry is one object Encode wrote, in the shape a pack index needs:
// id, the byte offset of its entry header, and the CRC32 of its
// compressed bytes. Declared independently of pack/idx.Entry (same
// fields) so pack doesn't depend on the idx subpackage; callers building
// an index convert field-for-field.
type Entry struct {
	Hash   gitcore.Hash
	Offset int64
	CRC32  uint32
}

// EncodeOptions configures Encode's delta compression behavior.
type EncodeOptions struct {
	// UseDeltas enables ref-delta compression against a small in-flight
	// window of recently-written same-type objects (spec §4.7). Disabled
	// (the zero value) writes every object whole.
	UseDeltas bool
	// Window bounds how many recently written objects, all types counted
	// together, are kept as delta-base candidates (spec §6 gc.deltaCandidateWindow default 10).
	Window int
	// MinCopySize is delta.Compute's minimum match length (spec §6
	// pack.deltaMinCopySize default 4).
	MinCopySize int
	// Level is the zlib compression level (0 = zlib.DefaultCompression).
	Level int
	// ParallelDeflate enables compressing entry payloads across a worker
	// pool bounded by GOMAXPROCS (spec §4.8: "optional parallel deflate
	// workers"). Delta-base selection still happens sequentially (each
	// entry's candidate window depends on the ones before it); only the
	// CPU-bound compression step is parallelized.
	ParallelDeflate bool
	// Progress, if non-nil, receives one line per object written —
	// go-git's own Progress io.Writer convention (CloneOptions etc.),
	// carried here per SPEC_FULL §9's no-ambient-logger rule.
	Progress io.Writer
}

// Stats summarizes one Encode call.
type Stats struct {
	Objects int
	Deltas  int
}

// Encode writes a version-2 pack containing every object named by ids,
// read from src, to w. It returns the per-object Entry records (for
// building a companion pack index), the pack's own trailer checksum, and
// counts of how many objects were written whole vs. as deltas.
//
// Grounded on plumbing/format/packfile/encoder.go's structure: a 12-byte
// header, one type+size-varint-framed zlib entry per object, a trailing
// SHA-1 over everything written. Delta candidate selection here is a
// bounded recent-window scan (delta.SimilarSizeStrategy) rather than
// encoder.go's full topological sort + window search, which needs the
// whole object graph materialized up front; this is the same tradeoff
// Compute itself makes over DiffDelta (see delta/compute.go).
func Encode(ctx context.Context, w io.Writer, src ObjectSource, ids []gitcore.Hash, opts EncodeOptions) ([]Entry, gitcore.Hash, Stats, error) {
	if opts.Window <= 0 {
		opts.Window = 10
	}
	if opts.MinCopySize <= 0 {
		opts.MinCopySize = 4
	}

	h := githash.SHA1()
	bw := bufio.NewWriter(io.MultiWriter(w, h))

	if _, err := bw.Write(Signature[:]); err != nil {
		return nil, gitcore.Hash{}, Stats{}, err
	}
	if err := writeBEUint32(bw, SupportedVersion); err != nil {
		return nil, gitcore.Hash{}, Stats{}, err
	}
	if err := writeBEUint32(bw, uint32(len(ids))); err != nil {
		return nil, gitcore.Hash{}, Stats{}, err
	}

	strategy := delta.NewSimilarSizeStrategy(0.5, 2.0)
	chain := delta.NewChain(delta.DefaultMaxDepth, delta.DefaultMaxCostRatio)
	window := newCandidateWindow(opts.Window)

	// Pass 1 (sequential): decide, for each id in order, whether to store
	// it whole or as a delta against something already in the window.
	// This has to stay sequential — the candidate window and the delta
	// heuristics both depend on the objects written before the current
	// one — but it produces independent (type, payload) pairs that the
	// compression step below can then process out of order.
	prepared := make([]preparedEntry, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, gitcore.Hash{}, Stats{}, err
		}

		hdr, err := src.LoadHeader(ctx, id)
		if err != nil {
			return nil, gitcore.Hash{}, Stats{}, err
		}
		rc, err := src.Load(ctx, id)
		if err != nil {
			return nil, gitcore.Hash{}, Stats{}, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, gitcore.Hash{}, Stats{}, err
		}

		entryType := hdr.Type
		payload := content
		baseHash := gitcore.ZeroHash
		isDelta := false

		if opts.UseDeltas {
			for _, cand := range strategy.Candidates(delta.Target{Hash: id, Type: hdr.Type, Size: hdr.Size}) {
				baseContent, ok := window.content(cand.Hash)
				if !ok {
					continue
				}
				d := delta.Compute(baseContent, content, opts.MinCopySize)
				if chain.CheckCost(int64(len(d)), int64(len(content))) != nil {
					continue
				}
				if float64(len(d)) >= float64(len(baseContent))*0.9 {
					continue // spec §4.10 deltify threshold: delta must beat 0.9x base size
				}
				payload = d
				baseHash = cand.Hash
				entryType = gitcore.REFDeltaObject
				isDelta = true
				break
			}
		}

		prepared[i] = preparedEntry{id: id, srcType: hdr.Type, entryType: entryType, baseHash: baseHash, payload: payload, isDelta: isDelta}

		strategy.Add(delta.Candidate{Hash: id, Type: hdr.Type, Size: hdr.Size})
		window.add(id, content, opts.Window)
	}

	// Pass 2: compress every prepared entry's payload. Sequential by
	// default; with ParallelDeflate, farmed out across a worker pool
	// bounded by GOMAXPROCS, since each entry compresses independently of
	// the others once its payload is fixed.
	compressed := make([]compressedEntry, len(prepared))
	if opts.ParallelDeflate && len(prepared) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range prepared {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				buf, crc, err := deflatePayload(prepared[i].payload, opts.Level)
				if err != nil {
					return err
				}
				compressed[i] = compressedEntry{buf: buf, crc: crc}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, gitcore.Hash{}, Stats{}, err
		}
	} else {
		for i := range prepared {
			buf, crc, err := deflatePayload(prepared[i].payload, opts.Level)
			if err != nil {
				return nil, gitcore.Hash{}, Stats{}, err
			}
			compressed[i] = compressedEntry{buf: buf, crc: crc}
		}
	}

	// Pass 3 (sequential): frame and write each entry in original order,
	// now that its compressed bytes are already in hand.
	var entries []Entry
	var stats Stats
	offset := int64(12) // signature(4) + version(4) + count(4)

	for i, p := range prepared {
		n, err := writeFramedEntry(bw, p.entryType, int64(len(p.payload)), p.baseHash, compressed[i].buf)
		if err != nil {
			return nil, gitcore.Hash{}, Stats{}, err
		}

		entries = append(entries, Entry{Hash: p.id, Offset: offset, CRC32: compressed[i].crc})
		stats.Objects++
		if p.isDelta {
			stats.Deltas++
		}
		if opts.Progress != nil {
			fmt.Fprintf(opts.Progress, "pack: wrote %s (%s, %d bytes)\n", p.id, entryTypeLabel(p.srcType, p.isDelta), len(p.payload))
		}
		offset += n
	}

	if err := bw.Flush(); err != nil {
		return nil, gitcore.Hash{}, Stats{}, err
	}
	var checksum gitcore.Hash
	copy(checksum[:], h.Sum(nil))
	if _, err := w.Write(checksum[:]); err != nil {
		return nil, gitcore.Hash{}, Stats{}, err
	}

	return entries, checksum, stats, nil
}

func entryTypeLabel(t gitcore.ObjectType, isDelta bool) string {
	if isDelta {
		return "ref-delta"
	}
	return t.String()
}

// preparedEntry is one object's delta decision, made during Encode's
// sequential first pass: what to write (whole content, or a computed
// delta) and against what base, if any.
type preparedEntry struct {
	id        gitcore.Hash
	srcType   gitcore.ObjectType // the object's own type, for Progress labeling
	entryType gitcore.ObjectType // what actually goes on the wire: srcType or REFDeltaObject
	baseHash  gitcore.Hash
	payload   []byte
	isDelta   bool
}

// compressedEntry is one prepared entry's zlib output, computed
// independently of every other entry so it can be done in parallel.
type compressedEntry struct {
	buf []byte
	crc uint32
}

// deflatePayload zlib-compresses payload in isolation, returning the
// compressed bytes and their CRC32 — matching Scanner's own convention
// (see scanner.go's Next), which computes the per-entry CRC32 over the
// compressed body only, not the header or base reference.
func deflatePayload(payload []byte, level int) ([]byte, uint32, error) {
	var buf bytes.Buffer
	crc := githash.CRC32()
	def, err := githash.NewDeflater(io.MultiWriter(&buf, crc), level)
	if err != nil {
		return nil, 0, err
	}
	if _, err := def.Write(payload); err != nil {
		return nil, 0, err
	}
	if err := def.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), crc.Sum32(), nil
}

// writeFramedEntry writes one entry's type+size header, optional base-hash
// reference, and already-compressed body, returning the total bytes
// written (used to advance Encode's running pack offset).
func writeFramedEntry(w io.Writer, typ gitcore.ObjectType, size int64, baseHash gitcore.Hash, compressed []byte) (int64, error) {
	var n int64

	hdr := githash.EncodeTypeSize(byte(typ), uint64(size))
	if _, err := w.Write(hdr); err != nil {
		return 0, err
	}
	n += int64(len(hdr))

	if typ == gitcore.REFDeltaObject {
		if _, err := w.Write(baseHash[:]); err != nil {
			return 0, err
		}
		n += int64(len(baseHash))
	}

	if _, err := w.Write(compressed); err != nil {
		return 0, err
	}
	n += int64(len(compressed))

	return n, nil
}

func writeBEUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// candidateWindow keeps the last N objects' raw content available as
// delta bases, evicting the oldest once the window is full.
type candidateWindow struct {
	order []gitcore.Hash
	data  map[gitcore.Hash][]byte
}

func newCandidateWindow(size int) *candidateWindow {
	return &candidateWindow{data: make(map[gitcore.Hash][]byte, size)}
}

func (w *candidateWindow) content(id gitcore.Hash) ([]byte, bool) {
	b, ok := w.data[id]
	return b, ok
}

func (w *candidateWindow) add(id gitcore.Hash, content []byte, limit int) {
	w.order = append(w.order, id)
	w.data[id] = content
	for len(w.order) > limit {
		delete(w.data, w.order[0])
		w.order = w.order[1:]
	}
}
