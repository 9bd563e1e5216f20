package gc

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/pack"
	"github.com/statewalker/gitcore/pack/idx"
)

// RepackResult summarizes one repack/deltify pass.
type RepackResult struct {
	ObjectCount int
	DeltaCount  int
	PackName    string // hex pack checksum, the "<sha>" in pack-<sha>.pack
}

// PackDestination is where a Repacker writes the new pack and its
// companion index (spec §6's external interface: "pack-<sha>.pack" and
// "pack-<sha>.idx" written side by side).
type PackDestination interface {
	CreatePack(ctx context.Context, name string) (io.WriteCloser, error)
	CreateIndex(ctx context.Context, name string) (io.WriteCloser, error)
}

// Repacker rewrites a set of reachable object ids into a new pack.
type Repacker interface {
	Repack(ctx context.Context, ids []gitcore.Hash) (RepackResult, error)
}

// DefaultRepacker wires pack.Encode and pack/idx.Write together: it reads
// objects through Source, writes one new pack+index pair through Dest, and
// reports how many objects were deltified (spec §4.10 steps 5/6, grounded
// on the same Encode used by any caller packaging objects for a transport
// — repack is just "encode everything reachable into one pack").
type DefaultRepacker struct {
	Source pack.ObjectSource
	Dest   PackDestination
	Opts   pack.EncodeOptions
}

// NewDefaultRepacker returns a DefaultRepacker. opts.UseDeltas is forced on
// and opts.Window defaults to DefaultDeltaCandidateWindow if the caller
// left it zero.
func NewDefaultRepacker(source pack.ObjectSource, dest PackDestination, opts pack.EncodeOptions) *DefaultRepacker {
	opts.UseDeltas = true
	if opts.Window <= 0 {
		opts.Window = DefaultDeltaCandidateWindow
	}
	return &DefaultRepacker{Source: source, Dest: dest, Opts: opts}
}

// Repack encodes ids into a fresh pack and its companion v2 index, written
// through Dest under the pack's own checksum as its filename stem. The
// pack's checksum isn't known until encoding finishes, so Encode writes to
// an in-memory buffer first (GC is an offline, whole-repository operation,
// not a streaming one) and Dest only sees the final name.
func (r *DefaultRepacker) Repack(ctx context.Context, ids []gitcore.Hash) (RepackResult, error) {
	gitcore.HashesSort(ids) // stable, reproducible pack contents

	var buf bytes.Buffer
	entries, checksum, stats, err := pack.Encode(ctx, &buf, r.Source, ids, r.Opts)
	if err != nil {
		return RepackResult{}, fmt.Errorf("gc: encoding repack: %w", err)
	}

	name := checksum.String()

	pw, err := r.Dest.CreatePack(ctx, name)
	if err != nil {
		return RepackResult{}, err
	}
	if _, err := io.Copy(pw, &buf); err != nil {
		pw.Close()
		return RepackResult{}, err
	}
	if err := pw.Close(); err != nil {
		return RepackResult{}, err
	}

	idxEntries := make([]idx.Entry, len(entries))
	for i, e := range entries {
		idxEntries[i] = idx.Entry{Hash: e.Hash, Offset: e.Offset, CRC32: e.CRC32}
	}

	iw, err := r.Dest.CreateIndex(ctx, name)
	if err != nil {
		return RepackResult{}, err
	}
	if err := idx.Write(iw, checksum, idxEntries); err != nil {
		iw.Close()
		return RepackResult{}, fmt.Errorf("gc: writing pack index: %w", err)
	}
	if err := iw.Close(); err != nil {
		return RepackResult{}, err
	}

	return RepackResult{ObjectCount: stats.Objects, DeltaCount: stats.Deltas, PackName: name}, nil
}
