package gc

import (
	"context"
	"sync"
	"time"

	"dario.cat/mergo"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/refstore"
)

// Default option values, spec §6.
const (
	DefaultPruneGraceSeconds    = 1209600 // 14 days
	DefaultRepackMinPacks       = 4
	DefaultDeltaCandidateWindow = 10
)

// Options configures one Controller.Run. Zero-valued fields are filled in
// from DefaultOptions by NewController via mergo (go-git's own config-merge
// dependency), so callers can pass a sparse struct.
type Options struct {
	PruneGraceSeconds    int64
	RepackMinPacks       int
	DeltaCandidateWindow int
}

// DefaultOptions mirrors spec §6's defaults.
var DefaultOptions = Options{
	PruneGraceSeconds:    DefaultPruneGraceSeconds,
	RepackMinPacks:       DefaultRepackMinPacks,
	DeltaCandidateWindow: DefaultDeltaCandidateWindow,
}

// Stats is GcController.GetStats()'s payload (named by spec §6, elaborated
// per SPEC_FULL §11): the previous run's step counters and duration.
type Stats struct {
	Enumerated int
	Reachable  int
	Pruned     int
	Repacked   int
	Deltified  int
	Duration   time.Duration
}

// RefLister is the subset of refstore.Refs the controller needs to
// snapshot the root set (spec §4.10 step 1).
type RefLister interface {
	List(ctx context.Context) ([]refstore.Entry, error)
	Resolve(ctx context.Context, name string) (refstore.Ref, error)
}

// Enumerator lists every currently stored object id (loose objects; packed
// objects are handled by repack/deltify rewriting whole packs, not by
// per-id enumeration, mirroring storage/filesystem's loose-vs-pack split).
type Enumerator interface {
	Keys(ctx context.Context, fn func(key string) error) error
}

// Deleter removes a loose object by id. Deleting an absent id is not an
// error (matches store.Store.Delete).
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// AccessTimeTracker reports when an object was last touched, for the
// prune grace window (spec §4.10 step 4). A tracker that has never
// recorded an id should return the zero time; Run treats a zero time (or
// a tracker error) as immediately eligible for pruning, matching an object
// that predates tracking.
type AccessTimeTracker interface {
	Touched(ctx context.Context, id gitcore.Hash) (time.Time, error)
}

// RepoLock guards the prune step (spec §5: "GC's prune step takes an
// exclusive repository lock; all other operations run concurrently").
type RepoLock interface {
	Lock()
	Unlock()
}

// InProcessLock is a RepoLock good for a single process; multi-process
// deployments supply their own (e.g. an flock-backed implementation) since
// the interface is just sync.Locker's shape.
type InProcessLock struct {
	mu sync.Mutex
}

func (l *InProcessLock) Lock()   { l.mu.Lock() }
func (l *InProcessLock) Unlock() { l.mu.Unlock() }

// Controller runs the six-step GC algorithm spec §4.10 defines.
type Controller struct {
	Refs      RefLister
	Objects   ObjectReader
	Enumerate Enumerator
	Delete    Deleter
	Access    AccessTimeTracker // nil disables grace-window tracking
	Lock      RepoLock
	Repack    Repacker // nil disables steps 5/6 (repack+deltify)
	PackCount func(ctx context.Context) (int, error)

	opts Options
	last Stats
	mu   sync.Mutex
}

// NewController builds a Controller, merging opts over DefaultOptions so a
// caller-supplied sparse Options struct still gets spec §6's defaults for
// whatever it left zero.
func NewController(refs RefLister, objects ObjectReader, enumerate Enumerator, del Deleter, access AccessTimeTracker, lock RepoLock, repack Repacker, packCount func(ctx context.Context) (int, error), opts Options) (*Controller, error) {
	merged := DefaultOptions
	if err := mergo.Merge(&merged, opts, mergo.WithOverride); err != nil {
		return nil, err
	}
	if lock == nil {
		lock = &InProcessLock{}
	}
	return &Controller{
		Refs: refs, Objects: objects, Enumerate: enumerate, Delete: del,
		Access: access, Lock: lock, Repack: repack, PackCount: packCount,
		opts: merged,
	}, nil
}

// Run executes spec §4.10's six steps: snapshot refs, enumerate all ids,
// compute reachability, prune unreachable loose objects past the grace
// window, and — when a Repacker is configured and the pack count reaches
// RepackMinPacks — repack and deltify reachable objects into a fresh pack.
func (c *Controller) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	// 1. snapshot refs
	roots, err := c.snapshotRoots(ctx)
	if err != nil {
		return Stats{}, err
	}

	// 2. enumerate all stored ids
	var all []gitcore.Hash
	if err := c.Enumerate.Keys(ctx, func(key string) error {
		if h, ok := gitcore.FromHex(key); ok {
			all = append(all, h)
		}
		return nil
	}); err != nil {
		return Stats{}, err
	}
	stats.Enumerated = len(all)

	// 3. reachability
	walker := NewWalker(c.Objects)
	reachable, err := walker.Walk(ctx, roots)
	if err != nil {
		return Stats{}, err
	}
	stats.Reachable = len(reachable)

	// 4. prune, under the repository lock
	c.Lock.Lock()
	now := time.Now()
	for _, h := range all {
		if _, ok := reachable[h]; ok {
			continue
		}
		if !c.pruneEligible(ctx, h, now) {
			continue
		}
		if err := c.Delete.Delete(ctx, h.String()); err == nil {
			stats.Pruned++
		}
	}
	c.Lock.Unlock()

	// 5/6. repack + deltify: rewrite reachable objects into one new pack,
	// merging when the existing pack count reaches RepackMinPacks.
	if c.Repack != nil && c.PackCount != nil {
		n, err := c.PackCount(ctx)
		if err != nil {
			return Stats{}, err
		}
		if n >= c.opts.RepackMinPacks {
			ids := make([]gitcore.Hash, 0, len(reachable))
			for h := range reachable {
				ids = append(ids, h)
			}
			res, err := c.Repack.Repack(ctx, ids)
			if err != nil {
				return Stats{}, err
			}
			stats.Repacked = res.ObjectCount
			stats.Deltified = res.DeltaCount
		}
	}

	stats.Duration = time.Since(start)
	c.mu.Lock()
	c.last = stats
	c.mu.Unlock()
	return stats, nil
}

// GetStats returns the most recent Run's stats (spec §6 GcController).
func (c *Controller) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) snapshotRoots(ctx context.Context) ([]gitcore.Hash, error) {
	entries, err := c.Refs.List(ctx)
	if err != nil {
		return nil, err
	}
	var roots []gitcore.Hash
	for _, e := range entries {
		switch e.Kind {
		case refstore.Direct:
			roots = append(roots, e.Hash)
		case refstore.Symbolic:
			r, err := c.Refs.Resolve(ctx, e.Name)
			if err != nil {
				continue // dangling symbolic ref (e.g. unborn HEAD): not a root
			}
			roots = append(roots, r.Target)
		}
	}
	return roots, nil
}

func (c *Controller) pruneEligible(ctx context.Context, h gitcore.Hash, now time.Time) bool {
	if c.Access == nil {
		return true
	}
	touched, err := c.Access.Touched(ctx, h)
	if err != nil || touched.IsZero() {
		return true
	}
	grace := time.Duration(c.opts.PruneGraceSeconds) * time.Second
	return now.Sub(touched) >= grace
}
