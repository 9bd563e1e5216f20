package delta

import (
	"errors"
	"fmt"

	"github.com/statewalker/gitcore"
)

// DefaultMaxDepth and DefaultMaxCostRatio are spec §6's pack.* defaults.
const (
	DefaultMaxDepth     = 50
	DefaultMaxCostRatio = 2.0
)

// ErrCostExceeded marks a candidate delta whose encoded size blew past
// MaxCostRatio times its target's size — not corruption, just a bad
// tradeoff the deltifier should decline and fall back to a whole object.
var ErrCostExceeded = errors.New("delta: cost exceeds ratio limit")

// Chain tracks a candidate delta chain's depth, cycle membership, and
// inflation cost as it's built (by the GC deltifier) or resolved (by the
// pack parser). Both paths reuse this so the depth/cost budget is
// enforced identically regardless of which direction the chain is walked.
type Chain struct {
	MaxDepth     int
	MaxCostRatio float64

	seen map[gitcore.Hash]bool
}

// NewChain returns a Chain with the given limits; zero values fall back
// to DefaultMaxDepth/DefaultMaxCostRatio.
func NewChain(maxDepth int, maxCostRatio float64) *Chain {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxCostRatio <= 0 {
		maxCostRatio = DefaultMaxCostRatio
	}
	return &Chain{MaxDepth: maxDepth, MaxCostRatio: maxCostRatio, seen: make(map[gitcore.Hash]bool)}
}

// CheckDepth rejects a chain longer than MaxDepth.
func (c *Chain) CheckDepth(depth int) error {
	if depth > c.MaxDepth {
		return fmt.Errorf("%w: depth %d exceeds limit %d", gitcore.ErrDeltaChainTooDeep, depth, c.MaxDepth)
	}
	return nil
}

// Visit records id as part of the chain being walked and reports
// gitcore.ErrDeltaCycle if it was already visited.
func (c *Chain) Visit(id gitcore.Hash) error {
	if c.seen[id] {
		return fmt.Errorf("%w: object %s already in chain", gitcore.ErrDeltaCycle, id)
	}
	c.seen[id] = true
	return nil
}

// CheckCost rejects a delta whose encoded size exceeds MaxCostRatio times
// the size of the object it reconstructs — a delta that large isn't worth
// the decode-time chain-walk cost over storing the object whole.
func (c *Chain) CheckCost(deltaSize, targetSize int64) error {
	if targetSize == 0 {
		return nil
	}
	if float64(deltaSize) > c.MaxCostRatio*float64(targetSize) {
		return fmt.Errorf("%w: delta size %d exceeds %.1fx target size %d", ErrCostExceeded, deltaSize, c.MaxCostRatio, targetSize)
	}
	return nil
}
