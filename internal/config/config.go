// Package config aggregates the per-package Options structs spec §6 lists
// into one Config value, so a caller wiring up a repository only has to
// merge one set of overrides instead of one per package.
package config

import (
	"dario.cat/mergo"

	"github.com/statewalker/gitcore/delta"
	"github.com/statewalker/gitcore/gc"
	"github.com/statewalker/gitcore/objstore"
	"github.com/statewalker/gitcore/pack"
)

// Config holds every tunable spec §6 names, grouped by the package each
// belongs to.
type Config struct {
	Objstore objstore.Options
	Pack     PackConfig
	GC       gc.Options
}

// PackConfig covers both delta.Chain's budgets and pack.Encode's own
// knobs, since spec §6 lists them under one "pack.*" namespace even though
// they're consumed by two different packages.
type PackConfig struct {
	DeltaMaxDepth     int
	DeltaMaxCostRatio float64
	DeltaMinCopySize  int
	Window            int
	Level             int
}

// Default is spec §6's full set of defaults.
var Default = Config{
	Objstore: objstore.Options{
		MaxCacheSize:    50 << 20, // 50 MiB
		MaxCacheEntries: 500,
	},
	Pack: PackConfig{
		DeltaMaxDepth:     delta.DefaultMaxDepth,
		DeltaMaxCostRatio: delta.DefaultMaxCostRatio,
		DeltaMinCopySize:  4,
		Window:            gc.DefaultDeltaCandidateWindow,
		Level:             0,
	},
	GC: gc.DefaultOptions,
}

// Load merges overrides over Default, returning a fully-populated Config.
// Fields left zero in overrides take Default's value; a caller wanting to
// force a field to zero should set it on Default directly instead.
func Load(overrides Config) (Config, error) {
	merged := Default
	if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	return merged, nil
}

// EncodeOptions builds a pack.EncodeOptions from c.Pack, for callers
// driving pack.Encode directly (e.g. a transport's upload-pack path).
func (c Config) EncodeOptions() pack.EncodeOptions {
	return pack.EncodeOptions{
		UseDeltas:   true,
		Window:      c.Pack.Window,
		MinCopySize: c.Pack.DeltaMinCopySize,
		Level:       c.Pack.Level,
	}
}

// DeltaChain builds a delta.Chain from c.Pack's depth/cost budgets.
func (c Config) DeltaChain() *delta.Chain {
	return delta.NewChain(c.Pack.DeltaMaxDepth, c.Pack.DeltaMaxCostRatio)
}
