package delta

import "github.com/statewalker/gitcore"

// Candidate is an object the deltifier is considering as a base for some
// target object.
type Candidate struct {
	Hash gitcore.Hash
	Type gitcore.ObjectType
	Size int64
	Path string // tree-entry path this object was last seen at, if known
}

// Target is the object being considered for deltification.
type Target struct {
	Hash         gitcore.Hash
	Type         gitcore.ObjectType
	Size         int64
	Path         string
	CommitsDepth int // how many commits back in the walk this object was found
}

// CandidateStrategy proposes base-object candidates for target, ordered
// best-first. The GC deltifier tries them in order and keeps the first
// one whose resulting delta beats the cost bound (delta.Chain).
type CandidateStrategy interface {
	Candidates(target Target) []Candidate
}

// CommitWindowStrategy offers same-type objects from among the last
// Window objects passed to Observe, most recent first — the same "recent
// history" heuristic Git's own pack heuristic (--window) uses. The window
// counts observed objects of every type, not commits: Observe keeps the
// newest Window entries and Candidates filters them by type afterward.
type CommitWindowStrategy struct {
	Window  int
	history []Candidate // most recent first
}

// NewCommitWindowStrategy returns a strategy holding up to window recently
// observed objects, of any type.
func NewCommitWindowStrategy(window int) *CommitWindowStrategy {
	return &CommitWindowStrategy{Window: window}
}

// Observe records c as having been walked, evicting the oldest entry once
// Window is exceeded.
func (s *CommitWindowStrategy) Observe(c Candidate) {
	s.history = append([]Candidate{c}, s.history...)
	if len(s.history) > s.Window {
		s.history = s.history[:s.Window]
	}
}

func (s *CommitWindowStrategy) Candidates(target Target) []Candidate {
	out := make([]Candidate, 0, len(s.history))
	for _, c := range s.history {
		if c.Type == target.Type && c.Hash != target.Hash {
			out = append(out, c)
		}
	}
	return out
}

// SimilarSizeStrategy offers candidates whose size falls within a ratio
// band of target's size — deltas compress best between similarly-sized
// objects, so this is a cheap pre-filter before the expensive Compute
// pass.
type SimilarSizeStrategy struct {
	MinRatio, MaxRatio float64
	pool               []Candidate
}

// NewSimilarSizeStrategy returns a strategy with the given acceptable
// size ratio band (target.Size / candidate.Size must fall within
// [minRatio, maxRatio]).
func NewSimilarSizeStrategy(minRatio, maxRatio float64) *SimilarSizeStrategy {
	return &SimilarSizeStrategy{MinRatio: minRatio, MaxRatio: maxRatio}
}

// Add registers c as an available candidate.
func (s *SimilarSizeStrategy) Add(c Candidate) {
	s.pool = append(s.pool, c)
}

func (s *SimilarSizeStrategy) Candidates(target Target) []Candidate {
	if target.Size == 0 {
		return nil
	}
	var out []Candidate
	for _, c := range s.pool {
		if c.Type != target.Type || c.Hash == target.Hash || c.Size == 0 {
			continue
		}
		ratio := float64(target.Size) / float64(c.Size)
		if ratio >= s.MinRatio && ratio <= s.MaxRatio {
			out = append(out, c)
		}
	}
	return out
}

// PathAffinityStrategy offers objects previously seen at the same
// tree-entry path: the most common case of "this blob is a small edit of
// the last commit's blob at the same path" (the dominant signal Git's own
// pack heuristics use path names for).
type PathAffinityStrategy struct {
	byPath map[string][]Candidate
}

// NewPathAffinityStrategy returns an empty strategy.
func NewPathAffinityStrategy() *PathAffinityStrategy {
	return &PathAffinityStrategy{byPath: make(map[string][]Candidate)}
}

// Observe records that c was found at its Path.
func (s *PathAffinityStrategy) Observe(c Candidate) {
	if c.Path == "" {
		return
	}
	s.byPath[c.Path] = append(s.byPath[c.Path], c)
}

func (s *PathAffinityStrategy) Candidates(target Target) []Candidate {
	if target.Path == "" {
		return nil
	}
	var out []Candidate
	for _, c := range s.byPath[target.Path] {
		if c.Hash != target.Hash {
			out = append(out, c)
		}
	}
	return out
}
