package delta

// rollingPrime is the multiplier for the Rabin-style polynomial rolling
// hash windowed match index below; arithmetic is plain uint64 wraparound
// (mod 2^64), which is adequate for a match-candidate hash (false
// positives are caught by the verification byte-compare before a match is
// accepted, so collisions cost a cache miss, not correctness).
const rollingPrime = 1099511628211 // FNV-1a's 64-bit prime, reused here as
// a convenient odd multiplier; no relation to FNV hashing itself.

// rollingWindow computes and incrementally updates a polynomial hash over
// a fixed-size sliding window.
type rollingWindow struct {
	size    int
	highPow uint64 // rollingPrime^(size-1), for removing the outgoing byte
	hash    uint64
}

func newRollingWindow(size int) *rollingWindow {
	highPow := uint64(1)
	for i := 0; i < size-1; i++ {
		highPow *= rollingPrime
	}
	return &rollingWindow{size: size, highPow: highPow}
}

func (w *rollingWindow) reset(data []byte) {
	var h uint64
	for _, b := range data {
		h = h*rollingPrime + uint64(b)
	}
	w.hash = h
}

func (w *rollingWindow) roll(out, in byte) {
	w.hash = (w.hash-uint64(out)*w.highPow)*rollingPrime + uint64(in)
}

// Compute generates a delta instruction stream transforming base into
// target: a content-defined rolling-hash index of base's minCopy-sized
// windows is built once, then target is scanned left to right, emitting a
// copy instruction on any match of at least minCopy bytes (greedily
// extended as far as it will go, up to the format's maxCopySize) and an
// insert instruction for everything else. minCopy <= 0 uses a default of
// 4 (spec's pack.deltaMinCopySize).
//
// This differs deliberately from go-git's own delta generator
// (diff_delta.go's DiffDelta, built on a Myers/LCS SequenceMatcher): an
// LCS diff needs both buffers fully resident and compares across the
// whole target for every base position, which doesn't fit a streaming,
// content-addressed store well. A rolling hash index finds copy
// candidates in amortized O(1) per position and is the same family of
// technique rsync and content-defined chunking stores use.
func Compute(base, target []byte, minCopy int) []byte {
	if minCopy <= 0 {
		minCopy = 4
	}
	ops := computeOps(base, target, minCopy)
	return Encode(int64(len(base)), int64(len(target)), ops)
}

func computeOps(base, target []byte, minCopy int) []Op {
	var ops []Op
	if len(base) < minCopy || len(target) == 0 {
		return appendLiteral(nil, target)
	}

	index := indexBase(base, minCopy)
	w := newRollingWindow(minCopy)

	var literal []byte
	i := 0
	windowValid := false // true once w.hash reflects target[i:i+minCopy]
	for i < len(target) {
		if i+minCopy > len(target) {
			literal = append(literal, target[i:]...)
			break
		}

		if !windowValid {
			w.reset(target[i : i+minCopy])
			windowValid = true
		}

		var bestOffset, bestLen int
		for _, pos := range index[w.hash] {
			l := matchLen(base[pos:], target[i:])
			if l >= minCopy && l > bestLen {
				bestOffset, bestLen = pos, l
			}
		}

		if bestLen >= minCopy {
			ops = appendLiteral(ops, literal)
			literal = nil
			ops = append(ops, Op{Kind: OpCopy, Offset: bestOffset, Size: bestLen})
			i += bestLen
			windowValid = false // jumped more than one byte, window is stale
			continue
		}

		literal = append(literal, target[i])
		if i+minCopy < len(target) {
			w.roll(target[i], target[i+minCopy])
		} else {
			windowValid = false
		}
		i++
	}

	ops = appendLiteral(ops, literal)
	return ops
}

func appendLiteral(ops []Op, literal []byte) []Op {
	if len(literal) == 0 {
		return ops
	}
	return append(ops, Op{Kind: OpInsert, Size: len(literal), Literal: literal})
}

func matchLen(base, target []byte) int {
	limit := len(base)
	if len(target) < limit {
		limit = len(target)
	}
	if limit > maxCopySize {
		limit = maxCopySize
	}
	n := 0
	for n < limit && base[n] == target[n] {
		n++
	}
	return n
}

// indexBase maps every minCopy-byte window's rolling hash to the base
// positions it occurs at, so Compute can look up candidate copy sources
// for each target position in amortized O(1).
func indexBase(base []byte, minCopy int) map[uint64][]int {
	index := make(map[uint64][]int)
	if len(base) < minCopy {
		return index
	}

	w := newRollingWindow(minCopy)
	w.reset(base[:minCopy])
	index[w.hash] = append(index[w.hash], 0)

	for i := 1; i+minCopy <= len(base); i++ {
		w.roll(base[i-1], base[i+minCopy-1])
		index[w.hash] = append(index[w.hash], i)
	}
	return index
}
