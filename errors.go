package gitcore

import "errors"

// Sentinel error kinds from spec §7. Low-level errors surface unchanged;
// wrap with fmt.Errorf("...: %w", Err...) at the point of detection so
// errors.Is/errors.As keep working through the wrap.
var (
	// ErrNotFound is returned when an id or ref is absent.
	ErrNotFound = errors.New("gitcore: not found")
	// ErrAlreadyExists is returned by ref creation under exclusive semantics.
	ErrAlreadyExists = errors.New("gitcore: already exists")
	// ErrSizeMismatch is returned when a declared size doesn't match the
	// bytes actually streamed.
	ErrSizeMismatch = errors.New("gitcore: size mismatch")
	// ErrCorruptObject marks a failed hash check, malformed header, or bad
	// tree entry ordering.
	ErrCorruptObject = errors.New("gitcore: corrupt object")
	// ErrCorruptPack marks a bad pack signature, truncated stream, or bad
	// trailer checksum.
	ErrCorruptPack = errors.New("gitcore: corrupt pack")
	// ErrDeltaChainTooDeep is returned when a delta chain exceeds its
	// configured depth budget.
	ErrDeltaChainTooDeep = errors.New("gitcore: delta chain too deep")
	// ErrDeltaCycle is returned when a delta's base graph contains a cycle.
	ErrDeltaCycle = errors.New("gitcore: delta cycle detected")
	// ErrNonFastForward is returned when a ref compare-and-set fails.
	ErrNonFastForward = errors.New("gitcore: non-fast-forward update rejected")
	// ErrConflict marks a staging/merge conflict.
	ErrConflict = errors.New("gitcore: conflict")
	// ErrCancelled is returned when an operation is cooperatively aborted.
	ErrCancelled = errors.New("gitcore: cancelled")
)
