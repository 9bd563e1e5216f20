// Package object implements the canonical, byte-exact (de)serialization of
// Git's four object kinds: blobs, trees, commits, and tags.
package object

import (
	"fmt"
	"strconv"
)

// FileMode is a tree entry's Unix-style mode, restricted to the five
// values Git itself recognizes.
type FileMode uint32

const (
	// Dir marks a tree (subdirectory) entry.
	Dir FileMode = 0o040000
	// Regular marks a regular, non-executable file.
	Regular FileMode = 0o100644
	// Executable marks a regular, executable file.
	Executable FileMode = 0o100755
	// Symlink marks a symbolic link, whose blob content is the link target.
	Symlink FileMode = 0o120000
	// Submodule marks a gitlink (nested repository) entry.
	Submodule FileMode = 0o160000
)

// String returns the unpadded octal text Git stores for this mode (e.g.
// "100644", never "0100644").
func (m FileMode) String() string {
	return strconv.FormatUint(uint64(m), 8)
}

// IsDir reports whether m is the tree (subdirectory) mode.
func (m FileMode) IsDir() bool {
	return m == Dir
}

// ParseFileMode parses the octal text form of a mode as it appears in a
// tree entry.
func ParseFileMode(s string) (FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("object: invalid file mode %q: %w", s, err)
	}
	m := FileMode(v)
	switch m {
	case Dir, Regular, Executable, Symlink, Submodule:
		return m, nil
	default:
		return 0, fmt.Errorf("object: unrecognized file mode %q", s)
	}
}
