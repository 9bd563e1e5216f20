package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/statewalker/gitcore"
)

// TreeEntry is one line of a tree object: a mode, a name, and the hash of
// the referenced blob/tree/gitlink.
type TreeEntry struct {
	Mode FileMode
	Name string
	Hash gitcore.Hash
}

// Tree is a sorted sequence of TreeEntry. The zero value is the empty tree.
type Tree struct {
	Entries []TreeEntry
}

// sortKey returns the byte sequence tree-entry ordering compares on: the
// entry name, with an implicit trailing '/' for subtrees, so a subtree
// "foo" compares as "foo/" and sorts after a file "foo.txt" ('/' is 0x2f,
// '.' is 0x2e), while a file "foo" would sort before "foo.txt" — this is
// Git's own tree-sort rule, not plain lexicographic name order.
func sortKey(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// Sort orders Entries per Git's tree-entry comparison rule. Encode requires
// this to already hold; callers building a Tree from scratch should call
// Sort before Encode (or use NewTree, which sorts for you).
func (t *Tree) Sort() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return sortKey(t.Entries[i]) < sortKey(t.Entries[j])
	})
}

// NewTree returns a Tree with entries sorted per Git's ordering rule.
func NewTree(entries []TreeEntry) *Tree {
	t := &Tree{Entries: append([]TreeEntry(nil), entries...)}
	t.Sort()
	return t
}

// IsSorted reports whether Entries are already in canonical tree order.
func (t *Tree) IsSorted() bool {
	for i := 1; i < len(t.Entries); i++ {
		if sortKey(t.Entries[i-1]) >= sortKey(t.Entries[i]) {
			return false
		}
	}
	return true
}

// Encode writes the canonical tree serialization: "<mode> <name>\0<20 raw
// id bytes>" per entry, entries already in sorted order.
func (t *Tree) Encode(w io.Writer) error {
	if !t.IsSorted() {
		return fmt.Errorf("%w: tree entries are not in canonical order", gitcore.ErrCorruptObject)
	}
	for _, e := range t.Entries {
		if e.Name == "" || strings.ContainsAny(e.Name, "/\x00") {
			return fmt.Errorf("%w: invalid tree entry name %q", gitcore.ErrCorruptObject, e.Name)
		}
		if _, err := fmt.Fprintf(w, "%s %s\x00", e.Mode.String(), e.Name); err != nil {
			return err
		}
		if _, err := w.Write(e.Hash.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the canonical serialization as a byte slice, for callers
// that need the payload before hashing it (e.g. objstore.StoreWithSize).
func (t *Tree) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTree parses a tree payload. Entries are required to already be in
// canonical sorted order, per spec invariant; out-of-order input is
// reported as gitcore.ErrCorruptObject rather than silently re-sorted.
func DecodeTree(r io.Reader) (*Tree, error) {
	br := bufio.NewReader(r)
	var t Tree

	for {
		modeAndName, err := br.ReadString(0)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading tree entry header: %v", gitcore.ErrCorruptObject, err)
		}
		modeAndName = modeAndName[:len(modeAndName)-1] // trim NUL

		sp := strings.IndexByte(modeAndName, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: tree entry missing mode separator", gitcore.ErrCorruptObject)
		}
		mode, err := ParseFileMode(modeAndName[:sp])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
		}
		name := modeAndName[sp+1:]
		if name == "" || strings.ContainsRune(name, '/') {
			return nil, fmt.Errorf("%w: invalid tree entry name %q", gitcore.ErrCorruptObject, name)
		}

		var raw [gitcore.Size]byte
		if _, err := io.ReadFull(br, raw[:]); err != nil {
			return nil, fmt.Errorf("%w: reading tree entry id: %v", gitcore.ErrCorruptObject, err)
		}

		t.Entries = append(t.Entries, TreeEntry{Mode: mode, Name: name, Hash: gitcore.Hash(raw)})
	}

	if !t.IsSorted() {
		return nil, fmt.Errorf("%w: tree entries out of canonical order", gitcore.ErrCorruptObject)
	}
	return &t, nil
}
