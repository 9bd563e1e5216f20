package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/statewalker/gitcore"
)

// Commit is the decoded form of a commit object, per spec §3: a tree,
// zero or more parents, author/committer identities, optional encoding and
// PGP signature headers, and a message.
type Commit struct {
	TreeHash     gitcore.Hash
	ParentHashes []gitcore.Hash
	Author       PersonIdent
	Committer    PersonIdent
	Encoding     string // empty unless the commit declared a non-default encoding
	PGPSignature string // empty unless the commit is signed

	// ExtraHeaders preserves any header lines this package doesn't give a
	// named field to (e.g. "mergetag"), verbatim, in encounter order. They
	// are re-emitted after PGPSignature on Encode so round-tripping a
	// commit with unknown headers doesn't drop data, even though their
	// exact original interleaving with encoding/gpgsig is not preserved
	// (Git itself always writes them in canonical field order; only truly
	// exotic hand-crafted commits would differ, and those are out of
	// scope per spec's Non-goals on porcelain edge cases).
	ExtraHeaders []header

	RawMessage []byte
}

// CommitEntryKind discriminates the variants yielded by DecodeCommitEntries.
type CommitEntryKind int

const (
	// TreeEntryKind carries the commit's tree id.
	TreeEntryKind CommitEntryKind = iota
	// ParentEntryKind carries one parent id.
	ParentEntryKind
	// AuthorEntryKind carries the author identity.
	AuthorEntryKind
	// CommitterEntryKind carries the committer identity.
	CommitterEntryKind
	// EncodingEntryKind carries the encoding header, if present.
	EncodingEntryKind
	// GPGSigEntryKind carries the PGP/SSH signature block, if present.
	GPGSigEntryKind
	// ExtraHeaderEntryKind carries an unrecognized header line.
	ExtraHeaderEntryKind
	// MessageEntryKind carries a reader over the remaining message bytes;
	// it is always the last entry yielded.
	MessageEntryKind
)

// CommitEntry is one streamed piece of a commit, per spec §4.4's
// requirement that very large commits never need to be materialized as one
// buffer.
type CommitEntry struct {
	Kind      CommitEntryKind
	Hash      gitcore.Hash
	Person    PersonIdent
	Text      string // Encoding / GPGSig / ExtraHeader value
	HeaderKey string // set for ExtraHeaderEntryKind
	Message   io.Reader
}

// DecodeCommitEntries streams a commit's fields to yield without
// buffering the message body; yield receives the remaining, unread message
// bytes as an io.Reader on the final MessageEntryKind call, so the caller
// can copy it directly to its destination.
func DecodeCommitEntries(r io.Reader, yield func(CommitEntry) error) error {
	br := bufio.NewReader(r)
	headers, err := readHeaders(br)
	if err != nil {
		return fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
	}

	sawTree := false
	for _, h := range headers {
		switch h.Key {
		case "tree":
			id, ok := gitcore.FromHex(h.Value)
			if !ok {
				return fmt.Errorf("%w: invalid tree id %q", gitcore.ErrCorruptObject, h.Value)
			}
			if err := yield(CommitEntry{Kind: TreeEntryKind, Hash: id}); err != nil {
				return err
			}
			sawTree = true
		case "parent":
			id, ok := gitcore.FromHex(h.Value)
			if !ok {
				return fmt.Errorf("%w: invalid parent id %q", gitcore.ErrCorruptObject, h.Value)
			}
			if err := yield(CommitEntry{Kind: ParentEntryKind, Hash: id}); err != nil {
				return err
			}
		case "author":
			p, err := ParsePersonIdent(h.Value)
			if err != nil {
				return fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
			}
			if err := yield(CommitEntry{Kind: AuthorEntryKind, Person: p}); err != nil {
				return err
			}
		case "committer":
			p, err := ParsePersonIdent(h.Value)
			if err != nil {
				return fmt.Errorf("%w: %v", gitcore.ErrCorruptObject, err)
			}
			if err := yield(CommitEntry{Kind: CommitterEntryKind, Person: p}); err != nil {
				return err
			}
		case "encoding":
			if err := yield(CommitEntry{Kind: EncodingEntryKind, Text: h.Value}); err != nil {
				return err
			}
		case "gpgsig":
			if err := yield(CommitEntry{Kind: GPGSigEntryKind, Text: h.Value}); err != nil {
				return err
			}
		default:
			if err := yield(CommitEntry{Kind: ExtraHeaderEntryKind, HeaderKey: h.Key, Text: h.Value}); err != nil {
				return err
			}
		}
	}
	if !sawTree {
		return fmt.Errorf("%w: commit missing tree header", gitcore.ErrCorruptObject)
	}

	return yield(CommitEntry{Kind: MessageEntryKind, Message: br})
}

// DecodeCommit fully decodes a commit payload into a Commit value.
func DecodeCommit(r io.Reader) (*Commit, error) {
	c := &Commit{}
	err := DecodeCommitEntries(r, func(e CommitEntry) error {
		switch e.Kind {
		case TreeEntryKind:
			c.TreeHash = e.Hash
		case ParentEntryKind:
			c.ParentHashes = append(c.ParentHashes, e.Hash)
		case AuthorEntryKind:
			c.Author = e.Person
		case CommitterEntryKind:
			c.Committer = e.Person
		case EncodingEntryKind:
			c.Encoding = e.Text
		case GPGSigEntryKind:
			c.PGPSignature = e.Text
		case ExtraHeaderEntryKind:
			c.ExtraHeaders = append(c.ExtraHeaders, header{Key: e.HeaderKey, Value: e.Text})
		case MessageEntryKind:
			msg, err := io.ReadAll(e.Message)
			if err != nil {
				return err
			}
			c.RawMessage = msg
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Encode writes the canonical commit serialization: headers in spec §3's
// fixed order, a blank line, then the message.
func (c *Commit) Encode(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "tree %s\n", c.TreeHash.String()); err != nil {
		return err
	}
	for _, p := range c.ParentHashes {
		if _, err := fmt.Fprintf(w, "parent %s\n", p.String()); err != nil {
			return err
		}
	}
	if err := writeHeader(w, "author", c.Author.String()); err != nil {
		return err
	}
	if err := writeHeader(w, "committer", c.Committer.String()); err != nil {
		return err
	}
	if c.Encoding != "" {
		if err := writeHeader(w, "encoding", c.Encoding); err != nil {
			return err
		}
	}
	if c.PGPSignature != "" {
		if err := writeHeader(w, "gpgsig", c.PGPSignature); err != nil {
			return err
		}
	}
	for _, h := range c.ExtraHeaders {
		if err := writeHeader(w, h.Key, h.Value); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	_, err := w.Write(c.RawMessage)
	return err
}

// Bytes returns the canonical serialization.
func (c *Commit) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Message returns the commit message, transcoded from c.Encoding to UTF-8
// when it names a non-default charset. The RawMessage field always holds
// the untouched bytes, which is what Encode uses, so round-tripping a commit
// (spec §8 property 4) is unaffected by transcoding.
func (c *Commit) Message() (string, error) {
	return transcode(c.RawMessage, c.Encoding)
}

// NumParents reports whether this is a root commit (0), a regular commit
// (1), or a merge (2+), per spec §3.
func (c *Commit) NumParents() int {
	return len(c.ParentHashes)
}
