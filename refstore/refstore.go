// Package refstore implements the reference store (C6 refs): mutable
// name-to-object (or name-to-name) bindings with compare-and-set updates
// and optional reflog history. Ref name syntax validation and reflog
// textual formatting are external-collaborator concerns (spec
// Non-goals); this package only resolves and stores whatever name
// strings and targets it is given.
package refstore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/statewalker/gitcore"
	"github.com/statewalker/gitcore/store"
)

// maxSymbolicHops bounds symbolic ref chain resolution (spec §4.6: "≤ 6
// hops or reports cycle").
const maxSymbolicHops = 6

// Kind distinguishes a direct (object id) ref from a symbolic (name) one.
type Kind int

const (
	Direct Kind = iota
	Symbolic
)

// Ref is a reference: either a direct object id or a symbolic link to
// another name. As Resolve returns it, Kind is Direct, Target is the id at
// the end of any symbolic chain and Name is the name that was asked for;
// the names walked in between are not kept.
type Ref struct {
	Name   string
	Kind   Kind
	Target gitcore.Hash // valid when Kind == Direct after Resolve
	Link   string       // symbolic target name, valid when Kind == Symbolic
}

// Entry is one stored ref as List enumerates it, unresolved (no symbolic
// chain following).
type Entry struct {
	Name string
	Kind Kind
	Hash gitcore.Hash
	Link string
}

// LogEntry is one reflog record.
type LogEntry struct {
	Old, New gitcore.Hash
	Who      string
	When     time.Time
	Message  string
}

const (
	directPrefix   = "hash "
	symbolicPrefix = "ref: "
)

// Refs is the ref store. Backed by a store.Store so a filesystem and an
// in-memory ref store share one implementation, the way go-git's
// storage/filesystem and storage/memory both satisfy storer.ReferenceStorer.
type Refs struct {
	backing store.Store
	reflog  store.Store // nil disables reflog support
}

// New builds a Refs store over backing. If reflog is non-nil, Set records
// history there; GetReflog then returns recorded entries instead of nil.
func New(backing store.Store, reflog store.Store) *Refs {
	return &Refs{backing: backing, reflog: reflog}
}

func encodeDirect(h gitcore.Hash) []byte {
	return []byte(directPrefix + h.String())
}

func encodeSymbolic(target string) []byte {
	return []byte(symbolicPrefix + target)
}

func decode(b []byte) (Entry, error) {
	s := string(b)
	switch {
	case strings.HasPrefix(s, directPrefix):
		h, ok := gitcore.FromHex(strings.TrimPrefix(s, directPrefix))
		if !ok {
			return Entry{}, fmt.Errorf("%w: malformed direct ref value", gitcore.ErrCorruptObject)
		}
		return Entry{Kind: Direct, Hash: h}, nil
	case strings.HasPrefix(s, symbolicPrefix):
		return Entry{Kind: Symbolic, Link: strings.TrimPrefix(s, symbolicPrefix)}, nil
	default:
		return Entry{}, fmt.Errorf("%w: unrecognized ref encoding", gitcore.ErrCorruptObject)
	}
}

func (r *Refs) get(ctx context.Context, name string) (Entry, error) {
	rc, err := r.backing.Get(ctx, name)
	if err != nil {
		return Entry{}, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return Entry{}, err
	}
	e, err := decode(buf.Bytes())
	if err != nil {
		return Entry{}, err
	}
	e.Name = name
	return e, nil
}

// Resolve follows name, through a symbolic chain if necessary (at most
// maxSymbolicHops hops), to a direct object id.
func (r *Refs) Resolve(ctx context.Context, name string) (Ref, error) {
	seen := make(map[string]bool, maxSymbolicHops)
	cur := name
	for hop := 0; ; hop++ {
		if hop > maxSymbolicHops {
			return Ref{}, fmt.Errorf("%w: symbolic ref chain exceeds %d hops starting at %q", gitcore.ErrCorruptObject, maxSymbolicHops, name)
		}
		if seen[cur] {
			return Ref{}, fmt.Errorf("%w: symbolic ref cycle at %q", gitcore.ErrCorruptObject, cur)
		}
		seen[cur] = true

		e, err := r.get(ctx, cur)
		if err != nil {
			return Ref{}, err
		}
		if e.Kind == Direct {
			return Ref{Name: name, Kind: Direct, Target: e.Hash}, nil
		}
		cur = e.Link
	}
}

// Set writes name as a direct ref pointing at target, recording a reflog
// entry if reflog support is enabled.
func (r *Refs) Set(ctx context.Context, name string, target gitcore.Hash, who, message string) error {
	old, _ := r.Resolve(ctx, name)
	if err := r.backing.Put(ctx, name, bytes.NewReader(encodeDirect(target))); err != nil {
		return err
	}
	return r.appendReflog(ctx, name, old.Target, target, who, message)
}

// SetSymbolic writes name as a symbolic ref pointing at targetName (e.g.
// HEAD -> refs/heads/main).
func (r *Refs) SetSymbolic(ctx context.Context, name, targetName string) error {
	return r.backing.Put(ctx, name, bytes.NewReader(encodeSymbolic(targetName)))
}

// CompareAndSet sets name to newTarget only if its current direct value is
// exactly oldTarget (gitcore.ZeroHash to require the ref be absent).
// Returns gitcore.ErrNonFastForward on mismatch.
func (r *Refs) CompareAndSet(ctx context.Context, name string, oldTarget, newTarget gitcore.Hash, who, message string) error {
	cur, err := r.Resolve(ctx, name)
	switch {
	case errors.Is(err, gitcore.ErrNotFound):
		if oldTarget != gitcore.ZeroHash {
			return fmt.Errorf("%w: ref %q does not exist", gitcore.ErrNonFastForward, name)
		}
	case err != nil:
		return err
	case cur.Target != oldTarget:
		return fmt.Errorf("%w: ref %q is at %s, not %s", gitcore.ErrNonFastForward, name, cur.Target, oldTarget)
	}

	if err := r.backing.Put(ctx, name, bytes.NewReader(encodeDirect(newTarget))); err != nil {
		return err
	}
	return r.appendReflog(ctx, name, oldTarget, newTarget, who, message)
}

// Delete removes name.
func (r *Refs) Delete(ctx context.Context, name string) error {
	return r.backing.Delete(ctx, name)
}

// List returns every stored ref entry, unresolved, sorted by name.
func (r *Refs) List(ctx context.Context) ([]Entry, error) {
	var names []string
	if err := r.backing.Keys(ctx, func(k string) error {
		names = append(names, k)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, n := range names {
		e, err := r.get(ctx, n)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Refs) appendReflog(ctx context.Context, name string, old, new gitcore.Hash, who, message string) error {
	if r.reflog == nil {
		return nil
	}
	entry := LogEntry{Old: old, New: new, Who: who, When: time.Now(), Message: message}
	line := fmt.Sprintf("%s %s %s %d %s\n", entry.Old, entry.New, entry.Who, entry.When.Unix(), entry.Message)

	var existing bytes.Buffer
	if rc, err := r.reflog.Get(ctx, name); err == nil {
		existing.ReadFrom(rc)
		rc.Close()
	}
	existing.WriteString(line)
	return r.reflog.Put(ctx, name, bytes.NewReader(existing.Bytes()))
}

// GetReflog returns name's recorded history, newest-last, or nil (without
// error) if reflog support is disabled for this store — spec's Open
// Question on reflog-absence semantics is resolved permissively here: no
// reflog backing is not an error condition, just an empty capability.
func (r *Refs) GetReflog(ctx context.Context, name string) ([]LogEntry, error) {
	if r.reflog == nil {
		return nil, nil
	}
	rc, err := r.reflog.Get(ctx, name)
	if err != nil {
		if errors.Is(err, gitcore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	var entries []LogEntry
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		e, err := parseLogLine(sc.Text())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

func parseLogLine(line string) (LogEntry, error) {
	fields := strings.SplitN(line, " ", 5)
	if len(fields) != 5 {
		return LogEntry{}, fmt.Errorf("%w: malformed reflog line", gitcore.ErrCorruptObject)
	}
	old, ok := gitcore.FromHex(fields[0])
	if !ok {
		return LogEntry{}, fmt.Errorf("%w: malformed reflog old id", gitcore.ErrCorruptObject)
	}
	newH, ok := gitcore.FromHex(fields[1])
	if !ok {
		return LogEntry{}, fmt.Errorf("%w: malformed reflog new id", gitcore.ErrCorruptObject)
	}
	var unixSecs int64
	if _, err := fmt.Sscanf(fields[3], "%d", &unixSecs); err != nil {
		return LogEntry{}, fmt.Errorf("%w: malformed reflog timestamp", gitcore.ErrCorruptObject)
	}
	return LogEntry{
		Old:     old,
		New:     newH,
		Who:     fields[2],
		When:    time.Unix(unixSecs, 0),
		Message: fields[4],
	}, nil
}
