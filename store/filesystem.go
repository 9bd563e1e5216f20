package store

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/statewalker/gitcore"
)

const tmpPrefix = "tmp_obj_"

// Filesystem is a Store backed by a billy.Filesystem, laid out the way
// Git's own loose-object store is: objects/<xx>/<38 remaining hex chars>.
// Writes go to a temp file and are renamed into place, so a concurrent Get
// never observes a partial write.
type Filesystem struct {
	fs   billy.Filesystem
	root string // subdirectory under fs holding the object tree, "" for fs root
}

// NewFilesystem wraps an existing billy.Filesystem. root, if non-empty, is
// the subdirectory objects are stored under (e.g. "objects" for a dotgit
// layout); pass "" to use fs's root directly.
func NewFilesystem(fs billy.Filesystem, root string) *Filesystem {
	return &Filesystem{fs: fs, root: root}
}

// NewOSFilesystem is a convenience constructor wrapping a plain OS directory.
func NewOSFilesystem(dir string) *Filesystem {
	return NewFilesystem(osfs.New(dir), "")
}

func (f *Filesystem) path(key string) (string, error) {
	if len(key) < 3 {
		return "", fmt.Errorf("store: key %q too short for loose-object layout", key)
	}
	p := path.Join(key[:2], key[2:])
	if f.root != "" {
		p = path.Join(f.root, p)
	}
	return p, nil
}

func (f *Filesystem) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	dir := path.Dir(p)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	tmp, err := f.fs.TempFile(dir, tmpPrefix)
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		f.fs.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("store: close temp file for %s: %w", key, err)
	}
	if err := f.fs.Rename(tmpName, p); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("store: rename into place for %s: %w", key, err)
	}
	return nil
}

func (f *Filesystem) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	file, err := f.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", gitcore.ErrNotFound, key)
	}
	return file, nil
}

func (f *Filesystem) Has(ctx context.Context, key string) (bool, error) {
	p, err := f.path(key)
	if err != nil {
		return false, err
	}
	if _, err := f.fs.Stat(p); err != nil {
		return false, nil
	}
	return true, nil
}

func (f *Filesystem) Delete(ctx context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := f.fs.Remove(p); err != nil {
		return nil // deleting an absent key is not an error
	}
	return nil
}

func (f *Filesystem) Keys(ctx context.Context, fn func(key string) error) error {
	base := f.root
	if base == "" {
		base = "."
	}
	prefixDirs, err := f.fs.ReadDir(base)
	if err != nil {
		return nil // no object tree yet
	}
	for _, pd := range prefixDirs {
		if !pd.IsDir() || len(pd.Name()) != 2 || !isHex(pd.Name()) {
			continue
		}
		entries, err := f.fs.ReadDir(path.Join(base, pd.Name()))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() || len(e.Name()) != gitcore.HexSize-2 || !isHex(e.Name()) {
				continue
			}
			if err := fn(pd.Name() + e.Name()); err != nil {
				if err == ErrStopIteration {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= '0' && b <= '9':
		case b >= 'a' && b <= 'f':
		default:
			return false
		}
	}
	return true
}
