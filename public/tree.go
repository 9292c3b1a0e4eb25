// Package public is the persistent public file tree. Every mutation takes a
// root CID and returns a new one; earlier roots stay readable and share
// every untouched subtree with later ones.
package public

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/storage"
)

// Tree runs path operations against a block store. It holds no root; the
// caller owns the root CID.
type Tree struct {
	store storage.CAS
	log   *zap.Logger
}

type Option func(*Tree)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.log = l
		}
	}
}

func NewTree(store storage.CAS, opts ...Option) *Tree {
	t := &Tree{store: store, log: zap.NewNop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewRoot stores an empty directory and returns its CID.
func (t *Tree) NewRoot(ctx context.Context, now time.Time) (cid.Cid, error) {
	return t.put(ctx, NewDirectory(now))
}

// Load fetches and decodes the node stored at id.
func (t *Tree) Load(ctx context.Context, id cid.Cid) (Node, error) {
	b, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("public: load %s: %w", id, err)
	}
	n, err := decodeNode(b)
	if err != nil {
		return nil, fmt.Errorf("public: load %s: %w", id, err)
	}
	return n, nil
}

func (t *Tree) loadDir(ctx context.Context, id cid.Cid) (*Directory, error) {
	n, err := t.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*Directory)
	if !ok {
		return nil, common.ErrNotADirectory
	}
	return d, nil
}

func (t *Tree) put(ctx context.Context, n Node) (cid.Cid, error) {
	b, err := encodeNode(n)
	if err != nil {
		return cid.Undef, err
	}
	id, err := t.store.Put(ctx, b)
	if err != nil {
		return cid.Undef, fmt.Errorf("public: store node: %w", err)
	}
	return id, nil
}

// frame is one directory on the walk from the root. old is its stored CID,
// undefined if the directory is being created.
type frame struct {
	dir *Directory
	old cid.Cid
}

// walk resolves every segment of dirs as a directory starting at root.
// Missing directories are created in memory when create is set; otherwise
// they fail with common.ErrNotFound. The returned frames hold copies that
// may be modified freely. created reports whether any directory was new.
func (t *Tree) walk(ctx context.Context, root cid.Cid, dirs common.Path, create bool, now time.Time) (frames []frame, created bool, err error) {
	rootDir, err := t.loadDir(ctx, root)
	if err != nil {
		return nil, false, err
	}
	frames = make([]frame, 0, len(dirs)+1)
	frames = append(frames, frame{dir: rootDir.clone(), old: root})

	for i, seg := range dirs {
		parent := frames[len(frames)-1].dir
		childID, ok := parent.Entries[seg]
		if !ok {
			if !create {
				return nil, false, fmt.Errorf("%w: %s", common.ErrNotFound, dirs[:i+1])
			}
			frames = append(frames, frame{dir: NewDirectory(now)})
			created = true
			continue
		}
		child, err := t.loadDir(ctx, childID)
		if err != nil {
			if errors.Is(err, common.ErrNotADirectory) {
				return nil, false, fmt.Errorf("%w: %s", common.ErrNotADirectory, dirs[:i+1])
			}
			return nil, false, err
		}
		frames = append(frames, frame{dir: child.clone(), old: childID})
	}
	return frames, created, nil
}

// fixUp stores the frames deepest first, linking each into its parent under
// the matching segment of dirs, and returns the new root CID. Every stored
// directory gets its mtime bumped and links the CID it replaces.
func (t *Tree) fixUp(ctx context.Context, frames []frame, dirs common.Path, now time.Time) (cid.Cid, error) {
	var child cid.Cid
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if i < len(frames)-1 {
			f.dir.Entries[dirs[i]] = child
		}
		f.dir.Metadata = f.dir.Metadata.Touch(now)
		if f.old.Defined() {
			f.dir.Previous = []cid.Cid{f.old}
		}
		id, err := t.put(ctx, f.dir)
		if err != nil {
			return cid.Undef, err
		}
		child = id
	}
	return child, nil
}

// resolve walks path from root and returns the node at its end.
func (t *Tree) resolve(ctx context.Context, root cid.Cid, path common.Path) (Node, cid.Cid, error) {
	if err := path.Validate(); err != nil {
		return nil, cid.Undef, err
	}
	cur := root
	n, err := t.Load(ctx, root)
	if err != nil {
		return nil, cid.Undef, err
	}
	for i, seg := range path {
		d, ok := n.(*Directory)
		if !ok {
			return nil, cid.Undef, fmt.Errorf("%w: %s", common.ErrNotADirectory, path[:i])
		}
		next, ok := d.Entries[seg]
		if !ok {
			return nil, cid.Undef, fmt.Errorf("%w: %s", common.ErrNotFound, path[:i+1])
		}
		if n, err = t.Load(ctx, next); err != nil {
			return nil, cid.Undef, err
		}
		cur = next
	}
	return n, cur, nil
}
