package private

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/hamt"
	"xdao.co/dagfs/nameaccumulator"
	"xdao.co/dagfs/ratchet"
)

// Mkdir creates path and any missing parents. If the directory already
// exists the root is returned unchanged.
func (t *Tree) Mkdir(ctx context.Context, root Root, path common.Path, now time.Time) (Root, error) {
	if err := path.Validate(); err != nil {
		return Root{}, err
	}
	forest := t.forest(root)
	frames, created, err := t.walk(ctx, forest, root, path, true, now)
	if err != nil {
		return Root{}, err
	}
	if !created {
		return root, nil
	}
	next, err := t.fixUp(ctx, forest, frames, path, now)
	if err != nil {
		return Root{}, err
	}
	t.log.Debug("private mkdir", zap.Stringer("path", path), zap.Stringer("forest", next.Forest))
	return next, nil
}

// Write stores data as the file at path, creating parents as needed. An
// existing file keeps its identity and advances to a new revision.
func (t *Tree) Write(ctx context.Context, root Root, path common.Path, data []byte, now time.Time) (Root, error) {
	if err := path.Validate(); err != nil {
		return Root{}, err
	}
	dirs, name, err := path.SplitLast()
	if err != nil {
		return Root{}, err
	}
	forest := t.forest(root)
	frames, _, err := t.walk(ctx, forest, root, dirs, true, now)
	if err != nil {
		return Root{}, err
	}
	parent := frames[len(frames)-1].dir

	f := &File{id: common.NextNodeID()}
	if ref, ok := parent.Entries[name]; ok {
		parentName := parent.header.Name
		existing, err := t.loadNode(ctx, forest, ref, &parentName)
		if err != nil {
			return Root{}, err
		}
		if existing.Kind() != common.KindFile {
			return Root{}, fmt.Errorf("%w: %s", common.ErrNotAFile, path)
		}
		f.header = existing.Header().advance()
		f.Metadata = existing.Meta().Touch(now)
		f.previous = linkTo(ref)
	} else {
		if f.header, err = newHeader(t.rand, parent.header.Name); err != nil {
			return Root{}, err
		}
		f.Metadata = common.NewMetadata(common.KindFile, now)
	}
	if err := t.storeFileData(ctx, f, data); err != nil {
		return Root{}, err
	}
	ref, forest, err := t.storeNode(ctx, forest, f)
	if err != nil {
		return Root{}, err
	}
	parent.Entries[name] = ref

	next, err := t.fixUp(ctx, forest, frames, dirs, now)
	if err != nil {
		return Root{}, err
	}
	t.log.Debug("private write", zap.Stringer("path", path), zap.Int("size", len(data)), zap.Stringer("forest", next.Forest))
	return next, nil
}

// Read returns the content of the file at path.
func (t *Tree) Read(ctx context.Context, root Root, path common.Path) ([]byte, error) {
	n, _, err := t.resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}
	f, ok := n.(*File)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrNotAFile, path)
	}
	return t.ReadFile(ctx, f)
}

// Ls lists the directory at path sorted by name.
func (t *Tree) Ls(ctx context.Context, root Root, path common.Path) ([]common.Entry, error) {
	n, _, err := t.resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*Directory)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrNotADirectory, path)
	}
	names := make([]string, 0, len(d.Entries))
	for name := range d.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	forest := t.forest(root)
	parentName := d.header.Name
	out := make([]common.Entry, 0, len(names))
	for _, name := range names {
		child, err := t.loadNode(ctx, forest, d.Entries[name], &parentName)
		if err != nil {
			return nil, err
		}
		out = append(out, common.Entry{Name: name, Metadata: child.Meta()})
	}
	return out, nil
}

// Rm unlinks the node at path. Its revisions stay in the forest.
func (t *Tree) Rm(ctx context.Context, root Root, path common.Path, now time.Time) (Root, error) {
	if err := path.Validate(); err != nil {
		return Root{}, err
	}
	next, _, _, err := t.detach(ctx, root, path, now)
	if err != nil {
		return Root{}, err
	}
	t.log.Debug("private rm", zap.Stringer("path", path), zap.Stringer("forest", next.Forest))
	return next, nil
}

func (t *Tree) detach(ctx context.Context, root Root, path common.Path, now time.Time) (Root, PrivateRef, nameaccumulator.Name, error) {
	dirs, name, err := path.SplitLast()
	if err != nil {
		return Root{}, PrivateRef{}, nameaccumulator.Name{}, fmt.Errorf("%w: cannot remove the root", common.ErrInvalidArgument)
	}
	forest := t.forest(root)
	frames, _, err := t.walk(ctx, forest, root, dirs, false, now)
	if err != nil {
		return Root{}, PrivateRef{}, nameaccumulator.Name{}, err
	}
	parent := frames[len(frames)-1].dir
	removed, ok := parent.Entries[name]
	if !ok {
		return Root{}, PrivateRef{}, nameaccumulator.Name{}, fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	delete(parent.Entries, name)
	next, err := t.fixUp(ctx, forest, frames, dirs, now)
	if err != nil {
		return Root{}, PrivateRef{}, nameaccumulator.Name{}, err
	}
	return next, removed, parent.header.Name, nil
}

// BasicMv moves the subtree at from to to. The moved nodes are re-keyed:
// their names are recomputed under the new parent and their ratchets start
// over, so refs to the old location do not open the new one.
func (t *Tree) BasicMv(ctx context.Context, root Root, from, to common.Path, now time.Time) (Root, error) {
	if err := from.Validate(); err != nil {
		return Root{}, err
	}
	if err := to.Validate(); err != nil {
		return Root{}, err
	}
	if from.IsRoot() || to.IsRoot() {
		return Root{}, fmt.Errorf("%w: cannot move the root", common.ErrInvalidArgument)
	}
	if to.HasPrefix(from) {
		return Root{}, fmt.Errorf("%w: cannot move %s into itself", common.ErrInvalidArgument, from)
	}
	toDirs, toName, _ := to.SplitLast()
	if _, _, err := t.walk(ctx, t.forest(root), root, toDirs, false, now); err != nil {
		return Root{}, err
	}

	removedRoot, moved, oldParent, err := t.detach(ctx, root, from, now)
	if err != nil {
		return Root{}, err
	}
	forest := t.forest(removedRoot)
	frames, _, err := t.walk(ctx, forest, removedRoot, toDirs, false, now)
	if err != nil {
		return Root{}, err
	}
	parent := frames[len(frames)-1].dir
	if _, exists := parent.Entries[toName]; exists {
		return Root{}, fmt.Errorf("%w: %s", common.ErrAlreadyExists, to)
	}

	ref, forest, err := t.reparent(ctx, forest, moved, oldParent, parent.header.Name, now, true)
	if err != nil {
		return Root{}, err
	}
	parent.Entries[toName] = ref

	next, err := t.fixUp(ctx, forest, frames, toDirs, now)
	if err != nil {
		return Root{}, err
	}
	t.log.Debug("private mv", zap.Stringer("from", from), zap.Stringer("to", to), zap.Stringer("forest", next.Forest))
	return next, nil
}

// reparent re-files the subtree at ref under newParent with fresh ratchets.
// Only the top of the moved subtree has its mtime bumped.
func (t *Tree) reparent(ctx context.Context, forest *hamt.HAMT, ref PrivateRef, oldParent, newParent nameaccumulator.Name, now time.Time, top bool) (PrivateRef, *hamt.HAMT, error) {
	n, err := t.loadNode(ctx, forest, ref, &oldParent)
	if err != nil {
		return PrivateRef{}, nil, err
	}
	old := n.Header()
	r, err := ratchet.New(t.rand)
	if err != nil {
		return PrivateRef{}, nil, err
	}
	h := Header{INumber: old.INumber, Ratchet: r, Name: newParent.WithSegments(old.INumber)}

	switch n := n.(type) {
	case *Directory:
		d := n.clone()
		d.header, d.previous = h, backLink{}
		for name, childRef := range n.Entries {
			var moved PrivateRef
			if moved, forest, err = t.reparent(ctx, forest, childRef, old.Name, h.Name, now, false); err != nil {
				return PrivateRef{}, nil, err
			}
			d.Entries[name] = moved
		}
		if top {
			d.Metadata = d.Metadata.Touch(now)
		}
		return t.storeNode(ctx, forest, d)
	case *File:
		f := *n
		f.id = common.NextNodeID()
		f.header, f.previous = h, backLink{}
		if top {
			f.Metadata = f.Metadata.Touch(now)
		}
		return t.storeNode(ctx, forest, &f)
	default:
		return PrivateRef{}, nil, fmt.Errorf("%w: unknown node type %T", common.ErrInvalidArgument, n)
	}
}

// GetNode returns the node at path.
func (t *Tree) GetNode(ctx context.Context, root Root, path common.Path) (Node, error) {
	n, _, err := t.resolve(ctx, root, path)
	return n, err
}

// Lookup returns the ref of the node at path.
func (t *Tree) Lookup(ctx context.Context, root Root, path common.Path) (PrivateRef, error) {
	_, ref, err := t.resolve(ctx, root, path)
	return ref, err
}

// Stat returns the metadata of the node at path.
func (t *Tree) Stat(ctx context.Context, root Root, path common.Path) (common.Metadata, error) {
	n, _, err := t.resolve(ctx, root, path)
	if err != nil {
		return common.Metadata{}, err
	}
	return n.Meta(), nil
}
