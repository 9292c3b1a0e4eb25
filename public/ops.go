package public

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/dagfs/common"
)

// Mkdir creates path and any missing parents. If the directory already
// exists the root is returned unchanged.
func (t *Tree) Mkdir(ctx context.Context, root cid.Cid, path common.Path, now time.Time) (cid.Cid, error) {
	if err := path.Validate(); err != nil {
		return cid.Undef, err
	}
	frames, created, err := t.walk(ctx, root, path, true, now)
	if err != nil {
		return cid.Undef, err
	}
	if !created {
		return root, nil
	}
	newRoot, err := t.fixUp(ctx, frames, path, now)
	if err != nil {
		return cid.Undef, err
	}
	t.log.Debug("mkdir", zap.Stringer("path", path), zap.Stringer("root", newRoot))
	return newRoot, nil
}

// Write stores a file at path pointing at content, creating parents as
// needed. An existing file is replaced; its creation time is kept.
func (t *Tree) Write(ctx context.Context, root cid.Cid, path common.Path, content cid.Cid, now time.Time) (cid.Cid, error) {
	if err := path.Validate(); err != nil {
		return cid.Undef, err
	}
	if !content.Defined() {
		return cid.Undef, fmt.Errorf("%w: undefined content cid", common.ErrInvalidArgument)
	}
	dirs, name, err := path.SplitLast()
	if err != nil {
		return cid.Undef, err
	}
	frames, _, err := t.walk(ctx, root, dirs, true, now)
	if err != nil {
		return cid.Undef, err
	}
	parent := frames[len(frames)-1].dir

	file := &File{id: common.NextNodeID(), Metadata: common.NewMetadata(common.KindFile, now), Content: content}
	if existing, ok := parent.Entries[name]; ok {
		n, err := t.Load(ctx, existing)
		if err != nil {
			return cid.Undef, err
		}
		if n.Kind() != common.KindFile {
			return cid.Undef, fmt.Errorf("%w: %s", common.ErrNotAFile, path)
		}
		file.Metadata = n.Meta().Touch(now)
		file.Previous = []cid.Cid{existing}
	}
	fileID, err := t.put(ctx, file)
	if err != nil {
		return cid.Undef, err
	}
	parent.Entries[name] = fileID

	newRoot, err := t.fixUp(ctx, frames, dirs, now)
	if err != nil {
		return cid.Undef, err
	}
	t.log.Debug("write", zap.Stringer("path", path), zap.Stringer("content", content), zap.Stringer("root", newRoot))
	return newRoot, nil
}

// Read returns the content CID of the file at path.
func (t *Tree) Read(ctx context.Context, root cid.Cid, path common.Path) (cid.Cid, error) {
	n, _, err := t.resolve(ctx, root, path)
	if err != nil {
		return cid.Undef, err
	}
	f, ok := n.(*File)
	if !ok {
		return cid.Undef, fmt.Errorf("%w: %s", common.ErrNotAFile, path)
	}
	return f.Content, nil
}

// Ls lists the directory at path sorted by name.
func (t *Tree) Ls(ctx context.Context, root cid.Cid, path common.Path) ([]common.Entry, error) {
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

	out := make([]common.Entry, 0, len(names))
	for _, name := range names {
		child, err := t.Load(ctx, d.Entries[name])
		if err != nil {
			return nil, err
		}
		out = append(out, common.Entry{Name: name, Metadata: child.Meta()})
	}
	return out, nil
}

// Rm removes the node at path with its whole subtree.
func (t *Tree) Rm(ctx context.Context, root cid.Cid, path common.Path, now time.Time) (cid.Cid, error) {
	if err := path.Validate(); err != nil {
		return cid.Undef, err
	}
	newRoot, _, err := t.detach(ctx, root, path, now)
	if err != nil {
		return cid.Undef, err
	}
	t.log.Debug("rm", zap.Stringer("path", path), zap.Stringer("root", newRoot))
	return newRoot, nil
}

// detach unlinks path and returns the new root and the CID that was
// unlinked.
func (t *Tree) detach(ctx context.Context, root cid.Cid, path common.Path, now time.Time) (cid.Cid, cid.Cid, error) {
	dirs, name, err := path.SplitLast()
	if err != nil {
		return cid.Undef, cid.Undef, fmt.Errorf("%w: cannot remove the root", common.ErrInvalidArgument)
	}
	frames, _, err := t.walk(ctx, root, dirs, false, now)
	if err != nil {
		return cid.Undef, cid.Undef, err
	}
	parent := frames[len(frames)-1].dir
	removed, ok := parent.Entries[name]
	if !ok {
		return cid.Undef, cid.Undef, fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	delete(parent.Entries, name)
	newRoot, err := t.fixUp(ctx, frames, dirs, now)
	if err != nil {
		return cid.Undef, cid.Undef, err
	}
	return newRoot, removed, nil
}

// BasicMv moves the subtree at from to to by removing it and linking it
// again. The destination's parent must already exist and the destination
// itself must not.
func (t *Tree) BasicMv(ctx context.Context, root cid.Cid, from, to common.Path, now time.Time) (cid.Cid, error) {
	if err := from.Validate(); err != nil {
		return cid.Undef, err
	}
	if err := to.Validate(); err != nil {
		return cid.Undef, err
	}
	if from.IsRoot() || to.IsRoot() {
		return cid.Undef, fmt.Errorf("%w: cannot move the root", common.ErrInvalidArgument)
	}
	if to.HasPrefix(from) {
		return cid.Undef, fmt.Errorf("%w: cannot move %s into itself", common.ErrInvalidArgument, from)
	}
	// Validate the destination against the original root so a failure does
	// not leave a half-finished move.
	toDirs, toName, _ := to.SplitLast()
	if _, _, err := t.walk(ctx, root, toDirs, false, now); err != nil {
		return cid.Undef, err
	}

	removedRoot, moved, err := t.detach(ctx, root, from, now)
	if err != nil {
		return cid.Undef, err
	}
	frames, _, err := t.walk(ctx, removedRoot, toDirs, false, now)
	if err != nil {
		return cid.Undef, err
	}
	parent := frames[len(frames)-1].dir
	if _, exists := parent.Entries[toName]; exists {
		return cid.Undef, fmt.Errorf("%w: %s", common.ErrAlreadyExists, to)
	}

	node, err := t.Load(ctx, moved)
	if err != nil {
		return cid.Undef, err
	}
	touched, err := t.touch(ctx, node, moved, now)
	if err != nil {
		return cid.Undef, err
	}
	parent.Entries[toName] = touched

	newRoot, err := t.fixUp(ctx, frames, toDirs, now)
	if err != nil {
		return cid.Undef, err
	}
	t.log.Debug("mv", zap.Stringer("from", from), zap.Stringer("to", to), zap.Stringer("root", newRoot))
	return newRoot, nil
}

// touch re-stores n with a new mtime, linking its previous revision.
func (t *Tree) touch(ctx context.Context, n Node, old cid.Cid, now time.Time) (cid.Cid, error) {
	switch n := n.(type) {
	case *Directory:
		c := n.clone()
		c.Metadata = c.Metadata.Touch(now)
		c.Previous = []cid.Cid{old}
		return t.put(ctx, c)
	case *File:
		return t.put(ctx, &File{
			id:       common.NextNodeID(),
			Metadata: n.Metadata.Touch(now),
			Content:  n.Content,
			Previous: []cid.Cid{old},
		})
	default:
		return cid.Undef, fmt.Errorf("%w: unknown node type %T", common.ErrInvalidArgument, n)
	}
}

// GetNode returns the node at path.
func (t *Tree) GetNode(ctx context.Context, root cid.Cid, path common.Path) (Node, error) {
	n, _, err := t.resolve(ctx, root, path)
	return n, err
}

// Stat returns the metadata of the node at path.
func (t *Tree) Stat(ctx context.Context, root cid.Cid, path common.Path) (common.Metadata, error) {
	n, _, err := t.resolve(ctx, root, path)
	if err != nil {
		return common.Metadata{}, err
	}
	return n.Meta(), nil
}

// Lookup returns the CID of the node at path.
func (t *Tree) Lookup(ctx context.Context, root cid.Cid, path common.Path) (cid.Cid, error) {
	_, id, err := t.resolve(ctx, root, path)
	return id, err
}

// History follows previous links from the node at path, newest first, up
// to limit entries (0 for no limit). The first entry is the node itself.
func (t *Tree) History(ctx context.Context, root cid.Cid, path common.Path, limit int) ([]cid.Cid, error) {
	_, id, err := t.resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}
	out := []cid.Cid{id}
	for limit <= 0 || len(out) < limit {
		n, err := t.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		prev := n.PreviousCIDs()
		if len(prev) == 0 {
			break
		}
		id = prev[0]
		out = append(out, id)
	}
	return out, nil
}
