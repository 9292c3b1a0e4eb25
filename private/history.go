package private

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/hamt"
	"xdao.co/dagfs/nameaccumulator"
	"xdao.co/dagfs/ratchet"
)

// Revision is one stored version of a node.
type Revision struct {
	// Offset counts advances from the ratchet the history was requested
	// from.
	Offset uint64
	Ref    PrivateRef
	Node   Node
}

// SearchLatest finds the newest revision of root's directory filed in
// root.Forest. A holder of an older root can use it to catch up with a
// forest published by another writer.
func (t *Tree) SearchLatest(ctx context.Context, root Root) (Root, error) {
	ref, err := t.LatestRef(ctx, root.Forest, root.Ref)
	if err != nil {
		return Root{}, err
	}
	return Root{Forest: root.Forest, Ref: ref}, nil
}

// LatestRef seeks forward from ref through the forest and returns the ref of
// the newest revision of the same node.
func (t *Tree) LatestRef(ctx context.Context, forestCID cid.Cid, ref PrivateRef) (PrivateRef, error) {
	forest := hamt.Load(t.store, forestCID)
	n, err := t.loadNode(ctx, forest, ref, nil)
	if err != nil {
		return PrivateRef{}, err
	}
	h := n.Header()

	s := ratchet.NewSeeker(h.Ratchet)
	for !s.Done() {
		label := labelFor(t.setup, h.Name, s.Current())
		ok, err := forest.Has(ctx, label[:])
		if err != nil {
			return PrivateRef{}, err
		}
		s.Step(ok)
	}
	if s.Offset() == 0 {
		return ref, nil
	}
	latest, err := t.refAt(ctx, forest, h.Name, s.Result())
	if err != nil {
		return PrivateRef{}, err
	}
	t.log.Debug("private search latest", zap.Uint64("advanced", s.Offset()))
	return latest, nil
}

// refAt builds the ref for the revision at r of the node called name.
// Several content blocks under one label mean concurrent writers; the
// lowest CID is chosen so every reader picks the same one.
func (t *Tree) refAt(ctx context.Context, forest *hamt.HAMT, name nameaccumulator.Name, r ratchet.Ratchet) (PrivateRef, error) {
	label := labelFor(t.setup, name, r)
	values, err := forest.Get(ctx, label[:])
	if err != nil {
		if errors.Is(err, hamt.ErrNotFound) {
			return PrivateRef{}, fmt.Errorf("%w: revision %s", common.ErrNotFound, r)
		}
		return PrivateRef{}, err
	}
	return PrivateRef{Label: label, TemporalKey: temporalKeyOf(r), ContentCID: values[0]}, nil
}

// maxHistoryPrealloc caps the slice History allocates up front; the distance
// between two ratchet states says nothing about how many revisions exist.
const maxHistoryPrealloc = 64

// History returns the revisions of the node at path from the one at since
// up to the current one, oldest first. since must be an earlier state of the
// node's ratchet; a state from another lineage fails with
// common.ErrDivergence. limit keeps only the newest entries when positive.
func (t *Tree) History(ctx context.Context, root Root, path common.Path, since ratchet.Ratchet, limit int) ([]Revision, error) {
	n, _, err := t.resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}
	h := n.Header()
	steps, err := ratchet.Steps(since, h.Ratchet)
	if err != nil {
		return nil, err
	}

	first := uint64(0)
	if limit > 0 && steps+1 > uint64(limit) {
		first = steps + 1 - uint64(limit)
	}
	forest := t.forest(root)
	out := make([]Revision, 0, min(steps-first+1, maxHistoryPrealloc))
	for k := first; k <= steps; k++ {
		r, err := since.Jump(k)
		if err != nil {
			return nil, err
		}
		ref, err := t.refAt(ctx, forest, h.Name, r)
		if err != nil {
			return nil, err
		}
		node, err := t.loadNode(ctx, forest, ref, nil)
		if err != nil {
			return nil, err
		}
		if k > 0 {
			older, err := since.Jump(k - 1)
			if err != nil {
				return nil, err
			}
			if _, err := t.OpenPrevious(node, temporalKeyOf(older)); err != nil {
				return nil, err
			}
		}
		out = append(out, Revision{Offset: k, Ref: ref, Node: node})
	}
	return out, nil
}

// CompareRoots orders two roots of the same tree by their root ratchets.
// Roots of unrelated trees are Incomparable.
func (t *Tree) CompareRoots(ctx context.Context, a, b Root) (ratchet.Ordering, error) {
	na, err := t.loadNode(ctx, t.forest(a), a.Ref, nil)
	if err != nil {
		return ratchet.Incomparable, err
	}
	nb, err := t.loadNode(ctx, t.forest(b), b.Ref, nil)
	if err != nil {
		return ratchet.Incomparable, err
	}
	if na.Header().INumber != nb.Header().INumber {
		return ratchet.Incomparable, nil
	}
	return ratchet.Compare(na.Header().Ratchet, nb.Header().Ratchet), nil
}
