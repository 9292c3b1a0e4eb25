package hamt

import (
	"bytes"
	"context"
	"sort"

	"github.com/ipfs/go-cid"
)

// ChangeKind classifies one entry of a Diff.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Change is a key whose value set differs between two versions. Old is nil
// for Added and New is nil for Removed.
type Change struct {
	Kind ChangeKind
	Key  []byte
	Old  []cid.Cid
	New  []cid.Cid
}

// Diff reports what turns base into h, sorted by key. Subtrees with equal
// CIDs are skipped without loading them, so the cost follows the size of
// the change rather than the size of the trie.
func (h *HAMT) Diff(ctx context.Context, base *HAMT) ([]Change, error) {
	var changes []Change
	if err := diffLinks(ctx, h, h.root, base, base.root, &changes); err != nil {
		return nil, err
	}
	sort.Slice(changes, func(i, j int) bool { return bytes.Compare(changes[i].Key, changes[j].Key) < 0 })
	return changes, nil
}

func diffLinks(ctx context.Context, h *HAMT, id cid.Cid, base *HAMT, baseID cid.Cid, out *[]Change) error {
	if id.Equals(baseID) {
		return nil
	}
	n, err := h.load(ctx, id)
	if err != nil {
		return err
	}
	bn, err := base.load(ctx, baseID)
	if err != nil {
		return err
	}
	for i := 0; i < fanout; i++ {
		pos, ok := n.index(i)
		bpos, bok := bn.index(i)
		switch {
		case !ok && !bok:
		case ok && !bok:
			pairs, err := h.pairsUnder(ctx, n.pointers[pos])
			if err != nil {
				return err
			}
			diffPairs(pairs, nil, out)
		case !ok && bok:
			pairs, err := base.pairsUnder(ctx, bn.pointers[bpos])
			if err != nil {
				return err
			}
			diffPairs(nil, pairs, out)
		default:
			p, bp := n.pointers[pos], bn.pointers[bpos]
			if p.isLink() && bp.isLink() {
				if err := diffLinks(ctx, h, p.link, base, bp.link, out); err != nil {
					return err
				}
				continue
			}
			pairs, err := h.pairsUnder(ctx, p)
			if err != nil {
				return err
			}
			bpairs, err := base.pairsUnder(ctx, bp)
			if err != nil {
				return err
			}
			diffPairs(pairs, bpairs, out)
		}
	}
	return nil
}

// pairsUnder flattens a bucket or a whole linked subtree.
func (h *HAMT) pairsUnder(ctx context.Context, p pointer) ([]Pair, error) {
	if !p.isLink() {
		return p.bucket, nil
	}
	var pairs []Pair
	err := h.walk(ctx, p.link, func(key []byte, values []cid.Cid) error {
		pairs = append(pairs, Pair{Key: key, Values: values})
		return nil
	})
	return pairs, err
}

func diffPairs(pairs, base []Pair, out *[]Change) {
	old := make(map[string]Pair, len(base))
	for _, p := range base {
		old[string(p.Key)] = p
	}
	for _, p := range pairs {
		bp, ok := old[string(p.Key)]
		if !ok {
			*out = append(*out, Change{Kind: Added, Key: p.Key, New: p.Values})
			continue
		}
		delete(old, string(p.Key))
		if !sameValues(p.Values, bp.Values) {
			*out = append(*out, Change{Kind: Modified, Key: p.Key, Old: bp.Values, New: p.Values})
		}
	}
	for _, bp := range base {
		if _, ok := old[string(bp.Key)]; ok {
			*out = append(*out, Change{Kind: Removed, Key: bp.Key, Old: bp.Values})
		}
	}
}

// sameValues compares two sorted value sets.
func sameValues(a, b []cid.Cid) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}
