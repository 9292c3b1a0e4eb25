// Package hamt is a persistent hash array mapped trie stored in a block
// store. Each key maps to a set of CIDs. Updates return a new root and share
// every untouched node with the previous version, and the layout depends
// only on the stored contents, never on the order of updates.
package hamt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	"lukechampine.com/blake3"

	"xdao.co/dagfs/storage"
)

var (
	ErrNotFound = errors.New("hamt: key not found")
	ErrMaxDepth = errors.New("hamt: maximum depth exceeded")
)

// HAMT is an immutable handle on one version of the trie.
type HAMT struct {
	store storage.CAS
	root  cid.Cid
}

// New stores an empty trie.
func New(ctx context.Context, store storage.CAS) (*HAMT, error) {
	h := &HAMT{store: store}
	id, err := h.put(ctx, &node{})
	if err != nil {
		return nil, err
	}
	h.root = id
	return h, nil
}

// Load opens the trie rooted at root. The root block is fetched lazily.
func Load(store storage.CAS, root cid.Cid) *HAMT {
	return &HAMT{store: store, root: root}
}

func (h *HAMT) Root() cid.Cid { return h.root }

func hashKey(key []byte) []byte {
	sum := blake3.Sum256(key)
	return sum[:]
}

// Get returns the value set stored under key.
func (h *HAMT) Get(ctx context.Context, key []byte) ([]cid.Cid, error) {
	hash := hashKey(key)
	id := h.root
	for depth := 0; depth < maxDepth; depth++ {
		n, err := h.load(ctx, id)
		if err != nil {
			return nil, err
		}
		pos, ok := n.index(nibble(hash, depth))
		if !ok {
			return nil, ErrNotFound
		}
		p := n.pointers[pos]
		if p.isLink() {
			id = p.link
			continue
		}
		i, found := findPair(p.bucket, key)
		if !found {
			return nil, ErrNotFound
		}
		return append([]cid.Cid(nil), p.bucket[i].Values...), nil
	}
	return nil, ErrMaxDepth
}

func (h *HAMT) Has(ctx context.Context, key []byte) (bool, error) {
	_, err := h.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Put adds value to the set under key.
func (h *HAMT) Put(ctx context.Context, key []byte, value cid.Cid) (*HAMT, error) {
	root, err := h.load(ctx, h.root)
	if err != nil {
		return nil, err
	}
	updated, changed, err := h.insert(ctx, root, hashKey(key), 0, key, []cid.Cid{value})
	if err != nil {
		return nil, err
	}
	if !changed {
		return h, nil
	}
	return h.commit(ctx, updated)
}

// Remove deletes key and returns its former value set.
func (h *HAMT) Remove(ctx context.Context, key []byte) (*HAMT, []cid.Cid, error) {
	root, err := h.load(ctx, h.root)
	if err != nil {
		return nil, nil, err
	}
	updated, removed, err := h.remove(ctx, root, hashKey(key), 0, key)
	if err != nil {
		return nil, nil, err
	}
	next, err := h.commit(ctx, updated)
	if err != nil {
		return nil, nil, err
	}
	return next, removed, nil
}

// ForEach visits every pair in hash order.
func (h *HAMT) ForEach(ctx context.Context, fn func(key []byte, values []cid.Cid) error) error {
	return h.walk(ctx, h.root, fn)
}

func (h *HAMT) walk(ctx context.Context, id cid.Cid, fn func([]byte, []cid.Cid) error) error {
	n, err := h.load(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range n.pointers {
		if p.isLink() {
			if err := h.walk(ctx, p.link, fn); err != nil {
				return err
			}
			continue
		}
		for _, pair := range p.bucket {
			if err := fn(pair.Key, append([]cid.Cid(nil), pair.Values...)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *HAMT) commit(ctx context.Context, n *node) (*HAMT, error) {
	id, err := h.put(ctx, n)
	if err != nil {
		return nil, err
	}
	return &HAMT{store: h.store, root: id}, nil
}

func (h *HAMT) insert(ctx context.Context, n *node, hash []byte, depth int, key []byte, values []cid.Cid) (*node, bool, error) {
	if depth >= maxDepth {
		return nil, false, ErrMaxDepth
	}
	idx := nibble(hash, depth)
	pos, present := n.index(idx)
	out := n.clone()

	if !present {
		out.insertPointer(idx, pos, pointer{bucket: []Pair{{Key: key, Values: values}}})
		return out, true, nil
	}

	p := n.pointers[pos]
	if p.isLink() {
		child, err := h.load(ctx, p.link)
		if err != nil {
			return nil, false, err
		}
		updated, changed, err := h.insert(ctx, child, hash, depth+1, key, values)
		if err != nil || !changed {
			return n, changed, err
		}
		id, err := h.put(ctx, updated)
		if err != nil {
			return nil, false, err
		}
		out.pointers[pos] = pointer{link: id}
		return out, true, nil
	}

	bucket := append([]Pair(nil), p.bucket...)
	i, found := findPair(bucket, key)
	if found {
		merged, changed := bucket[i].Values, false
		for _, v := range values {
			var added bool
			merged, added = addValue(merged, v)
			changed = changed || added
		}
		if !changed {
			return n, false, nil
		}
		bucket[i] = Pair{Key: bucket[i].Key, Values: merged}
		out.pointers[pos] = pointer{bucket: bucket}
		return out, true, nil
	}
	if len(bucket) < bucketSize {
		bucket = append(bucket, Pair{})
		copy(bucket[i+1:], bucket[i:])
		bucket[i] = Pair{Key: key, Values: values}
		out.pointers[pos] = pointer{bucket: bucket}
		return out, true, nil
	}

	// Bucket is full: push everything one level down.
	child := &node{}
	var err error
	for _, pair := range append(bucket, Pair{Key: key, Values: values}) {
		if child, _, err = h.insert(ctx, child, hashKey(pair.Key), depth+1, pair.Key, pair.Values); err != nil {
			return nil, false, err
		}
	}
	id, err := h.put(ctx, child)
	if err != nil {
		return nil, false, err
	}
	out.pointers[pos] = pointer{link: id}
	return out, true, nil
}

func (h *HAMT) remove(ctx context.Context, n *node, hash []byte, depth int, key []byte) (*node, []cid.Cid, error) {
	if depth >= maxDepth {
		return nil, nil, ErrMaxDepth
	}
	idx := nibble(hash, depth)
	pos, present := n.index(idx)
	if !present {
		return nil, nil, ErrNotFound
	}
	out := n.clone()
	p := n.pointers[pos]

	if !p.isLink() {
		i, found := findPair(p.bucket, key)
		if !found {
			return nil, nil, ErrNotFound
		}
		removed := p.bucket[i].Values
		if len(p.bucket) == 1 {
			out.removePointer(idx, pos)
			return out, removed, nil
		}
		bucket := append(append([]Pair(nil), p.bucket[:i]...), p.bucket[i+1:]...)
		out.pointers[pos] = pointer{bucket: bucket}
		return out, removed, nil
	}

	child, err := h.load(ctx, p.link)
	if err != nil {
		return nil, nil, err
	}
	updated, removed, err := h.remove(ctx, child, hash, depth+1, key)
	if err != nil {
		return nil, nil, err
	}

	// Collapse children small enough to have been a bucket, so the shape
	// stays a function of the contents.
	if pairs, ok := collapsible(updated); ok {
		if len(pairs) == 0 {
			out.removePointer(idx, pos)
		} else {
			out.pointers[pos] = pointer{bucket: pairs}
		}
		return out, removed, nil
	}
	id, err := h.put(ctx, updated)
	if err != nil {
		return nil, nil, err
	}
	out.pointers[pos] = pointer{link: id}
	return out, removed, nil
}

func collapsible(n *node) ([]Pair, bool) {
	var pairs []Pair
	for _, p := range n.pointers {
		if p.isLink() {
			return nil, false
		}
		pairs = append(pairs, p.bucket...)
		if len(pairs) > bucketSize {
			return nil, false
		}
	}
	sortPairs(pairs)
	return pairs, true
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0 })
}

func (h *HAMT) load(ctx context.Context, id cid.Cid) (*node, error) {
	b, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("hamt: load %s: %w", id, err)
	}
	n, err := decodeNode(b)
	if err != nil {
		return nil, fmt.Errorf("hamt: load %s: %w", id, err)
	}
	return n, nil
}

func (h *HAMT) put(ctx context.Context, n *node) (cid.Cid, error) {
	b, err := encodeNode(n)
	if err != nil {
		return cid.Undef, err
	}
	id, err := h.store.Put(ctx, b)
	if err != nil {
		return cid.Undef, fmt.Errorf("hamt: store node: %w", err)
	}
	return id, nil
}
