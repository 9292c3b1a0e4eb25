// Package memcas is an in-memory CAS.
//
// It doubles as the write arena for batch construction: callers can build a
// tree against a memcas.CAS and later Flush the blocks into a durable store.
package memcas

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

// CAS keeps blocks in a map keyed by CID. It is safe for concurrent use.
type CAS struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

var _ storage.CAS = (*CAS)(nil)

func New() *CAS {
	return &CAS{blocks: make(map[cid.Cid][]byte)}
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.blocks[id]; ok {
		if !bytes.Equal(existing, data) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.blocks[id] = append([]byte(nil), data...)
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.blocks[id]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (c *CAS) Has(_ context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blocks[id]
	return ok
}

// Len returns the number of stored blocks.
func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Keys returns every stored CID in a stable order.
func (c *CAS) Keys() []cid.Cid {
	c.mu.RLock()
	out := make([]cid.Cid, 0, len(c.blocks))
	for id := range c.blocks {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].KeyString() < out[j].KeyString() })
	return out
}

// Flush copies every block into dst. Blocks are written in CID order so a
// partially failed flush is resumable.
func (c *CAS) Flush(ctx context.Context, dst storage.CAS) (int, error) {
	n := 0
	for _, id := range c.Keys() {
		if dst.Has(ctx, id) {
			continue
		}
		b, err := c.Get(ctx, id)
		if err != nil {
			return n, err
		}
		if _, err := dst.Put(ctx, b); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
