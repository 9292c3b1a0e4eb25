package storage

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	gocache "github.com/patrickmn/go-cache"
)

// Cached is a read-through cache in front of a CAS.
//
// Blocks are immutable, so a cached entry never needs invalidation; expiry only
// bounds memory use.
type Cached struct {
	backend CAS
	blocks  *gocache.Cache
}

var _ CAS = (*Cached)(nil)

// NewCached wraps backend with a cache whose entries expire after ttl.
// A zero ttl keeps entries for the life of the process.
func NewCached(backend CAS, ttl time.Duration) *Cached {
	expiry := ttl
	cleanup := 2 * ttl
	if ttl <= 0 {
		expiry = gocache.NoExpiration
		cleanup = 0
	}
	return &Cached{backend: backend, blocks: gocache.New(expiry, cleanup)}
}

func (c *Cached) Put(ctx context.Context, bytes []byte) (cid.Cid, error) {
	id, err := c.backend.Put(ctx, bytes)
	if err != nil {
		return cid.Undef, err
	}
	c.blocks.SetDefault(id.KeyString(), bytes)
	return id, nil
}

func (c *Cached) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	if v, ok := c.blocks.Get(id.KeyString()); ok {
		return v.([]byte), nil
	}
	b, err := c.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.blocks.SetDefault(id.KeyString(), b)
	return b, nil
}

func (c *Cached) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	if _, ok := c.blocks.Get(id.KeyString()); ok {
		return true
	}
	return c.backend.Has(ctx, id)
}

// Len reports the number of cached blocks.
func (c *Cached) Len() int { return c.blocks.ItemCount() }
