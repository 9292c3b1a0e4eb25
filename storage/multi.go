package storage

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// MultiCAS reads through an ordered list of stores and writes to the first.
//
// A typical stack puts a fast local store first and slower or remote stores
// after it. Callers must supply a fixed order: the first store holding a
// block answers.
type MultiCAS struct {
	Adapters []CAS

	// ReadRepair copies a block found in a later store into the first one,
	// so the next read is local. Copy failures are ignored.
	ReadRepair bool
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(ctx context.Context, bytes []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, errors.New("storage: MultiCAS has no adapters")
	}
	return m.Adapters[0].Put(ctx, bytes)
}

func (m MultiCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for i, cas := range m.Adapters {
		b, err := cas.Get(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if i > 0 && m.ReadRepair {
			_, _ = m.Adapters[0].Put(ctx, b)
		}
		return b, nil
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(ctx context.Context, id cid.Cid) bool {
	for _, cas := range m.Adapters {
		if cas.Has(ctx, id) {
			return true
		}
	}
	return false
}
