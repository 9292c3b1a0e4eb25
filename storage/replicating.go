package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	"go.uber.org/multierr"

	"xdao.co/dagfs/cidutil"
)

// NamedCAS associates a CAS with a stable backend name.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes every block to all backends and reads from the first
// that has it.
//
// Writes run concurrently and must all return the CID computed locally from
// the bytes; any other CID is ErrCIDMismatch.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = (*ReplicatingCAS)(nil)

// PutAll writes bytes to all backends. It returns the CID computed from the
// bytes and the CID each backend returned, keyed by backend name. Failures
// from several backends are combined.
func (r ReplicatingCAS) PutAll(ctx context.Context, bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: ReplicatingCAS has no backends")
	}
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs error
		out  = make(map[string]cid.Cid, len(r.Backends))
	)
	for _, b := range r.Backends {
		wg.Add(1)
		go func(b NamedCAS) {
			defer wg.Done()
			got, err := b.CAS.Put(ctx, bytes)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = multierr.Append(errs, fmt.Errorf("storage: backend %q: %w", b.Name, err))
			case !got.Equals(want):
				out[b.Name] = got
				errs = multierr.Append(errs, fmt.Errorf("storage: backend %q returned %s: %w", b.Name, got, ErrCIDMismatch))
			default:
				out[b.Name] = got
			}
		}(b)
	}
	wg.Wait()
	if errs != nil {
		return cid.Undef, out, errs
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(ctx context.Context, bytes []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, bytes)
	return id, err
}

func (r ReplicatingCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, b := range r.Backends {
		if b.CAS == nil {
			continue
		}
		out, err := b.CAS.Get(ctx, id)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(ctx context.Context, id cid.Cid) bool {
	for _, b := range r.Backends {
		if b.CAS != nil && b.CAS.Has(ctx, id) {
			return true
		}
	}
	return false
}

// Repair copies the block id into every backend that lacks it and returns
// the names of the backends it wrote to.
func (r ReplicatingCAS) Repair(ctx context.Context, id cid.Cid) ([]string, error) {
	data, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var repaired []string
	for _, b := range r.Backends {
		if b.CAS == nil || b.CAS.Has(ctx, id) {
			continue
		}
		if _, err := b.CAS.Put(ctx, data); err != nil {
			return repaired, fmt.Errorf("storage: repair %q: %w", b.Name, err)
		}
		repaired = append(repaired, b.Name)
	}
	return repaired, nil
}
