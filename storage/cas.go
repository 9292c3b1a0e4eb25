package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is a minimal content-addressable block store.
//
// Contract:
// - Put MUST be idempotent.
// - Stored blocks MUST be immutable.
// - CIDs MUST be derived from the bytes written (CIDv1, raw codec, sha2-256).
// - Get MUST return ErrNotFound when the CID is absent.
//
// Implementations suspend only at I/O boundaries; ctx cancellation aborts the
// call without side effects visible to callers holding older roots.
type CAS interface {
	Put(ctx context.Context, bytes []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) bool
}
