// Package testkit holds a conformance suite every storage.CAS must pass.
package testkit

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

// NewCAS returns an empty store private to t.
type NewCAS func(t *testing.T) storage.CAS

// RunCASConformance checks the block store contract: CIDv1 raw sha2-256
// addressing, idempotent Put, ErrNotFound for absent blocks, and rejection
// of undefined CIDs.
func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("hello, dagfs storage")

		id, err := cas.Put(ctx, want)
		require.NoError(t, err)
		wantID, err := cidutil.CIDv1RawSHA256CID(want)
		require.NoError(t, err)
		require.Equal(t, wantID, id)

		got, err := cas.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		id1, err := cas.Put(ctx, []byte("same bytes"))
		require.NoError(t, err)
		id2, err := cas.Put(ctx, []byte("same bytes"))
		require.NoError(t, err)
		require.Equal(t, id1, id2)
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := cidutil.CIDv1RawSHA256CID(b)
		require.NoError(t, err)

		assert.False(t, cas.Has(ctx, id))
		_, err = cas.Get(ctx, id)
		require.True(t, storage.IsNotFound(err), "got %v", err)

		_, err = cas.Put(ctx, b)
		require.NoError(t, err)
		assert.True(t, cas.Has(ctx, id))
	})

	t.Run("EmptyBlock", func(t *testing.T) {
		cas := newCAS(t)
		id, err := cas.Put(ctx, []byte{})
		require.NoError(t, err)
		got, err := cas.Get(ctx, id)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	// Chunk-sized blocks are what large private files are split into.
	t.Run("LargeBlock", func(t *testing.T) {
		cas := newCAS(t)
		want := bytes.Repeat([]byte{0xa5, 0x5a, 0x00, 0xff}, 64<<10)
		id, err := cas.Put(ctx, want)
		require.NoError(t, err)
		got, err := cas.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, bytes.Equal(want, got))
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		cas := newCAS(t)
		var wg sync.WaitGroup
		ids := make([]cid.Cid, 8)
		errs := make([]error, len(ids))
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = cas.Put(ctx, []byte{byte(i % 2)})
			}(i)
		}
		wg.Wait()
		for i := range ids {
			require.NoError(t, errs[i])
			require.Equal(t, ids[i%2], ids[i])
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		assert.False(t, cas.Has(ctx, cid.Undef))
		_, err := cas.Get(ctx, cid.Undef)
		require.Error(t, err)
	})
}
