package memcas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/testkit"
)

func TestMemCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return New()
	})
}

func TestMemCAS_FlushCopiesEveryBlock(t *testing.T) {
	ctx := context.Background()
	arena := New()
	for _, s := range []string{"a", "b", "c"} {
		_, err := arena.Put(ctx, []byte(s))
		require.NoError(t, err)
	}

	dst := New()
	_, err := dst.Put(ctx, []byte("a"))
	require.NoError(t, err)

	n, err := arena.Flush(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 3, dst.Len())
	for _, id := range arena.Keys() {
		require.True(t, dst.Has(ctx, id))
	}
}

func TestMemCAS_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Put(ctx, []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemCAS_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := New()
	id, err := c.Put(ctx, []byte("immutable"))
	require.NoError(t, err)

	b, err := c.Get(ctx, id)
	require.NoError(t, err)
	b[0] = 'X'

	again, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "immutable", string(again))
}
